// ruled/pkg/runtime/template.go

package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderTemplate substitutes capture-group placeholders into a template.
// `$1` refers to the first capture group, `$$` is a literal dollar sign,
// and a `$` not followed by digits passes through unchanged. Referencing a
// group that was not captured is a binding failure: the caller skips the
// action rather than emitting a half-rendered effect.
func RenderTemplate(template string, captures []string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(template) && template[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		j := i + 1
		for j < len(template) && template[j] >= '0' && template[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			i++
			continue
		}
		n, err := strconv.Atoi(template[i+1 : j])
		if err != nil || n < 1 || n > len(captures) {
			return "", fmt.Errorf("template references capture group $%s but %d group(s) were captured",
				template[i+1:j], len(captures))
		}
		b.WriteString(captures[n-1])
		i = j
	}
	return b.String(), nil
}
