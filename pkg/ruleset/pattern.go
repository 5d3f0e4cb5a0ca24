// ruled/pkg/ruleset/pattern.go

package ruleset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// regexMetachars decides the dialect: a pattern containing none of these is
// matched as a plain substring, anything else is compiled as a regular
// expression. Matching is case-sensitive either way.
const regexMetachars = `.*+?()|[]{}^$\`

// Pattern is a trigger pattern compiled at load time. re is nil for plain
// substring patterns.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

func NewPattern(raw string) (*Pattern, error) {
	if raw == "" {
		return nil, errors.New("empty pattern")
	}
	if !strings.ContainsAny(raw, regexMetachars) {
		return &Pattern{raw: raw}, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
	}
	return &Pattern{raw: raw, re: re}, nil
}

// Match tests the pattern against an event payload. For regex patterns the
// returned slice holds the capture groups, group 1 first. An unmatched
// optional group comes back as an empty string.
func (p *Pattern) Match(payload string) (bool, []string) {
	if p == nil || p.raw == "" {
		return false, nil
	}
	if p.re == nil {
		return strings.Contains(payload, p.raw), nil
	}
	m := p.re.FindStringSubmatch(payload)
	if m == nil {
		return false, nil
	}
	return true, m[1:]
}

func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.raw
}

// IsRegex reports whether the pattern uses the regex dialect.
func (p *Pattern) IsRegex() bool {
	return p != nil && p.re != nil
}
