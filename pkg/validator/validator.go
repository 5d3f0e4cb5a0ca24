// ruled/pkg/validator/validator.go

package validator

import (
	"fmt"

	"ruled/pkg/ruleset"
)

// ValidateRule applies semantic checks beyond what the parser enforces.
// A rule with no filters parses fine but can never fire; callers that
// consider that a mistake run this before accepting a corpus.
func ValidateRule(rule *ruleset.Rule) error {
	if len(rule.Filters) == 0 {
		return fmt.Errorf("rule %q has no filters and will never match", rule.Name)
	}

	for _, action := range rule.Actions {
		if action.Type == ruleset.ActionKindReact && action.Target != "" && action.Template == "" {
			return fmt.Errorf("rule %q: react action has a target but no template", rule.Name)
		}
	}

	for name, script := range rule.Scripts {
		if script.Body == "" {
			return fmt.Errorf("rule %q: script %q has an empty body", rule.Name, name)
		}
	}

	return nil
}
