// ruled/pkg/validator/validator_test.go

package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruled/pkg/ruleset"
)

func parseRule(t *testing.T, doc string) *ruleset.Rule {
	t.Helper()
	parsed, err := ruleset.ParseDocument([]byte(doc), ruleset.FormatJSON)
	require.NoError(t, err)
	return &parsed.Rules[0]
}

func TestValidateRule(t *testing.T) {
	rule := parseRule(t, `{
		"rules": [
			{
				"name": "ok",
				"filters": [{"type": "command", "pattern": "go"}],
				"actions": [{"type": "suggest", "message": "m"}]
			}
		]
	}`)
	assert.NoError(t, ValidateRule(rule))
}

func TestValidateRuleWithoutFilters(t *testing.T) {
	rule := parseRule(t, `{
		"rules": [
			{
				"name": "dormant",
				"actions": [{"type": "suggest", "message": "m"}]
			}
		]
	}`)
	err := ValidateRule(rule)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "never match")
}

func TestValidateRuleEmptyScriptBody(t *testing.T) {
	rule := &ruleset.Rule{
		Name:    "bad-script",
		Filters: []ruleset.Filter{{Type: ruleset.FilterKindCommand, Pattern: "x"}},
		Actions: []ruleset.Action{{Type: ruleset.ActionKindSuggest, Message: "m"}},
		Scripts: map[string]ruleset.Script{"empty": {}},
	}
	err := ValidateRule(rule)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty body")
}
