// ruled/pkg/ruleset/parser.go

package ruleset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"

	"ruled/pkg/logging"
)

// Format names the serialization of a rule document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseDocument parses and validates a rule document. Filters, action
// conditions, and scripts are compiled here so that a document that parses
// cleanly is immediately matchable. Any structural problem is a PARSE error.
func ParseDocument(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, parseError(fmt.Sprintf("unsupported document format %q", format), nil, nil)
	}
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to unmarshal rule document")
		return nil, parseError("invalid document syntax", err, nil)
	}
	if len(doc.Rules) == 0 {
		return nil, parseError("missing rules field", nil, nil)
	}

	for i := range doc.Rules {
		if err := validateRule(&doc.Rules[i]); err != nil {
			logging.Logger.Error().Err(err).Str("rule", doc.Rules[i].Name).Msg("Invalid rule")
			return nil, err
		}
	}

	logging.Logger.Debug().Int("rules", len(doc.Rules)).Msg("Parsed rule document")
	return &doc, nil
}

// EncodeDocument serializes a document back to its on-disk form. A document
// loaded by ParseDocument round-trips to a semantically equal document.
func EncodeDocument(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// validateRule validates a rule in place, compiling its patterns.
func validateRule(rule *Rule) error {
	logging.Logger.Debug().Str("rule", rule.Name).Msg("Validating rule")
	if rule.Name == "" {
		return parseError("rule name is required", nil, nil)
	}
	if rule.Metadata.Priority == "" {
		rule.Metadata.Priority = PriorityMedium
	}
	if rule.Metadata.Priority.Rank() < 0 {
		return parseError(
			fmt.Sprintf("invalid priority %q", rule.Metadata.Priority), nil,
			map[string]interface{}{"rule": rule.Name},
		)
	}

	// Zero filters is legal: such a rule simply never matches.
	for i := range rule.Filters {
		if err := validateFilter(&rule.Filters[i]); err != nil {
			return parseError(err.Error(), errors.Unwrap(err), map[string]interface{}{"rule": rule.Name})
		}
	}

	if len(rule.Actions) == 0 {
		return parseError("at least one action is required", nil, map[string]interface{}{"rule": rule.Name})
	}
	for i := range rule.Actions {
		if err := validateAction(&rule.Actions[i], rule); err != nil {
			return parseError(err.Error(), errors.Unwrap(err), map[string]interface{}{"rule": rule.Name})
		}
	}
	return nil
}

func validateFilter(f *Filter) error {
	switch f.Type {
	case FilterKindCommand, FilterKindFileChange, FilterKindEvent:
	default:
		return fmt.Errorf("unknown filter kind %q", f.Type)
	}
	p, err := NewPattern(f.Pattern)
	if err != nil {
		return fmt.Errorf("invalid filter pattern: %w", err)
	}
	f.compiled = p
	return nil
}

func validateAction(a *Action, rule *Rule) error {
	switch a.Type {
	case ActionKindSuggest:
		if a.Message == "" {
			return errors.New("suggest action requires a message")
		}
		if a.Template != "" || a.Target != "" || len(a.Conditions) > 0 {
			return errors.New("suggest action must not carry react fields")
		}
	case ActionKindReact:
		if a.Template == "" {
			return errors.New("react action requires a template")
		}
		if a.Message != "" {
			return errors.New("react action must not carry a message")
		}
		a.compiledConditions = a.compiledConditions[:0]
		for _, cond := range a.Conditions {
			p, err := NewPattern(cond)
			if err != nil {
				return fmt.Errorf("invalid condition pattern: %w", err)
			}
			a.compiledConditions = append(a.compiledConditions, p)
		}
		if a.Script != "" {
			if _, ok := rule.Scripts[a.Script]; !ok {
				return fmt.Errorf("action references unknown script %q", a.Script)
			}
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Type)
	}
	return nil
}

func parseError(message string, err error, fields map[string]interface{}) error {
	return logging.NewError(logging.ErrorTypeParse, message, err, fields)
}
