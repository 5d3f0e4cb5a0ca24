// ruled/pkg/ruleset/structs.go

package ruleset

// Document is the on-disk form of a rule corpus file. A single file may
// carry one or more rules.
type Document struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

type Rule struct {
	Name     string            `json:"name" yaml:"name"`
	Filters  []Filter          `json:"filters" yaml:"filters"`
	Actions  []Action          `json:"actions" yaml:"actions"`
	Metadata Metadata          `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Scripts  map[string]Script `json:"scripts,omitempty" yaml:"scripts,omitempty"`
}

type Metadata struct {
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank maps a priority to a sortable weight. Higher wins.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

type FilterKind string

const (
	FilterKindCommand    FilterKind = "command"
	FilterKindFileChange FilterKind = "file_change"
	FilterKindEvent      FilterKind = "event"
)

type Filter struct {
	Type    FilterKind `json:"type" yaml:"type"`
	Pattern string     `json:"pattern" yaml:"pattern"`

	compiled *Pattern
}

// Compiled returns the pattern compiled at load time, or nil for a rule
// that was constructed without going through the parser.
func (f *Filter) Compiled() *Pattern {
	return f.compiled
}

type ActionKind string

const (
	ActionKindReact   ActionKind = "react"
	ActionKindSuggest ActionKind = "suggest"
)

type Action struct {
	Type ActionKind `json:"type" yaml:"type"`

	// suggest
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// react
	Conditions []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Template   string   `json:"template,omitempty" yaml:"template,omitempty"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Script     string   `json:"script,omitempty" yaml:"script,omitempty"`

	compiledConditions []*Pattern
}

// CompiledConditions returns the condition patterns compiled at load time.
func (a *Action) CompiledConditions() []*Pattern {
	return a.compiledConditions
}

type Script struct {
	Params []string `json:"params" yaml:"params"`
	Body   string   `json:"body" yaml:"body"`
}

// Snapshot is an immutable view of the loaded rule set. Matching operates
// over a snapshot; reload swaps the whole snapshot, never mutates one.
type Snapshot struct {
	rules  []*Rule
	byName map[string]*Rule
}

func NewSnapshot(rules []*Rule) *Snapshot {
	byName := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
	}
	return &Snapshot{rules: rules, byName: byName}
}

// Rules returns the rules in load order.
func (s *Snapshot) Rules() []*Rule {
	if s == nil {
		return nil
	}
	return s.rules
}

func (s *Snapshot) Lookup(name string) (*Rule, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.byName[name]
	return r, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
