// ruled/pkg/runtime/engine.go

package runtime

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"ruled/pkg/logging"
	"ruled/pkg/ruleset"
	"ruled/pkg/scripting"
)

type EventKind string

const (
	EventKindCommand    EventKind = "command"
	EventKindFileChange EventKind = "file_change"
	EventKindLifecycle  EventKind = "lifecycle"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindCommand, EventKindFileChange, EventKindLifecycle:
		return true
	default:
		return false
	}
}

// Event is the unit of input to the engine. Transient, never persisted.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload string    `json:"payload"`
}

// MatchResult pairs a matched rule with one of its actions that is due to
// fire, plus the capture groups collected along the way.
type MatchResult struct {
	Rule     *ruleset.Rule
	Action   *ruleset.Action
	Captures []string
}

type EffectKind string

const (
	EffectKindMessage   EffectKind = "message"
	EffectKindFileWrite EffectKind = "file_write"
	EffectKindOther     EffectKind = "other"
)

// EffectDescription is the engine's pure output: a description of a side
// effect for an external executor to perform. The engine itself never
// writes files or calls external services.
type EffectDescription struct {
	TargetPath string     `json:"target_path,omitempty"`
	Content    string     `json:"content"`
	Kind       EffectKind `json:"effect_kind"`
}

// Engine is the decision core: a pure function from (rule snapshot, event)
// to an ordered list of effect descriptions. All state lives in the session
// and is swapped wholesale on reload.
type Engine struct {
	session       *Session
	vm            *scripting.SafeVM
	scriptTimeout time.Duration
	triggerHook   func(ruleName string)

	eventsProcessed atomic.Int64
	effectsEmitted  atomic.Int64
}

type EngineOption func(*Engine)

func WithOutputDir(dir string) EngineOption {
	return func(e *Engine) { e.session.SetOutputDir(dir) }
}

func WithHistorySize(n int) EngineOption {
	return func(e *Engine) { e.session.ResizeHistory(n) }
}

func WithScriptTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.scriptTimeout = d }
}

// WithTriggerHook registers a callback invoked once per triggered rule per
// event, after the trigger is recorded in the session. The daemon uses it
// to mirror trigger history externally.
func WithTriggerHook(hook func(ruleName string)) EngineOption {
	return func(e *Engine) { e.triggerHook = hook }
}

func NewEngine(snapshot *ruleset.Snapshot, opts ...EngineOption) *Engine {
	e := &Engine{
		session:       NewSession(DefaultOutputDir, DefaultHistorySize),
		scriptTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Swap(snapshot)
	return e
}

// Swap replaces the active snapshot. Rule-attached scripts are registered
// into a fresh VM so nothing from the previous corpus leaks across reloads.
func (e *Engine) Swap(snapshot *ruleset.Snapshot) {
	vm := scripting.NewSafeVM()
	for _, rule := range snapshot.Rules() {
		for name, script := range rule.Scripts {
			vm.SetScript(scriptKey(rule.Name, name), script)
		}
	}
	e.vm = vm
	e.session.SetSnapshot(snapshot)
	logging.Logger.Info().Int("rules", snapshot.Len()).Msg("Engine snapshot swapped")
}

func scriptKey(ruleName, scriptName string) string {
	return ruleName + "/" + scriptName
}

// Match finds every action due to fire for an event, ordered by descending
// rule priority, then rule load order. A rule matches when any of its
// filters matches; a react action additionally requires all of its own
// conditions to match the payload.
func (e *Engine) Match(event Event) []MatchResult {
	snapshot := e.session.Snapshot()
	if snapshot == nil {
		return nil
	}

	var results []MatchResult
	for _, rule := range snapshot.Rules() {
		matched := false
		var captures []string
		for i := range rule.Filters {
			f := &rule.Filters[i]
			if !kindMatches(f.Type, event.Kind) {
				continue
			}
			p := f.Compiled()
			if p == nil {
				continue
			}
			ok, caps := p.Match(event.Payload)
			if ok {
				matched = true
				captures = caps
				break
			}
		}
		if !matched {
			continue
		}

		for i := range rule.Actions {
			action := &rule.Actions[i]
			actionCaptures := captures
			if action.Type == ruleset.ActionKindReact {
				condOK := true
				var condCaptures []string
				for _, cond := range action.CompiledConditions() {
					ok, caps := cond.Match(event.Payload)
					if !ok {
						condOK = false
						break
					}
					condCaptures = append(condCaptures, caps...)
				}
				if !condOK {
					continue
				}
				if len(condCaptures) > 0 {
					actionCaptures = append(append([]string(nil), captures...), condCaptures...)
				}
			}
			results = append(results, MatchResult{Rule: rule, Action: action, Captures: actionCaptures})
		}
	}

	// Stable sort keeps load order as the tie-break within a priority.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rule.Metadata.Priority.Rank() > results[j].Rule.Metadata.Priority.Rank()
	})
	return results
}

func kindMatches(filterKind ruleset.FilterKind, eventKind EventKind) bool {
	switch filterKind {
	case ruleset.FilterKindCommand:
		return eventKind == EventKindCommand
	case ruleset.FilterKindFileChange:
		return eventKind == EventKindFileChange
	case ruleset.FilterKindEvent:
		return eventKind == EventKindLifecycle
	default:
		return false
	}
}

// Dispatch turns one match result into an effect description. No I/O
// happens here; a failing action is skipped by the caller and never stops
// the remaining matches.
func (e *Engine) Dispatch(m MatchResult) (*EffectDescription, error) {
	switch m.Action.Type {
	case ruleset.ActionKindSuggest:
		return &EffectDescription{Kind: EffectKindMessage, Content: m.Action.Message}, nil

	case ruleset.ActionKindReact:
		content, err := RenderTemplate(m.Action.Template, m.Captures)
		if err != nil {
			return nil, logging.NewError(logging.ErrorTypeTemplate,
				"failed to render action template", err,
				map[string]interface{}{"rule": m.Rule.Name})
		}

		if m.Action.Script != "" {
			transformed, err := e.vm.Transform(scriptKey(m.Rule.Name, m.Action.Script), content, m.Captures, e.scriptTimeout)
			if err != nil {
				return nil, logging.NewError(logging.ErrorTypeScript,
					"script transform failed", err,
					map[string]interface{}{"rule": m.Rule.Name, "script": m.Action.Script})
			}
			content = transformed
		}

		if m.Action.Target == "" {
			return &EffectDescription{Kind: EffectKindOther, Content: content}, nil
		}
		target, err := RenderTemplate(m.Action.Target, m.Captures)
		if err != nil {
			return nil, logging.NewError(logging.ErrorTypeTemplate,
				"failed to render target path", err,
				map[string]interface{}{"rule": m.Rule.Name})
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(e.session.OutputDir(), target)
		}
		return &EffectDescription{Kind: EffectKindFileWrite, TargetPath: target, Content: content}, nil

	default:
		return nil, fmt.Errorf("unknown action kind %q", m.Action.Type)
	}
}

// SubmitEvent is the sole entry point for external callers: match, then
// dispatch every matched action in priority order. Per-action failures are
// collected and reported; they never prevent other actions from firing. An
// empty effect list is a valid outcome, not an error.
func (e *Engine) SubmitEvent(kind EventKind, payload string) ([]EffectDescription, []error) {
	if !kind.Valid() {
		return nil, []error{fmt.Errorf("unknown event kind %q", kind)}
	}

	matches := e.Match(Event{Kind: kind, Payload: payload})

	var effects []EffectDescription
	var errs []error
	triggered := make(map[string]bool)
	for _, m := range matches {
		effect, err := e.Dispatch(m)
		if err != nil {
			logging.LogError(logging.Logger, err)
			errs = append(errs, err)
			continue
		}
		effects = append(effects, *effect)
		if !triggered[m.Rule.Name] {
			triggered[m.Rule.Name] = true
			e.session.RecordTrigger(m.Rule.Name)
			if e.triggerHook != nil {
				e.triggerHook(m.Rule.Name)
			}
		}
	}

	e.eventsProcessed.Add(1)
	e.effectsEmitted.Add(int64(len(effects)))

	logging.Logger.Debug().
		Str("kind", string(kind)).
		Str("payload", payload).
		Int("matches", len(matches)).
		Int("effects", len(effects)).
		Msg("Processed event")

	return effects, errs
}

// Session exposes the engine's session context.
func (e *Engine) Session() *Session {
	return e.session
}

// Stats reports diagnostics for the dashboard.
func (e *Engine) Stats() map[string]interface{} {
	return map[string]interface{}{
		"rules_loaded":     e.session.Snapshot().Len(),
		"events_processed": e.eventsProcessed.Load(),
		"effects_emitted":  e.effectsEmitted.Load(),
		"recent_triggers":  e.session.RecentTriggers(),
	}
}
