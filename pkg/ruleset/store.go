// ruled/pkg/ruleset/store.go

package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ruled/pkg/logging"
)

// DuplicatePolicy decides what happens when two documents define rules with
// the same name. The default mirrors editor rule corpora: later files
// override earlier ones.
type DuplicatePolicy string

const (
	DuplicateLastWins  DuplicatePolicy = "last_wins"
	DuplicateFirstWins DuplicatePolicy = "first_wins"
	DuplicateReject    DuplicatePolicy = "reject"
)

// LoadReport collects everything that went wrong during a load. A non-empty
// report does not mean the load failed: malformed documents and duplicate
// names are skipped or resolved, and the remaining rules load normally.
type LoadReport struct {
	Documents int
	Rules     int
	Errors    []error
}

func (r *LoadReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// Store loads rule documents from a directory and owns the active snapshot.
type Store struct {
	dir    string
	policy DuplicatePolicy

	mu       sync.RWMutex
	snapshot *Snapshot
}

type StoreOption func(*Store)

func WithDuplicatePolicy(p DuplicatePolicy) StoreOption {
	return func(s *Store) { s.policy = p }
}

func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:    dir,
		policy: DuplicateLastWins,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads every rule document in the store's directory and atomically
// replaces the active snapshot. Documents are read in lexical filename
// order, which fixes the load order used for priority tie-breaks. The
// returned error is non-nil only when the directory itself is unreadable;
// per-document failures land in the report.
func (s *Store) Load() (*Snapshot, *LoadReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, logging.NewError(logging.ErrorTypeStore,
			"failed to read rule directory", err,
			map[string]interface{}{"dir": s.dir})
	}

	report := &LoadReport{}
	var rules []*Rule
	index := make(map[string]int)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := documentFormat(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			report.Errors = append(report.Errors, logging.NewError(logging.ErrorTypeStore,
				"failed to read rule document", err,
				map[string]interface{}{"file": path}))
			continue
		}

		doc, err := ParseDocument(data, format)
		if err != nil {
			logging.Logger.Warn().Err(err).Str("file", path).Msg("Skipping malformed rule document")
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Documents++

		for i := range doc.Rules {
			rule := &doc.Rules[i]
			if prev, ok := index[rule.Name]; ok {
				dupErr := logging.NewError(logging.ErrorTypeDuplicate,
					fmt.Sprintf("duplicate rule name %q", rule.Name), nil,
					map[string]interface{}{"file": path, "policy": string(s.policy)})
				report.Errors = append(report.Errors, dupErr)
				logging.Logger.Warn().Str("rule", rule.Name).Str("file", path).
					Str("policy", string(s.policy)).Msg("Duplicate rule name")

				switch s.policy {
				case DuplicateFirstWins:
					continue
				case DuplicateReject:
					rules[prev] = nil
					continue
				default: // last wins
					rules[prev] = nil
				}
			}
			index[rule.Name] = len(rules)
			rules = append(rules, rule)
		}
	}

	// Compact out slots vacated by the duplicate policy.
	kept := rules[:0]
	for _, r := range rules {
		if r != nil {
			kept = append(kept, r)
		}
	}
	report.Rules = len(kept)

	snapshot := NewSnapshot(kept)
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	logging.Logger.Info().
		Int("documents", report.Documents).
		Int("rules", report.Rules).
		Int("errors", len(report.Errors)).
		Str("dir", s.dir).
		Msg("Loaded rule corpus")

	return snapshot, report, nil
}

// Reload re-reads all sources and swaps the active snapshot wholesale.
func (s *Store) Reload() (*Snapshot, *LoadReport, error) {
	return s.Load()
}

// Snapshot returns the active snapshot, or nil before the first Load.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Store) Dir() string {
	return s.dir
}

func documentFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}
