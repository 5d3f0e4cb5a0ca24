// ruled/pkg/runtime/session.go

package runtime

import (
	"sync"

	"ruled/pkg/ruleset"
)

const (
	DefaultOutputDir   = "out"
	DefaultHistorySize = 16
)

// Session holds the engine's process-wide state: the active snapshot, the
// output directory relative targets resolve against, and a bounded ring of
// recently triggered rule names. The ring is diagnostics only; nothing in
// matching or dispatch depends on it.
type Session struct {
	mu        sync.RWMutex
	snapshot  *ruleset.Snapshot
	outputDir string

	history []string
	next    int
	filled  int
}

func NewSession(outputDir string, historySize int) *Session {
	if historySize < 1 {
		historySize = 1
	}
	return &Session{
		outputDir: outputDir,
		history:   make([]string, historySize),
	}
}

func (s *Session) Snapshot() *ruleset.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) SetSnapshot(snapshot *ruleset.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

func (s *Session) OutputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputDir
}

func (s *Session) SetOutputDir(dir string) {
	s.mu.Lock()
	s.outputDir = dir
	s.mu.Unlock()
}

// ResizeHistory replaces the trigger ring with an empty one of the given
// capacity.
func (s *Session) ResizeHistory(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.history = make([]string, n)
	s.next = 0
	s.filled = 0
	s.mu.Unlock()
}

func (s *Session) RecordTrigger(ruleName string) {
	s.mu.Lock()
	s.history[s.next] = ruleName
	s.next = (s.next + 1) % len(s.history)
	if s.filled < len(s.history) {
		s.filled++
	}
	s.mu.Unlock()
}

// RecentTriggers returns the last triggered rule names, most recent first.
func (s *Session) RecentTriggers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, s.filled)
	for i := 1; i <= s.filled; i++ {
		idx := (s.next - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}
