package model

import (
	"context"
	"sync"
)

// Static is a deterministic Generator for tests and offline operation. It
// cycles through a fixed list of responses; with no responses configured it
// reports ok=false on every call.
type Static struct {
	mu        sync.Mutex
	responses []string
	next      int
	calls     int
}

// NewStatic creates a Static generator that yields the given responses in
// order, wrapping around when exhausted.
func NewStatic(responses ...string) *Static {
	return &Static{responses: responses}
}

// Generate implements Generator.
func (s *Static) Generate(_ context.Context, _, _ string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if len(s.responses) == 0 {
		return "", false
	}

	text := s.responses[s.next]
	s.next = (s.next + 1) % len(s.responses)

	return text, true
}

// Calls returns how many times Generate has been invoked.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}
