package feed

import (
	"context"
	"sync"
)

// Sequencer orders overlapping feed fetches. Each Begin supersedes the
// previous fetch: its context is cancelled and its result is refused by Apply.
type Sequencer struct {
	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	stopped bool
}

// Begin starts a new generation derived from parent.
func (s *Sequencer) Begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	if s.stopped {
		cancel()
	}
	s.cancel = cancel
	return ctx, s.gen
}

// Apply runs fn only if gen is still the latest generation. fn runs under the
// sequencer's lock so a newer result can never be overwritten by an older one.
func (s *Sequencer) Apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || gen != s.gen {
		return false
	}
	fn()
	return true
}

// Latest returns the current generation.
func (s *Sequencer) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Stop cancels the in-flight fetch and refuses every later result.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
