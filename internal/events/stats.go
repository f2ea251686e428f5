package events

import (
	"context"
	"sync"
)

// Stats is an EventHandler that counts events by type.
type Stats struct {
	mu     sync.Mutex
	counts map[Type]int
}

// NewStats creates an empty Stats handler.
func NewStats() *Stats {
	return &Stats{counts: make(map[Type]int)}
}

// HandleEvent implements EventHandler.
func (s *Stats) HandleEvent(_ context.Context, event *Event) error {
	s.mu.Lock()
	s.counts[event.Type]++
	s.mu.Unlock()
	return nil
}

// Count returns how many events of type t have been seen.
func (s *Stats) Count(t Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[t]
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() map[Type]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Type]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
