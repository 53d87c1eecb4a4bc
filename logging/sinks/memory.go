package sinks

import (
	"context"
	"sync"

	"coupdegrace/server/logging"
)

// Memory keeps every event in process; tests read them back with Events.
type Memory struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemory() *Memory {
	return &Memory{events: make([]logging.Event, 0)}
}

func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Publish lets the sink stand in for a Publisher in tests that do not need
// the asynchronous router.
func (s *Memory) Publish(_ context.Context, event logging.Event) {
	s.Write(event)
}

func (s *Memory) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// EventsOfType filters the recorded events by type.
func (s *Memory) EventsOfType(typ logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []logging.Event
	for _, event := range s.events {
		if event.Type == typ {
			matched = append(matched, event)
		}
	}
	return matched
}

func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *Memory) Close(context.Context) error {
	return nil
}
