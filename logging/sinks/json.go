package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"coupdegrace/server/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	closer    io.Closer
	autoFlush bool
	stop      chan struct{}
	done      chan struct{}
}

// NewJSON constructs a JSON sink writing to w. A positive flushInterval
// batches writes and flushes them on a ticker; otherwise every event is
// flushed immediately. The sink never closes w.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	return newJSON(w, nil, flushInterval)
}

// NewJSONFile is NewJSON for a writer the sink owns: w is closed with the
// sink.
func NewJSONFile(w io.WriteCloser, flushInterval time.Duration) *JSON {
	return newJSON(w, w, flushInterval)
}

func newJSON(w io.Writer, closer io.Closer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{writer: buf, encoder: json.NewEncoder(buf), closer: closer, autoFlush: flushInterval <= 0}
	if flushInterval > 0 {
		sink.stop = make(chan struct{})
		sink.done = make(chan struct{})
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := map[string]any{
		"type":     event.Type,
		"tick":     event.Tick,
		"time":     event.Time.Format(time.RFC3339Nano),
		"severity": event.Severity.String(),
		"category": event.Category,
		"actor":    event.Actor,
		"targets":  event.Targets,
		"payload":  event.Payload,
		"extra":    event.Extra,
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close stops the flush ticker and flushes buffered events.
func (s *JSON) Close(context.Context) error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *JSON) periodicFlush(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
