package logging

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to sinks on background workers so the
// simulation goroutine never blocks on I/O. Events that do not fit the queue
// are dropped and counted.
type Router struct {
	cfg         Config
	queue       chan Event
	sinks       []*sinkWorker
	clock       Clock
	fallback    *log.Logger
	stop        chan struct{}
	closed      atomic.Bool
	minSeverity Severity
	fields      map[string]any
	wg          sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

var errNoSinks = errors.New("logging: no sinks configured")

func NewRouter(cfg Config, clock Clock, fallback *log.Logger, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		clock:       clock,
		fallback:    fallback,
		stop:        make(chan struct{}),
		minSeverity: cfg.MinimumSeverity,
	}
	if len(cfg.Fields) > 0 {
		r.fields = copyFields(cfg.Fields)
	}

	sinkBuffer := min(max(bufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, newSinkWorker(named.Name, named.Sink, sinkBuffer, fallback))
	}
	if len(r.sinks) == 0 {
		return nil, errNoSinks
	}

	r.start()
	return r, nil
}

func (r *Router) start() {
	r.wg.Add(1)
	go func() {
		defer func() {
			for _, worker := range r.sinks {
				close(worker.events)
			}
			r.wg.Done()
		}()
		for {
			select {
			case <-r.stop:
				r.drain()
				return
			case event := <-r.queue:
				r.forward(event)
			}
		}
	}()

	for _, worker := range r.sinks {
		r.wg.Add(1)
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
}

func (r *Router) drain() {
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		default:
			return
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.eventsTotal.Add(1)
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

// Publish queues the event without blocking. Events without a type are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || event.Type == "" {
		return
	}
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.handleDrop(event)
	}
}

func (r *Router) handleDrop(event Event) {
	r.droppedTotal.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.lastDropLog.Load()
	if next == 0 || now >= next {
		if r.lastDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
			r.fallback.Printf("dropping event type=%s tick=%d", event.Type, event.Tick)
		}
	}
}

// Close flushes queued events, stops the workers and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var errs []error
	for _, worker := range r.sinks {
		if err := worker.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

func (r *Router) Sink(name string) Sink {
	if r == nil {
		return nil
	}
	for _, worker := range r.sinks {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name      string
	sink      Sink
	events    chan Event
	fallback  *log.Logger
	failures  int
	nextRetry time.Time
}

func newSinkWorker(name string, sink Sink, buffer int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		fallback: fallback,
	}
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneEvent(event):
	default:
		w.fallback.Printf("sink %s backlog full dropping event type=%s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if wait := time.Until(w.nextRetry); w.failures > 0 && wait > 0 {
			time.Sleep(wait)
		}
		if err := w.sink.Write(event); err != nil {
			w.fail(err)
			continue
		}
		w.failures = 0
		w.nextRetry = time.Time{}
	}
}

func (w *sinkWorker) fail(err error) {
	w.failures++
	delay := time.Duration(1<<min(w.failures, 5)) * 100 * time.Millisecond
	w.nextRetry = time.Now().Add(delay)
	w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
}
