package telemetry

import (
	"log"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// StandardLogger exposes the wrapped logger for components that need one.
func (l *loggerAdapter) StandardLogger() *log.Logger {
	if l == nil {
		return nil
	}
	return l.logger
}

// WrapZap adapts a zap logger; Printf lines are written at info level.
func WrapZap(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapAdapter{sugar: logger.Sugar(), logger: logger}
}

type zapAdapter struct {
	sugar  *zap.SugaredLogger
	logger *zap.Logger
}

func (z *zapAdapter) Printf(format string, args ...any) {
	if z == nil || z.sugar == nil {
		return
	}
	z.sugar.Infof(format, args...)
}

// StandardLogger returns a *log.Logger that writes through zap.
func (z *zapAdapter) StandardLogger() *log.Logger {
	if z == nil || z.logger == nil {
		return nil
	}
	return zap.NewStdLog(z.logger)
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Counters is an in-process Metrics implementation keyed by metric name.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Value reads a single metric.
func (c *Counters) Value(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// Snapshot copies every metric, used by the diagnostics endpoint.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}
	return snapshot
}

// Keys lists metric names in sorted order.
func (c *Counters) Keys() []string {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
