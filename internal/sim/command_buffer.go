package sim

import (
	"sync"

	"coupdegrace/server/internal/telemetry"
)

const (
	metricBufferOccupancy = "sim_command_buffer_occupancy"
	metricBufferOverflow  = "sim_command_buffer_overflow_total"
)

// CommandBuffer is a fixed-size ring of staged commands. Network goroutines
// push; the loop goroutine drains.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	count   int
	metrics telemetry.Metrics
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		data:    make([]Command, capacity),
		metrics: metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Push stages a command, returning false if the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(metricBufferOverflow, 1)
		}
		return false
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.storeOccupancyLocked()
	return true
}

// Drain returns all staged commands in FIFO order and empties the buffer.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head = (b.head + b.count) % len(b.data)
	b.count = 0
	b.storeOccupancyLocked()
	return commands
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) storeOccupancyLocked() {
	if b.metrics != nil {
		b.metrics.Store(metricBufferOccupancy, uint64(b.count))
	}
}
