// Package eventbus provides the ordered event queue between the agent
// runtime and its observers.
//
// The bus is a plain FIFO: Emit appends, DrainAll atomically empties and
// returns all pending events in emission order. It is unbounded and must be
// drained at least once per observation cycle. A single consumer drains;
// multiple producers may emit.
package eventbus

import (
	"sync"

	"github.com/Strob0t/SandForge/internal/domain/event"
)

// Bus is the FIFO event queue. The zero value is not usable; call New.
type Bus struct {
	mu      sync.Mutex
	pending []event.AgentEvent
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Emit appends an event. Never blocks.
func (b *Bus) Emit(ev event.AgentEvent) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()
}

// DrainAll removes and returns all pending events in emission order.
// Returns nil when the bus is empty.
func (b *Bus) DrainAll() []event.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// HasPending reports whether any events are waiting to be drained.
func (b *Bus) HasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0
}
