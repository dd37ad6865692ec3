package events

import (
	"sync"

	"garden/pkg/logging"
)

// subscriberBufferSize is the per-subscriber queue depth. A subscriber that
// falls further behind than this loses events rather than stalling the
// scheduler.
const subscriberBufferSize = 1024

// Handler consumes one event. Handlers must not panic; a panicking handler
// is a bug in the handler and is recovered and logged, never propagated
// into scheduling.
type Handler func(Event)

// Bus is the run-scoped publisher of work item lifecycle transitions. It is
// constructed explicitly (no package-level singleton) and passed to the
// components that publish or observe events; its lifetime is the owning
// session's.
//
// Publishing is fire-and-forget: each subscriber has its own buffered FIFO
// queue drained by its own goroutine, so a slow or failing observer cannot
// block or fail scheduling, and every subscriber observes events for one
// work item in causal order.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// NewBus returns a bus ready for use.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a handler and returns a function that removes the
// subscription. Removing one subscriber does not affect delivery to others.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:   make(chan Event, subscriberBufferSize),
		done: make(chan struct{}),
	}
	b.subs[id] = sub

	go func() {
		defer close(sub.done)
		for ev := range sub.ch {
			dispatch(h, ev)
		}
	}()

	return func() {
		b.mu.Lock()
		s, ok := b.subs[id]
		if ok {
			delete(b.subs, id)
		}
		b.mu.Unlock()
		if ok {
			close(s.ch)
			<-s.done
		}
	}
}

// Publish delivers ev to all current subscribers without blocking. When a
// subscriber's queue is full the event is dropped for that subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			logging.Debug("EventBus", "Dropping %s event for %s: subscriber queue full", ev.Status, ev.Key)
		}
	}
}

// Close removes all subscribers and waits for their queues to drain.
// Publish calls after Close are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[int]*subscriber{}
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
		<-sub.done
	}
}

func dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("EventBus", nil, "Event handler panicked on %s event for %s: %v", ev.Status, ev.Key, r)
		}
	}()
	h(ev)
}
