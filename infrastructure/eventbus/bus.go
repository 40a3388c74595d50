// Package eventbus implements the lossy broadcast bus events.Bus describes.
package eventbus

import (
	"sync"

	"connected/application/events"
)

// subscriberCapacity matches the spec's broadcast channel capacity: slow
// subscribers lose events rather than stall the orchestrator.
const subscriberCapacity = 100

// Bus is an in-process broadcast implementation of events.Bus.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan events.Event
	nextID int
	closed bool
}

// New returns an empty, ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan events.Event)}
}

func (b *Bus) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber: drop the event rather than block the
			// publisher.
		}
	}
}

func (b *Bus) Subscribe() (<-chan events.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan events.Event, subscriberCapacity)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
