package services

import (
	"sync"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing ticks.
const subscriberBuffer = 64

// progressBroadcaster fans ingestion progress out to subscribers.
// Each subscriber drains a buffered channel on its own goroutine, so a
// slow listener drops ticks instead of blocking the producer.
type progressBroadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.IngestProgress
}

func newProgressBroadcaster() *progressBroadcaster {
	return &progressBroadcaster{
		subs: make(map[int]chan domain.IngestProgress),
	}
}

// Subscribe registers a listener and returns its unsubscribe handle.
// Unsubscribing is idempotent.
func (b *progressBroadcaster) Subscribe(listener driving.IngestListener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan domain.IngestProgress, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		for p := range ch {
			listener(p)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers a progress record to every subscriber, dropping it
// for subscribers whose buffer is full.
func (b *progressBroadcaster) Publish(p domain.IngestProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
			// Subscriber too slow, drop this tick.
		}
	}
}
