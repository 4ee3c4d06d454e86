// Package events provides the in-process feed of committed ledger
// events. Delivery to subscribers is best effort: a subscriber that
// falls behind its buffer loses events and is expected to catch up
// from the store's journal using sequence numbers.
package events

import (
	"log"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
)

const defaultBuffer = 1024

// Bus fans committed events out to subscribers.
type Bus struct {
	buffer int
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	nextID uint64
	subs   map[uint64]chan domain.Event
}

// Options configures a Bus.
type Options struct {
	// Buffer is the per-subscriber channel capacity. Defaults to 1024.
	Buffer int
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// NewBus creates an event bus.
func NewBus(opts Options) *Bus {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Bus{
		buffer: opts.Buffer,
		logger: opts.Logger,
		subs:   make(map[uint64]chan domain.Event),
	}
}

// Subscription is one subscriber's view of the feed.
type Subscription struct {
	id  uint64
	ch  chan domain.Event
	bus *Bus
}

// C returns the subscriber's event channel. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) C() <-chan domain.Event {
	return s.ch
}

// Close detaches the subscriber and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new subscriber. Returns nil if the bus is
// already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.nextID++
	ch := make(chan domain.Event, b.buffer)
	b.subs[b.nextID] = ch
	observability.SetFeedSubscribers(len(b.subs))
	return &Subscription{id: b.nextID, ch: ch, bus: b}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	observability.SetFeedSubscribers(len(b.subs))
}

// Publish delivers ev to every subscriber without blocking. Events
// for full subscriber buffers are dropped and counted.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			observability.RecordEventPublished()
		default:
			observability.RecordEventDropped()
			b.logger.Printf("[events] dropped event seq=%d for slow subscriber", ev.Seq)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches all subscribers and closes their channels.
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
	observability.SetFeedSubscribers(0)
}
