package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// ErrClosed is returned by Publish and Subscribe after the bus is closed.
var ErrClosed = errors.New("event bus is closed")

// subscription wraps a handler so unsubscription removes this exact
// registration, not whichever handler happens to sit at its original index.
type subscription struct {
	handler ports.EventHandler
}

// Bus implements ports.EventBus with in-process subscriber lists. Handlers
// run synchronously on Publish, which makes event ordering deterministic in
// tests; use the redis adapter for cross-process delivery.
type Bus struct {
	subscribers map[string][]*subscription
	mu          sync.RWMutex
	closed      bool
}

// NewBus creates a new in-memory event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish delivers an event to all subscribers of a topic. Handler errors
// are ignored; a slow or failing subscriber must not affect the publisher.
func (b *Bus) Publish(ctx context.Context, topic string, event domain.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		_ = sub.handler(ctx, event)
	}
	return nil
}

// Subscribe registers a handler for a topic until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := &subscription{handler: handler}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(topic, sub)
	}()

	return nil
}

func (b *Bus) remove(topic string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topic]
	for i, s := range subs {
		if s == sub {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Close drops all subscriptions and rejects further publishes.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[string][]*subscription)
	b.closed = true
	return nil
}
