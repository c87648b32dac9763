// Package events carries lifecycle and request notifications between preview components.
package events

import (
	"context"
	"sync"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// Bus fans published events out to typed subscriptions. A subscription to T receives every
// event that is a T, so subscribing to the Event interface receives everything.
//
// Publish blocks until every matching subscription has taken the event or ctx is canceled.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]sink
	nextID uint64
	closed bool
}

type sink interface {
	deliver(ctx context.Context, evt any) error
	close()
}

type subscription[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once

	// held for reading while sending so close(ch) never races a send
	gate   sync.RWMutex
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]sink)}
}

// Subscribe returns a channel of T events and its cancel func. On a closed bus the channel is
// already closed.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	s := &subscription[T]{ch: make(chan T, buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.close()
		return s.ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	b.mu.Unlock()

	return s.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.close()
	}
}

// SubscriberCount returns the number of open subscriptions to exactly T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if _, ok := s.(*subscription[T]); ok {
			n++
		}
	}
	return n
}

func (s *subscription[T]) deliver(ctx context.Context, evt any) error {
	v, ok := evt.(T)
	if !ok {
		return nil
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- v:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").Build()
	}
}

func (s *subscription[T]) close() {
	s.once.Do(func() {
		close(s.done)
		s.gate.Lock()
		s.closed = true
		close(s.ch)
		s.gate.Unlock()
	})
}

// Publish delivers evt to every matching subscription. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if b == nil {
		return nil
	}
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ferrors.RuntimeError("event bus is closed").Build()
	}
	targets := make([]sink, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel. Later publishes fail.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]sink)
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
