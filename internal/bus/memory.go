package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 32

// MemoryBus fans messages out inside one process. A subscriber that falls behind
// loses messages instead of slowing down publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	buffer int
	closed bool

	dropped atomic.Int64
}

func NewMemory(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{
		subs:   make(map[string]map[*memorySub]struct{}),
		buffer: buffer,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := Message{Topic: topic, Payload: payload}
	for sub := range b.subs[topic] {
		// Non-blocking send; a full buffer skips this subscriber
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	sub := &memorySub{
		bus:    b,
		ch:     make(chan Message, b.buffer),
		topics: topics,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[*memorySub]struct{})
		}
		b.subs[t][sub] = struct{}{}
	}
	b.mu.Unlock()

	// Remove subscriber when context is done
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// SubscriberCount returns the number of live subscriptions for topic.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *MemoryBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later publishes fail with ErrClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	all := map[*memorySub]struct{}{}
	for _, set := range b.subs {
		for sub := range set {
			all[sub] = struct{}{}
		}
	}
	b.mu.Unlock()

	for sub := range all {
		sub.Close()
	}
	return nil
}

func (b *MemoryBus) remove(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range sub.topics {
		delete(b.subs[t], sub)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
	close(sub.ch)
}

type memorySub struct {
	bus    *MemoryBus
	ch     chan Message
	topics []string
	once   sync.Once
	done   chan struct{}
}

func (s *memorySub) C() <-chan Message { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s)
	})
	return nil
}
