package bus

import (
	"context"
	"fmt"
	"sync"

	"ms-pos/internal/logger"

	"github.com/go-redis/redis/v8"
)

// RedisBus is the cross-instance bus. Delivery is at-most-once; subscribers that are
// not connected at publish time never see the message.
type RedisBus struct {
	Client *redis.Client
	Logger *logger.Logger
	buffer int
}

func NewRedis(client *redis.Client, log *logger.Logger, buffer int) *RedisBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisBus{Client: client, Logger: log, buffer: buffer}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.Client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	ps := b.Client.Subscribe(ctx, topics...)

	// Wait for the subscription confirmation so callers know delivery has started
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %v: %w", topics, err)
	}

	sub := &redisSub{
		ps:   ps,
		ch:   make(chan Message, b.buffer),
		done: make(chan struct{}),
	}
	go sub.pump(ctx, b.Logger)
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Message
	once sync.Once
	done chan struct{}
}

func (s *redisSub) pump(ctx context.Context, log *logger.Logger) {
	defer close(s.ch)
	in := s.ps.Channel()
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			msg := Message{Topic: m.Channel, Payload: []byte(m.Payload)}
			select {
			case s.ch <- msg:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			log.Debug("BUS", "Redis subscription context done")
			s.Close()
			return
		}
	}
}

func (s *redisSub) C() <-chan Message { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
