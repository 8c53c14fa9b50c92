// Package bus carries order events between the admission pipeline and the
// real-time gateway.
package bus

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("bus closed")

type Message struct {
	Topic   string
	Payload []byte
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Subscriber interface {
	// Subscribe starts delivery for topics. Messages published before the call
	// returns may be missed.
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

// Subscription is a live stream of messages. C is closed when the subscription
// ends, either by Close or because the underlying transport went away.
type Subscription interface {
	C() <-chan Message
	Close() error
}

type Bus interface {
	Publisher
	Subscriber
}
