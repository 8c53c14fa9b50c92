package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	b := NewMemory(4)
	ctx := context.Background()

	s1, err := b.Subscribe(ctx, "orders", "stats")
	require.NoError(t, err)
	s2, err := b.Subscribe(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, b.SubscriberCount("orders"))
	assert.Equal(t, 1, b.SubscriberCount("stats"))

	require.NoError(t, b.Publish(ctx, "orders", []byte(`{"type":"new_order"}`)))
	require.NoError(t, b.Publish(ctx, "stats", []byte(`{}`)))

	assert.Equal(t, "orders", receive(t, s1).Topic)
	assert.Equal(t, "stats", receive(t, s1).Topic)
	msg := receive(t, s2)
	assert.JSONEq(t, `{"type":"new_order"}`, string(msg.Payload))

	select {
	case m := <-s2.C():
		t.Fatalf("unexpected message on s2: %s", m.Topic)
	default:
	}
}

func TestMemoryBus_SlowSubscriberDrops(t *testing.T) {
	b := NewMemory(2)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "orders")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(ctx, "orders", []byte{byte(i)}))
	}

	assert.Equal(t, int64(3), b.Dropped())
	assert.Equal(t, []byte{0}, receive(t, sub).Payload)
	assert.Equal(t, []byte{1}, receive(t, sub).Payload)
}

func TestMemoryBus_CloseAndContext(t *testing.T) {
	b := NewMemory(4)

	sub, err := b.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount("orders"))

	ctx, cancel := context.WithCancel(context.Background())
	sub, err = b.Subscribe(ctx, "orders")
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return b.SubscriberCount("orders") == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), "orders", nil), ErrClosed)
	_, err = b.Subscribe(context.Background(), "orders")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewMemory(0)
	assert.NoError(t, b.Publish(context.Background(), "nobody", []byte("x")))
}
