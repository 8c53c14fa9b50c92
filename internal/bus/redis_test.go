package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-pos/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	client, _ := setupMiniredis(t)
	b := NewRedis(client, logger.Discard(), 8)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "pos:orders:new", "pos:stats:update")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "pos:orders:new", []byte(`{"type":"new_order"}`)))

	msg := receive(t, sub)
	assert.Equal(t, "pos:orders:new", msg.Topic)
	assert.JSONEq(t, `{"type":"new_order"}`, string(msg.Payload))
}

func TestRedisBus_CloseEndsStream(t *testing.T) {
	client, _ := setupMiniredis(t)
	b := NewRedis(client, logger.Discard(), 8)

	sub, err := b.Subscribe(context.Background(), "pos:orders:new")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestRedisBus_ServerGone(t *testing.T) {
	client, mr := setupMiniredis(t)
	b := NewRedis(client, logger.Discard(), 8)

	mr.Close()

	err := b.Publish(context.Background(), "pos:orders:new", []byte("x"))
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = b.Subscribe(ctx, "pos:orders:new")
	assert.Error(t, err)
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	f.calls++
	return errors.New("mirror down")
}

func TestTee_MirrorFailureIgnored(t *testing.T) {
	primary := NewMemory(4)
	sub, err := primary.Subscribe(context.Background(), "orders")
	require.NoError(t, err)

	mirror := &failingPublisher{}
	tee := NewTee(primary, logger.Discard(), mirror)

	require.NoError(t, tee.Publish(context.Background(), "orders", []byte("x")))
	assert.Equal(t, 1, mirror.calls)
	assert.Equal(t, []byte("x"), receive(t, sub).Payload)

	require.NoError(t, primary.Close())
	assert.ErrorIs(t, tee.Publish(context.Background(), "orders", nil), ErrClosed)
	assert.Equal(t, 2, mirror.calls)
}

// TestRedisBusIntegration runs the bus against a real Redis container
func TestRedisBusIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	b := NewRedis(client, logger.Discard(), 8)
	s1, err := b.Subscribe(ctx, "pos:orders:new")
	require.NoError(t, err)
	defer s1.Close()
	s2, err := b.Subscribe(ctx, "pos:orders:new")
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, b.Publish(ctx, "pos:orders:new", []byte(`{"type":"order_updated"}`)))

	assert.Equal(t, "pos:orders:new", receive(t, s1).Topic)
	assert.Equal(t, "pos:orders:new", receive(t, s2).Topic)
}
