package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-pos/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestAcquire_FirstClaimWins(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), time.Minute)
	ctx := context.Background()

	id, ok, err := r.Acquire(ctx, "key-1", "owner-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, id)

	// second submission while the first is in flight
	id, ok, err = r.Acquire(ctx, "key-1", "owner-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)

	val, err := client.Get(ctx, "submission_lock:key-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "pending:owner-a", val)
}

func TestComplete_ReplaysOrderID(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), time.Minute)
	ctx := context.Background()

	_, ok, err := r.Acquire(ctx, "key-1", "owner-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.Complete(ctx, "key-1", "owner-a", "order-42"))

	id, ok, err := r.Acquire(ctx, "key-1", "owner-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "order-42", id)

	assert.Equal(t, 24*time.Hour, mr.TTL("submission_lock:key-1"))
}

func TestComplete_RefusesForeignOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), time.Minute)
	ctx := context.Background()

	_, _, err := r.Acquire(ctx, "key-1", "owner-a")
	require.NoError(t, err)

	assert.Error(t, r.Complete(ctx, "key-1", "owner-b", "order-1"))

	val, err := client.Get(ctx, "submission_lock:key-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "pending:owner-a", val)
}

func TestRelease_OnlyOwnerFrees(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), time.Minute)
	ctx := context.Background()

	_, _, err := r.Acquire(ctx, "key-1", "owner-a")
	require.NoError(t, err)

	require.NoError(t, r.Release(ctx, "key-1", "owner-b"))
	_, ok, err := r.Acquire(ctx, "key-1", "owner-c")
	require.NoError(t, err)
	assert.False(t, ok, "foreign release must not free the key")

	require.NoError(t, r.Release(ctx, "key-1", "owner-a"))
	_, ok, err = r.Acquire(ctx, "key-1", "owner-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquire_PendingExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), 5*time.Second)
	ctx := context.Background()

	_, ok, err := r.Acquire(ctx, "key-1", "owner-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	_, ok, err = r.Acquire(ctx, "key-1", "owner-b")
	require.NoError(t, err)
	assert.True(t, ok, "abandoned submission should not block retries forever")
}

func TestAcquire_Concurrent(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, logger.Discard(), time.Minute)

	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, ok, err := r.Acquire(context.Background(), "shared", fmt.Sprintf("owner-%d", n))
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
