package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-pos/internal/logger"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix     = "submission_lock:"
	pendingPrefix = "pending:"
	donePrefix    = "done:"

	defaultPendingTTL = 30 * time.Second
	defaultDoneTTL    = 24 * time.Hour
)

// completeScript swaps pending:<owner> for done:<order id> only while owner still holds the key.
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// releaseScript deletes the key only while owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis deduplicates order submissions by idempotency key.
type Redis struct {
	Client     *redis.Client
	Logger     *logger.Logger
	PendingTTL time.Duration
	DoneTTL    time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, pendingTTL time.Duration) *Redis {
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	return &Redis{
		Client:     client,
		Logger:     log,
		PendingTTL: pendingTTL,
		DoneTTL:    defaultDoneTTL,
	}
}

func lockKey(key string) string {
	return keyPrefix + key
}

// Acquire claims key for owner. If the key is already held it reports the committed
// order id, or "" while the first submission is still in flight.
func (r *Redis) Acquire(ctx context.Context, key, owner string) (string, bool, error) {
	k := lockKey(key)
	ok, err := r.Client.SetNX(ctx, k, pendingPrefix+owner, r.PendingTTL).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	val, err := r.Client.Get(ctx, k).Result()
	if err == redis.Nil {
		// expired between SETNX and GET; try once more
		ok, err = r.Client.SetNX(ctx, k, pendingPrefix+owner, r.PendingTTL).Result()
		return "", ok, err
	}
	if err != nil {
		return "", false, err
	}
	if strings.HasPrefix(val, donePrefix) {
		return strings.TrimPrefix(val, donePrefix), false, nil
	}
	return "", false, nil
}

// Complete records the committed order so later retries with the same key replay it.
func (r *Redis) Complete(ctx context.Context, key, owner, orderID string) error {
	n, err := completeScript.Run(ctx, r.Client,
		[]string{lockKey(key)},
		pendingPrefix+owner, donePrefix+orderID, r.DoneTTL.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("submission key %s no longer held by %s", key, owner)
	}
	r.Logger.Debug("REDIS", fmt.Sprintf("Submission key %s completed with order %s", key, orderID))
	return nil
}

// Release frees the key after a failed admission so the client can retry.
func (r *Redis) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.Client, []string{lockKey(key)}, pendingPrefix+owner).Err()
}
