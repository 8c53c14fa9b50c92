package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// seedAndIncr seeds a missing day counter with the persisted order count and then
// increments it, as one atomic step on the Redis server.
var seedAndIncr = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
end
return redis.call("INCR", KEYS[1])
`)

// RedisAllocator keeps one counter per UTC day in Redis, shared by every instance.
type RedisAllocator struct {
	Client  *redis.Client
	counter Counter
	prefix  string
	ttl     time.Duration
}

func NewRedis(client *redis.Client, counter Counter, prefix string) *RedisAllocator {
	if prefix == "" {
		prefix = "pos:order_seq"
	}
	return &RedisAllocator{
		Client:  client,
		counter: counter,
		prefix:  prefix,
		ttl:     48 * time.Hour,
	}
}

func (a *RedisAllocator) key(day time.Time) string {
	return a.prefix + ":" + day.Format("20060102")
}

func (a *RedisAllocator) Next(ctx context.Context, now time.Time) (string, error) {
	day := DayStart(now)
	key := a.key(day)

	exists, err := a.Client.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("sequence exists %s: %w", key, err)
	}

	seed := 0
	if exists == 0 {
		if seed, err = a.counter.CountOrdersSince(ctx, day); err != nil {
			return "", fmt.Errorf("seed sequence: %w", err)
		}
	}

	n, err := seedAndIncr.Run(ctx, a.Client, []string{key}, seed, int(a.ttl.Seconds())).Int64()
	if err != nil {
		return "", fmt.Errorf("sequence incr %s: %w", key, err)
	}
	return Format(day, n), nil
}
