// Package sequence hands out day-scoped human order numbers (ORD-YYYYMMDD-NNN).
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Counter reports how many orders were persisted since a point in time.
type Counter interface {
	CountOrdersSince(ctx context.Context, since time.Time) (int, error)
}

type Allocator interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

// DayStart returns midnight UTC of the day containing now.
func DayStart(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Format renders an order number. The ordinal is padded to three digits and
// widens past 999.
func Format(day time.Time, ordinal int64) string {
	return fmt.Sprintf("ORD-%s-%03d", day.UTC().Format("20060102"), ordinal)
}

// LocalAllocator serializes allocation inside one process. It is only correct when a
// single instance admits orders.
type LocalAllocator struct {
	counter Counter

	mu   sync.Mutex
	day  time.Time
	last int64
}

func NewLocal(counter Counter) *LocalAllocator {
	return &LocalAllocator{counter: counter}
}

func (a *LocalAllocator) Next(ctx context.Context, now time.Time) (string, error) {
	day := DayStart(now)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.day.Equal(day) {
		n, err := a.counter.CountOrdersSince(ctx, day)
		if err != nil {
			return "", fmt.Errorf("seed sequence: %w", err)
		}
		a.day = day
		a.last = int64(n)
	}

	a.last++
	return Format(day, a.last), nil
}
