package order

import (
	"fmt"

	"ms-pos/internal/models"
)

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy interface {
	Allow(from, to models.OrderStatus) error
}

// Permissive allows any listed status to follow any other, including leaving a
// terminal status. Operators use this to correct mistakes.
type Permissive struct{}

func (Permissive) Allow(from, to models.OrderStatus) error {
	return nil
}

// Strict only moves forward along new -> preparing -> ready -> completed, allows
// cancelled from any non-terminal status, and freezes terminal statuses.
type Strict struct{}

func (Strict) Allow(from, to models.OrderStatus) error {
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, from)
	}
	if to == models.StatusCancelled {
		return nil
	}
	if rank(to) <= rank(from) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

func rank(s models.OrderStatus) int {
	for i, v := range models.OrderStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return Strict{}
	}
	return Permissive{}
}
