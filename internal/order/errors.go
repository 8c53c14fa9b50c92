package order

import (
	"errors"
	"fmt"

	"ms-pos/internal/order/pricing"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrPromoNotFound        = errors.New("promo code not found")
	ErrPromoExists          = errors.New("promo code already exists")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrStoreUnavailable     = errors.New("order store unavailable")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// ValidationError rejects a request at the boundary. Nothing has been written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BelowMinimumOrderError carries the rendered delivery-minimum message.
type BelowMinimumOrderError = pricing.BelowMinimumError

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
