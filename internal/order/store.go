package order

import (
	"context"
	"time"

	"ms-pos/internal/models"
)

// OrderFields lists the mutable columns of an order. Nil fields are left untouched.
// ExpectStatus turns the update into a compare-and-set on the current status.
type OrderFields struct {
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
	ExpectStatus  *models.OrderStatus
}

// Tx is the part of the store usable inside an admission transaction.
type Tx interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	// IncrementPromoUsage adds one use unless the code is inactive or already at its
	// limit. It reports whether the use was recorded.
	IncrementPromoUsage(ctx context.Context, code string) (bool, error)
}

// DBLayer is the order store. GetOrder and UpdateOrderFields return ErrOrderNotFound
// for unknown ids; InsertOrder returns ErrDuplicateOrderNumber on a number collision.
type DBLayer interface {
	CountOrdersSince(ctx context.Context, since time.Time) (int, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderFields(ctx context.Context, id string, fields OrderFields) error
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PromoStore backs promo code administration. Codes are already normalized.
type PromoStore interface {
	ListPromoCodes(ctx context.Context) ([]models.PromoCode, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	CreatePromoCode(ctx context.Context, p *models.PromoCode) error
	UpdatePromoCode(ctx context.Context, p *models.PromoCode) error
	DeletePromoCode(ctx context.Context, code string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Notifier interface {
	NotifyOrder(ctx context.Context, n models.OrderNotification) error
}

type SettingsSource interface {
	Snapshot() *models.Settings
}

// SubmissionGuard deduplicates client retries that carry the same idempotency key.
type SubmissionGuard interface {
	// Acquire claims key for owner. When the key already completed it returns the
	// committed order id and acquired=false.
	Acquire(ctx context.Context, key, owner string) (orderID string, acquired bool, err error)
	Complete(ctx context.Context, key, owner, orderID string) error
	Release(ctx context.Context, key, owner string) error
}
