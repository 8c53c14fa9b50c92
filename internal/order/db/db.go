package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-pos/internal/models"
	"ms-pos/internal/order"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- ORDERS ----------------

// CountOrdersSince → number of orders created at or after since
func (d *DB) CountOrdersSince(ctx context.Context, since time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("created_at >= ?", since.UTC()).
		Count(ctx)
}

// GetOrder → fetch one order by its ID
func (d *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := d.Bun.NewSelect().
		Model(&o).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindOrders → newest first, filtered by status and creation time
func (d *DB) FindOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	orders := []models.Order{}
	q := d.Bun.NewSelect().
		Model(&orders).
		OrderExpr("created_at DESC")

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderFields → set status and/or payment status, optionally guarded by the current status
func (d *DB) UpdateOrderFields(ctx context.Context, id string, f order.OrderFields) error {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)

	if f.Status != nil {
		q = q.Set("status = ?", *f.Status)
	}
	if f.PaymentStatus != nil {
		q = q.Set("payment_status = ?", *f.PaymentStatus)
	}
	if f.ExpectStatus != nil {
		q = q.Where("status = ?", *f.ExpectStatus)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// RunInTx → run fn inside one database transaction
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{idb: tx})
	})
}

type txStore struct {
	idb bun.IDB
}

// InsertOrder → insert a new order, mapping number collisions to ErrDuplicateOrderNumber
func (t *txStore) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := t.idb.NewInsert().Model(o).Exec(ctx)
	if isUniqueViolation(err) {
		return order.ErrDuplicateOrderNumber
	}
	return err
}

// IncrementPromoUsage → usage_count + 1 unless inactive or at its limit
func (t *txStore) IncrementPromoUsage(ctx context.Context, code string) (bool, error) {
	res, err := t.idb.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("usage_count = usage_count + 1").
		Where("code = ?", code).
		Where("is_active = ?", true).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
