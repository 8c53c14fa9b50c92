package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-pos/internal/models"
	"ms-pos/internal/order"
)

// ---------------- PROMO CODES ----------------

func (d *DB) ListPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	promos := []models.PromoCode{}
	err := d.Bun.NewSelect().
		Model(&promos).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return promos, nil
}

func (d *DB) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var p models.PromoCode
	err := d.Bun.NewSelect().
		Model(&p).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) CreatePromoCode(ctx context.Context, p *models.PromoCode) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	if isUniqueViolation(err) {
		return order.ErrPromoExists
	}
	return err
}

// UpdatePromoCode rewrites the rule columns. usage_count is left to admissions.
func (d *DB) UpdatePromoCode(ctx context.Context, p *models.PromoCode) error {
	res, err := d.Bun.NewUpdate().
		Model(p).
		Column("discount_type", "discount_value", "valid_from", "valid_to", "usage_limit", "min_order_amount", "is_active").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrPromoNotFound
	}
	return nil
}

func (d *DB) DeletePromoCode(ctx context.Context, code string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.PromoCode)(nil)).
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrPromoNotFound
	}
	return nil
}
