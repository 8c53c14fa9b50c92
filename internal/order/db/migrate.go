package db

import (
	"context"
	"fmt"

	"ms-pos/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates every table the service uses when it does not exist yet.
// Postgres deployments normally run the SQL migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []any{
		(*models.Order)(nil),
		(*models.PromoCode)(nil),
		(*models.SettingsRecord)(nil),
		(*models.Feedback)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", m, err)
		}
	}

	indexes := []struct {
		name, table, column string
	}{
		{"idx_orders_created_at", "orders", "created_at"},
		{"idx_orders_status", "orders", "status"},
		{"idx_feedbacks_created_at", "feedbacks", "created_at"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Table(idx.table).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
