// Command migrate manages the Postgres schema of the POS service.
//
//	migrate up|down|version|seed
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"ms-pos/internal/config"
	"ms-pos/internal/database/migrations"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order"
	"ms-pos/internal/order/db"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up|down|version|seed")
	os.Exit(2)
}

func main() {
	if len(os.Args) != 2 {
		usage()
	}

	log := logger.New(os.Stdout, logger.INFO)

	cfg, _, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal("CONFIG", "migrate only runs against Postgres; SQLite schemas are created on startup")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
	// closing the runner also closes bunDB
	defer runner.Close()

	switch os.Args[1] {
	case "up":
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "✅ Done.")
	case "down":
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "✅ All migrations rolled back")
	case "version":
		v, dirty, ok, err := runner.Version()
		if err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if !ok {
			log.Info("MIGRATE", "No migrations applied")
			return
		}
		log.Info("MIGRATE", fmt.Sprintf("Schema version %d (dirty=%t)", v, dirty))
	case "seed":
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if err := seedData(ctx, db.New(bunDB), log); err != nil {
			log.Fatal("SEED", err.Error())
		}
	default:
		usage()
	}
}

// seedData adds demo promo codes. Existing codes are left alone.
func seedData(ctx context.Context, store *db.DB, log *logger.Logger) error {
	limit := 100
	promos := []models.PromoCode{
		{Code: "WELCOME10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true},
		{Code: "LUNCH50", DiscountType: models.DiscountFixed, DiscountValue: 50, MinOrderAmount: 300, UsageLimit: &limit, IsActive: true},
	}

	for i := range promos {
		promos[i].CreatedAt = time.Now().UTC()
		err := store.CreatePromoCode(ctx, &promos[i])
		switch {
		case errors.Is(err, order.ErrPromoExists):
			log.Info("SEED", fmt.Sprintf("Promo code %s already present", promos[i].Code))
		case err != nil:
			return fmt.Errorf("seed promo %s: %w", promos[i].Code, err)
		default:
			log.Info("SEED", fmt.Sprintf("Seeded promo code %s", promos[i].Code))
		}
	}
	return nil
}
