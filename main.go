package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-pos/internal/auth"
	"ms-pos/internal/bus"
	"ms-pos/internal/config"
	"ms-pos/internal/database/migrations"
	"ms-pos/internal/feedback"
	"ms-pos/internal/kafka"
	"ms-pos/internal/logger"
	"ms-pos/internal/order"
	"ms-pos/internal/order/db"
	orderkafka "ms-pos/internal/order/kafka"
	"ms-pos/internal/order/order_api"
	rediswrap "ms-pos/internal/order/redis"
	"ms-pos/internal/order/sequence"
	"ms-pos/internal/realtime"
	"ms-pos/internal/settings"
	"ms-pos/internal/tables"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if cfg.Driver == "sqlite" {
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// sqlite allows one writer; a single connection keeps transactions from deadlocking
		sqldb.SetMaxOpenConns(1)
		log.Info("DATABASE", fmt.Sprintf("✅ Using SQLite at %s", cfg.SQLitePath))
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func prepareSchema(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("MIGRATE", "Automatic migrations disabled")
		return nil
	}
	if cfg.Driver == "sqlite" {
		return db.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
	// the runner shares bunDB's pool; closing it would close the pool too
	return runner.MigrateUp()
}

// connectRedis returns nil when Redis is unreachable. The service then runs as a
// single instance: in-process bus, local sequence, no submission guard.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, running single-instance: %v", cfg.Addr, err))
		client.Close()
		return nil
	}

	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

type kafkaOutputs struct {
	notifier *orderkafka.Notifier
	mirror   *orderkafka.EventMirror
}

func (k *kafkaOutputs) Close(log *logger.Logger) {
	if k == nil {
		return
	}
	if err := k.notifier.Close(); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Closing notifier: %v", err))
	}
	if err := k.mirror.Close(); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Closing event mirror: %v", err))
	}
}

func setupKafka(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) *kafkaOutputs {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, staff notifications are not dispatched")
		return nil
	}

	brokers := cfg.KafkaBrokers()
	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", brokers))

	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopicsExist(topicCtx, brokers, []string{cfg.NotificationTopic, cfg.OrderEventsTopic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	return &kafkaOutputs{
		notifier: orderkafka.NewNotifier(brokers, cfg.NotificationTopic, log),
		mirror:   orderkafka.NewEventMirror(brokers, cfg.OrderEventsTopic, log),
	}
}

func healthHandler(bunDB *bun.DB, rdb *redis.Client, gw *realtime.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{
			"status":      "ok",
			"database":    "ok",
			"redis":       "disabled",
			"connections": gw.ConnectionCount(),
		}
		if err := bunDB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
		if rdb != nil {
			body["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				body["redis"] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func main() {
	cfg, loadedEnv, err := config.Load()
	if err != nil {
		logger.New(os.Stderr, logger.INFO).Fatal("CONFIG", err.Error())
	}

	log, err := logger.NewLogger(logger.Options{
		Service:  "ms-pos",
		Dir:      cfg.Log.Dir,
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	if err != nil {
		logger.New(os.Stderr, logger.INFO).Fatal("LOGGER", err.Error())
	}
	defer log.Close()

	log.Info("APP", "Starting POS service initialization")
	if loadedEnv {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	bunDB, err := openDatabase(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, bunDB, cfg.Database, log); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Schema setup failed: %v", err))
	}

	rdb := connectRedis(ctx, cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	orderStore := db.New(bunDB)

	settingsStore := settings.NewStore(bunDB, log)
	if err := settingsStore.Load(ctx); err != nil {
		log.Fatal("SETTINGS", fmt.Sprintf("Failed to load settings: %v", err))
	}

	// --- Messaging ---
	var eventBus bus.Bus
	var allocator sequence.Allocator
	opts := order.Options{
		OrdersTopic:   cfg.Redis.OrdersChannel,
		Policy:        order.PolicyFor(cfg.Orders.StrictTransitions),
		NotifyTimeout: cfg.Orders.NotifyTimeout,
	}

	if rdb != nil {
		eventBus = bus.NewRedis(rdb, log, cfg.Gateway.OutboundBuffer)
		opts.Guard = rediswrap.NewRedis(rdb, log, cfg.Orders.SubmissionLockTTL)
	} else {
		memBus := bus.NewMemory(cfg.Gateway.OutboundBuffer)
		defer memBus.Close()
		eventBus = memBus
	}

	if cfg.Orders.SequenceMode == "redis" && rdb != nil {
		allocator = sequence.NewRedis(rdb, orderStore, cfg.Redis.SequencePrefix)
		log.Info("SEQUENCE", "Order numbers allocated through Redis")
	} else {
		allocator = sequence.NewLocal(orderStore)
		log.Warn("SEQUENCE", "Order numbers allocated in-process; run a single instance")
	}

	var publisher order.EventPublisher = eventBus
	kafkaOut := setupKafka(ctx, cfg.Kafka, log)
	if kafkaOut != nil {
		defer kafkaOut.Close(log)
		publisher = bus.NewTee(eventBus, log, kafkaOut.mirror)
		opts.Notifier = kafkaOut.notifier
	}

	if cfg.Orders.StrictTransitions {
		log.Info("ORDER", "Strict status transitions enabled")
	}

	// --- Services ---
	orderService := order.NewOrderService(orderStore, allocator, publisher, settingsStore, log, opts)
	promoService := order.NewPromoService(orderStore, log)
	feedbackService := feedback.NewService(&feedback.BunStore{DB: bunDB}, log)

	qr, err := tables.NewQRGenerator(cfg.Tables.PublicBaseURL, cfg.Tables.QRSize, cfg.Tables.QRCacheSize)
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	handler := order_api.NewHandler(orderService, promoService, settingsStore, feedbackService, qr, log)

	gateway := realtime.New(eventBus, log, realtime.Options{
		Topics:         []string{cfg.Redis.OrdersChannel, cfg.Redis.StatsChannel},
		IdleTimeout:    cfg.Gateway.IdleTimeout,
		WriteTimeout:   cfg.Gateway.WriteTimeout,
		OutboundBuffer: cfg.Gateway.OutboundBuffer,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
	})

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to set up token verification: %v", err))
	}
	if verifier == nil {
		log.LogSecurity("AUTH_DISABLED", "JWT_SECRET and OIDC_ISSUER are empty; operator routes are open")
	}

	// --- Router ---
	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(order_api.RequestLogger(log))

	allowed := cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", order_api.IdempotencyHeader},
		MaxAge:         300,
	}))

	handler.Routes(r,
		auth.Middleware(verifier, log),
		order_api.RateLimit(cfg.Orders.RateLimitPerSec, cfg.Orders.RateLimitBurst, log),
	)
	log.Info("ROUTER", "API routes registered under /api")

	r.Get("/ws", gateway.ServeWS)
	r.Get("/events", gateway.ServeSSE)
	r.Get("/health", healthHandler(bunDB, rdb, gateway))
	log.Info("ROUTER", "Live feed registered at /ws and /events")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // /ws and /events are long-lived
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 POS service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	gateway.Close()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ POS service shutdown complete")
	}
}
