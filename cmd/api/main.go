package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/carenest/backend/internal/app"
	"github.com/carenest/backend/internal/auth"
	"github.com/carenest/backend/internal/config"
	"github.com/carenest/backend/internal/dashboard"
	"github.com/carenest/backend/internal/execution"
	"github.com/carenest/backend/internal/handlers"
	"github.com/carenest/backend/internal/jobs"
	"github.com/carenest/backend/internal/router"
	"github.com/carenest/backend/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	if err := migrations.Apply(ctx, pool, logger); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	// Insert func is set after the River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn jobs.InsertFunc
	insert := func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return jobs.ErrQueueNotReady
		}
		return fn(ctx, args, opts)
	}

	a := app.New(ctx, cfg, pool, insert, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewReconcilePaymentWorker(a.Engine, logger))
	river.AddWorker(workers, execution.NewNotifyWorker(cfg.NotifyWebhookURL, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error {
		_, err := riverClient.Insert(ctx, args, opts)
		return err
	}
	insertMu.Unlock()

	authSvc := auth.NewService(cfg.JWTSecret)
	paymentHandler := &handlers.PaymentHandler{
		Payments:   a.Engine,
		Bookings:   a.Flow,
		SuccessURL: cfg.PaymentSuccessURL,
		FailureURL: cfg.PaymentFailureURL,
		Logger:     logger,
	}
	walletHandler := dashboard.NewHandler(a.Wallets, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(router.New(authSvc, paymentHandler, walletHandler))

	// Start River client (processes reconcile and notify jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
