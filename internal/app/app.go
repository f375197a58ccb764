// Package app wires repositories, settlement services and the job queue
// for the API server and the operator CLI.
package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenest/backend/internal/config"
	"github.com/carenest/backend/internal/gateway"
	"github.com/carenest/backend/internal/jobs"
	"github.com/carenest/backend/internal/ledger"
	"github.com/carenest/backend/internal/repository"
	"github.com/carenest/backend/internal/services"
	"github.com/carenest/backend/internal/settings"
)

type App struct {
	Ledger   *ledger.Repository
	Bookings *repository.BookingRepo
	Settings *repository.SettingRepo
	Queue    *jobs.Queue

	Engine  *services.SettlementEngine
	Wallets *services.WalletService
	Flow    *services.BookingFlow
}

// New builds the settlement stack. insert may be late-bound; jobs enqueued
// before it is ready fail with jobs.ErrQueueNotReady and are logged.
func New(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, insert jobs.InsertFunc, logger *slog.Logger) *App {
	ledgerRepo := ledger.NewRepository(pool)
	bookingRepo := repository.NewBookingRepo(pool)
	settingRepo := repository.NewSettingRepo(pool)
	zoneRepo := repository.NewZoneRepo(pool)

	if ok, err := zoneRepo.DetectGeometry(ctx); err != nil {
		logger.Warn("zone geometry detection failed, using pincode and city lookup", "error", err)
	} else if !ok {
		logger.Info("zone boundaries unavailable, using pincode and city lookup")
	}

	resolver := settings.NewResolver(settingRepo, cfg, logger)
	commission := services.NewCommissionResolver(zoneRepo, resolver, logger)
	wallets := services.NewWalletService(pool, ledgerRepo, bookingRepo, commission, logger)
	queue := jobs.NewQueue(insert, cfg.ReconcileDelay)

	engine := &services.SettlementEngine{
		Pool:         pool,
		Ledger:       ledgerRepo,
		Bookings:     bookingRepo,
		Wallets:      wallets,
		Gateway:      gateway.NewRazorpay(cfg.Razorpay.BaseURL),
		Settings:     resolver,
		Chats:        repository.NewChatRepo(pool),
		Notifier:     queue,
		Scheduler:    queue,
		Currency:     cfg.Currency,
		PollAttempts: cfg.CapturePollAttempts,
		PollInterval: cfg.CapturePollInterval,
		Logger:       logger,
	}

	return &App{
		Ledger:   ledgerRepo,
		Bookings: bookingRepo,
		Settings: settingRepo,
		Queue:    queue,
		Engine:   engine,
		Wallets:  wallets,
		Flow:     services.NewBookingFlow(bookingRepo, engine, logger),
	}
}
