package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/spf13/cobra"

	"github.com/carenest/backend/internal/app"
	"github.com/carenest/backend/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "settlectl",
		Short:        "Operator tooling for payment settlement and therapist wallets",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(settingCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the connected settlement stack for one command run.
type env struct {
	pool *pgxpool.Pool
	app  *app.App
}

func (e *env) Close() { e.pool.Close() }

// connect loads configuration and builds the settlement stack. Jobs are
// inserted through an insert-only River client; nothing is worked here.
func connect(ctx context.Context) (*env, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create river client: %w", err)
	}
	insert := func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error {
		_, err := client.Insert(ctx, args, opts)
		return err
	}

	return &env{pool: pool, app: app.New(ctx, cfg, pool, insert, logger)}, nil
}
