package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carenest/backend/internal/auth"
	"github.com/carenest/backend/internal/config"
	"github.com/carenest/backend/internal/models"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [orderId]",
		Short: "Check an order against the gateway and settle it if captured",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			snap, err := e.app.Engine.VerifyStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
		enqueue   bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile pending gateway payments older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			stale, err := e.app.Ledger.ListStalePending(cmd.Context(), time.Now().Add(-olderThan), limit)
			if err != nil {
				return err
			}
			var settled, pending, failed int
			for _, t := range stale {
				if t.GatewayOrderID == nil {
					continue
				}
				orderID := *t.GatewayOrderID
				if enqueue {
					if err := e.app.Queue.Reconcile(cmd.Context(), orderID); err != nil {
						fmt.Fprintf(os.Stderr, "%s: enqueue: %v\n", orderID, err)
						failed++
					} else {
						pending++
					}
					continue
				}
				snap, err := e.app.Engine.VerifyStatus(cmd.Context(), orderID)
				switch {
				case err != nil:
					fmt.Fprintf(os.Stderr, "%s: %v\n", orderID, err)
					failed++
				case snap.Status == models.TxStatusSuccess:
					settled++
				default:
					pending++
				}
			}
			fmt.Printf("checked %d: settled %d, still pending %d, errors %d\n", len(stale), settled, pending, failed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "only pending payments created before now minus this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum payments to check")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue reconcile jobs instead of checking inline")
	return cmd
}

func walletCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "wallet [therapistId]",
		Short: "Show a therapist's wallet and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid therapist id: %w", err)
			}
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			w, err := e.app.Wallets.GetBalance(cmd.Context(), id)
			if err != nil {
				return err
			}
			txns, err := e.app.Wallets.GetTransactions(cmd.Context(), id, history, 0)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"wallet": w, "transactions": txns})
		},
	}
	cmd.Flags().IntVar(&history, "history", 20, "number of transactions to show")
	return cmd
}

func settingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Manage runtime settings overrides",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a settings override (an empty value clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			return e.app.Settings.Set(cmd.Context(), args[0], args[1])
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "token [subjectId]",
		Short: "Issue an API bearer token for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid subject id: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.NewService(cfg.JWTSecret).IssueToken(cmd.Context(), id, role)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "user, therapist or admin")
	return cmd
}
