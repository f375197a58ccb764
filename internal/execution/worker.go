package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/riverqueue/river"

	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/services"
)

const (
	reconcileMaxAttempts = 6
	notifyTimeout        = 10 * time.Second
)

// ReconcilePaymentArgs asks for a status check of one gateway order.
type ReconcilePaymentArgs struct {
	OrderID string `json:"order_id"`
}

func (ReconcilePaymentArgs) Kind() string { return "reconcile_payment" }

func (ReconcilePaymentArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: reconcileMaxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// StatusVerifier is the settlement surface the reconcile worker drives.
type StatusVerifier interface {
	VerifyStatus(ctx context.Context, orderID string) (*services.StatusSnapshot, error)
	ExpireOrder(ctx context.Context, orderID string) (*services.StatusSnapshot, error)
}

// ReconcilePaymentWorker settles orders whose callback never arrived. A
// still-pending order is returned as an error so river retries it later; on
// the last attempt an uncaptured order is expired instead.
type ReconcilePaymentWorker struct {
	river.WorkerDefaults[ReconcilePaymentArgs]
	verifier StatusVerifier
	logger   *slog.Logger
}

func NewReconcilePaymentWorker(v StatusVerifier, logger *slog.Logger) *ReconcilePaymentWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcilePaymentWorker{verifier: v, logger: logger}
}

func (w *ReconcilePaymentWorker) Work(ctx context.Context, job *river.Job[ReconcilePaymentArgs]) error {
	snap, err := w.verifier.VerifyStatus(ctx, job.Args.OrderID)
	if errors.Is(err, services.ErrTransactionNotFound) {
		return river.JobCancel(err)
	}
	if err != nil {
		return fmt.Errorf("verify order %s: %w", job.Args.OrderID, err)
	}
	if snap.Status == models.TxStatusPending {
		if job.Attempt < job.MaxAttempts {
			return fmt.Errorf("order %s still pending", job.Args.OrderID)
		}
		snap, err = w.verifier.ExpireOrder(ctx, job.Args.OrderID)
		if err != nil {
			return fmt.Errorf("expire order %s: %w", job.Args.OrderID, err)
		}
		if snap.Status == models.TxStatusPending {
			w.logger.Warn("order still pending after final reconcile attempt", "order_id", job.Args.OrderID)
			return nil
		}
	}
	w.logger.Info("order reconciled", "order_id", job.Args.OrderID, "status", snap.Status)
	return nil
}

// NextRetry spaces rechecks five minutes apart per attempt.
func (w *ReconcilePaymentWorker) NextRetry(job *river.Job[ReconcilePaymentArgs]) time.Time {
	return time.Now().Add(time.Duration(job.Attempt) * 5 * time.Minute)
}

// NotifyArgs carries one notification trigger.
type NotifyArgs struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (NotifyArgs) Kind() string { return "notify" }

// NotifyWorker forwards notification triggers to a webhook, or logs them
// when no webhook is configured.
type NotifyWorker struct {
	river.WorkerDefaults[NotifyArgs]
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotifyWorker(webhookURL string, logger *slog.Logger) *NotifyWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: notifyTimeout},
		logger:     logger,
	}
}

func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyArgs]) error {
	if w.webhookURL == "" {
		w.logger.Info("notification", "event", job.Args.Event, "payload", string(job.Args.Payload))
		return nil
	}
	body, err := json.Marshal(job.Args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return river.JobCancel(fmt.Errorf("build notify request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling notify webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned status %d", resp.StatusCode)
	}
	return nil
}
