package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/riverqueue/river"

	"github.com/carenest/backend/internal/execution"
	"github.com/carenest/backend/internal/services"
)

// Notification events.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventWalletCredited   = "wallet.credited"
)

// ErrQueueNotReady is returned when a job is inserted before the river client is wired.
var ErrQueueNotReady = errors.New("job queue not ready")

// InsertFunc enqueues a job. Provided by main using river.Client.Insert.
type InsertFunc func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error

// Queue turns settlement follow-ups into river jobs.
type Queue struct {
	insert         InsertFunc
	reconcileDelay time.Duration
	now            func() time.Time
}

var (
	_ services.Notifier           = (*Queue)(nil)
	_ services.ReconcileScheduler = (*Queue)(nil)
)

// NewQueue returns a Queue. insert is typically a late-bound closure over river.Client.Insert.
func NewQueue(insert InsertFunc, reconcileDelay time.Duration) *Queue {
	return &Queue{insert: insert, reconcileDelay: reconcileDelay, now: time.Now}
}

// ScheduleReconcile enqueues a status check for orderID after the reconcile delay.
func (q *Queue) ScheduleReconcile(ctx context.Context, orderID string) error {
	if q.insert == nil {
		return ErrQueueNotReady
	}
	return q.insert(ctx, execution.ReconcilePaymentArgs{OrderID: orderID}, &river.InsertOpts{
		ScheduledAt: q.now().Add(q.reconcileDelay),
	})
}

// Reconcile enqueues an immediate status check.
func (q *Queue) Reconcile(ctx context.Context, orderID string) error {
	if q.insert == nil {
		return ErrQueueNotReady
	}
	return q.insert(ctx, execution.ReconcilePaymentArgs{OrderID: orderID}, nil)
}

func (q *Queue) PaymentSucceeded(ctx context.Context, ev services.PaymentSucceededEvent) error {
	return q.notify(ctx, EventPaymentSucceeded, ev)
}

func (q *Queue) WalletCredited(ctx context.Context, ev services.WalletCreditedEvent) error {
	return q.notify(ctx, EventWalletCredited, ev)
}

func (q *Queue) notify(ctx context.Context, event string, payload any) error {
	if q.insert == nil {
		return ErrQueueNotReady
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.insert(ctx, execution.NotifyArgs{Event: event, Payload: raw}, nil)
}
