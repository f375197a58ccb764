package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carenest/backend/internal/gateway"
	"github.com/carenest/backend/internal/ledger"
	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/repository"
)

const (
	defaultPollAttempts = 5
	defaultPollInterval = 800 * time.Millisecond
	unknownOrderID      = "unknown"
)

// SettlementLedger is the transaction store used by the settlement engine.
type SettlementLedger interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, orderID string) error
	MarkTransactionSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, response json.RawMessage) (bool, error)
	MarkTransactionFailed(ctx context.Context, id uuid.UUID, response json.RawMessage) (bool, error)
	UpsertPaymentTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
}

// SettlementBookingRepo is the booking store used by the settlement engine.
type SettlementBookingRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error)
	GetByPaymentOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error)
	SetPaymentOrder(ctx context.Context, id uuid.UUID, orderID string) error
	MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, commission int64) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, orderID string) (bool, error)
}

// WalletCreditor credits a therapist inside the settling transaction.
type WalletCreditor interface {
	CreditWallet(ctx context.Context, tx pgx.Tx, therapistID, bookingID uuid.UUID, amount int64) (*CreditResult, error)
}

type ChatCloser interface {
	CloseForBooking(ctx context.Context, bookingID uuid.UUID) error
}

// PaymentSucceededEvent is emitted once per settled payment.
type PaymentSucceededEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	UserID        uuid.UUID `json:"user_id"`
	TherapistID   uuid.UUID `json:"therapist_id"`
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
}

// WalletCreditedEvent is emitted once per therapist credit.
type WalletCreditedEvent struct {
	TherapistID uuid.UUID `json:"therapist_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	Credited    int64     `json:"credited"`
	Commission  int64     `json:"commission"`
	Balance     int64     `json:"balance"`
}

// Notifier triggers downstream notifications. Failures never affect settlement.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, ev PaymentSucceededEvent) error
	WalletCredited(ctx context.Context, ev WalletCreditedEvent) error
}

// ReconcileScheduler arranges a later status check for an order.
type ReconcileScheduler interface {
	ScheduleReconcile(ctx context.Context, orderID string) error
}

// InitiateResult is what a client needs to open the gateway checkout.
type InitiateResult struct {
	OrderID       string    `json:"orderId"`
	TransactionID uuid.UUID `json:"transactionId"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	KeyID         string    `json:"key"`
}

// CallbackParams carries every place a gateway or client may put the order id.
type CallbackParams struct {
	GatewayOrderID string
	OrderID        string
	QueryOrderID   string
	PaymentID      string
	Signature      string
}

// ResolveOrderID returns the first non-empty order id.
func (p CallbackParams) ResolveOrderID() string {
	for _, id := range []string{p.GatewayOrderID, p.OrderID, p.QueryOrderID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// CallbackOutcome is the settlement result reported back to the caller.
type CallbackOutcome struct {
	Success       bool
	OrderID       string
	TransactionID string
	Reason        string
}

// StatusSnapshot is the verify-status view of an order.
type StatusSnapshot struct {
	OrderID              string     `json:"orderId"`
	GatewayTransactionID *string    `json:"gatewayTransactionId"`
	Status               string     `json:"status"`
	Amount               int64      `json:"amount"`
	BookingID            *uuid.UUID `json:"bookingId"`
}

// sleepFn waits between capture polls. Swapped out in tests.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SettlementEngine drives a booking payment from order creation to a settled
// or failed terminal state. The callback, client verify polls and the
// reconcile job may race on one order; the pending->success conditional
// update decides which of them credits the wallet.
type SettlementEngine struct {
	Pool      TxBeginner
	Ledger    SettlementLedger
	Bookings  SettlementBookingRepo
	Wallets   WalletCreditor
	Gateway   gateway.Gateway
	Settings  SettingsProvider
	Chats     ChatCloser
	Notifier  Notifier
	Scheduler ReconcileScheduler

	Currency     string
	PollAttempts int
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (e *SettlementEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *SettlementEngine) currency() string {
	if e.Currency == "" {
		return "INR"
	}
	return e.Currency
}

// Initiate creates a gateway order for the booking and records the pending payment.
func (e *SettlementEngine) Initiate(ctx context.Context, bookingID, userID uuid.UUID) (*InitiateResult, error) {
	b, err := e.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.PaymentStatus == models.PaymentStatusSuccess {
		return nil, ErrAlreadyPaid
	}
	if !b.Payable() {
		return nil, ErrBookingNotPayable
	}
	if b.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	gw := e.Settings.Snapshot(ctx).Gateway()
	if !gw.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	if b.Status == models.BookingStatusBooked {
		if _, err := e.Bookings.UpdateStatus(ctx, b.ID, models.BookingStatusAwaitingPayment, models.BookingStatusBooked); err != nil {
			e.logger().Warn("move booking to awaiting_payment failed", "booking_id", b.ID, "error", err)
		}
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	mode := models.PaymentModeGateway
	txn := &models.Transaction{
		ID:              uuid.New(),
		BookingID:       &b.ID,
		UserID:          b.UserID,
		TherapistID:     &b.TherapistID,
		TransactionType: models.TxTypePayment,
		Amount:          b.Amount,
		PaymentMode:     &mode,
		Status:          models.TxStatusPending,
		GatewayOrderID:  &receipt,
	}
	if err := e.Ledger.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("record pending payment: %w", err)
	}

	order, err := e.Gateway.CreateOrder(ctx, gateway.Keys{KeyID: gw.KeyID, KeySecret: gw.KeySecret}, b.Amount, e.currency(), receipt)
	if err != nil {
		if _, ferr := e.Ledger.MarkTransactionFailed(ctx, txn.ID, errorPayload(err)); ferr != nil {
			e.logger().Warn("mark transaction failed", "transaction_id", txn.ID, "error", ferr)
		}
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if err := e.Ledger.SetGatewayOrderID(ctx, txn.ID, order.ID); err != nil {
		return nil, fmt.Errorf("record gateway order id: %w", err)
	}
	if err := e.Bookings.SetPaymentOrder(ctx, b.ID, order.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("record booking order: %w", err)
	}

	if e.Scheduler != nil {
		if err := e.Scheduler.ScheduleReconcile(ctx, order.ID); err != nil {
			e.logger().Warn("schedule reconcile failed", "order_id", order.ID, "error", err)
		}
	}

	e.logger().Info("payment initiated", "booking_id", b.ID, "order_id", order.ID, "transaction_id", txn.ID, "amount", b.Amount)
	return &InitiateResult{
		OrderID:       order.ID,
		TransactionID: txn.ID,
		Amount:        b.Amount,
		Currency:      e.currency(),
		KeyID:         gw.KeyID,
	}, nil
}

// HandleCallback settles an order from a gateway or client confirmation. It
// never returns an error: every failure is folded into the outcome.
func (e *SettlementEngine) HandleCallback(ctx context.Context, p CallbackParams) CallbackOutcome {
	orderID := p.ResolveOrderID()
	out := CallbackOutcome{OrderID: orderID}
	if orderID == "" {
		out.OrderID = unknownOrderID
		out.Reason = "missing order id"
		return out
	}

	gw := e.Settings.Snapshot(ctx).Gateway()
	if !gw.Configured() {
		out.Reason = ErrGatewayNotConfigured.Error()
		return out
	}
	keys := gateway.Keys{KeyID: gw.KeyID, KeySecret: gw.KeySecret}

	paymentID := ""
	var response json.RawMessage
	if gateway.VerifySignature(orderID, p.PaymentID, p.Signature, gw.KeySecret) {
		paymentID = p.PaymentID
	} else {
		e.logger().Warn("callback signature not verified, checking capture", "order_id", orderID, "error", gateway.ErrSignatureMismatch)
		res, err := e.pollCapture(ctx, keys, orderID)
		if err != nil {
			e.logger().Error("capture lookup unavailable", "order_id", orderID, "error", err)
			out.Reason = "payment status could not be confirmed, please retry verification"
			return out
		}
		response = res.Response
		if res.Payment == nil {
			e.markFailed(ctx, orderID, response)
			out.Reason = "payment verification failed"
			return out
		}
		paymentID = res.Payment.ID
	}

	txn, err := e.settleOrder(ctx, orderID, paymentID, response)
	if err != nil {
		e.logger().Error("settlement failed", "order_id", orderID, "error", err)
		out.Reason = settlementReason(err)
		return out
	}
	out.Success = true
	if txn.GatewayTransactionID != nil {
		out.TransactionID = *txn.GatewayTransactionID
	}
	return out
}

// VerifyStatus reports an order's payment state, reconciling pending gateway
// payments against the gateway first. It reports success only after the
// gateway confirms a capture.
func (e *SettlementEngine) VerifyStatus(ctx context.Context, orderID string) (*StatusSnapshot, error) {
	txn, err := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	if txn == nil {
		b, err := e.Bookings.GetByPaymentOrderID(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load booking: %w", err)
		}
		pending := &StatusSnapshot{OrderID: orderID, Status: models.TxStatusPending, Amount: b.Amount, BookingID: &b.ID}
		res, ok := e.tryCapture(ctx, orderID)
		if !ok || res.Payment == nil {
			return pending, nil
		}
		txn, err = e.settleOrder(ctx, orderID, res.Payment.ID, res.Response)
		if err != nil {
			return e.terminalSnapshot(ctx, orderID, err)
		}
		return snapshotOf(txn), nil
	}

	if txn.IsGatewayPayment() && txn.Status == models.TxStatusPending {
		if res, ok := e.tryCapture(ctx, orderID); ok && res.Payment != nil {
			settled, err := e.finalizeSuccess(ctx, txn, res.Payment.ID, res.Response)
			if err != nil {
				return e.terminalSnapshot(ctx, orderID, err)
			}
			txn = settled
		}
	}
	return snapshotOf(txn), nil
}

// terminalSnapshot reports a capture that ended in a failed transaction as
// that transaction's state. Other errors are returned unchanged.
func (e *SettlementEngine) terminalSnapshot(ctx context.Context, orderID string, err error) (*StatusSnapshot, error) {
	if !errors.Is(err, ErrDuplicatePayment) && !errors.Is(err, ErrTransactionFailed) {
		return nil, err
	}
	txn, lerr := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	if lerr != nil {
		return nil, err
	}
	return snapshotOf(txn), nil
}

// ExpireOrder fails a pending gateway order that the gateway reports as not
// captured. The reconcile job calls it once its retries are used up. An
// unreachable gateway leaves the order pending.
func (e *SettlementEngine) ExpireOrder(ctx context.Context, orderID string) (*StatusSnapshot, error) {
	txn, err := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	if errors.Is(err, ledger.ErrNotFound) {
		return e.VerifyStatus(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if !txn.IsGatewayPayment() || txn.Status != models.TxStatusPending {
		return snapshotOf(txn), nil
	}

	res, ok := e.tryCapture(ctx, orderID)
	if !ok {
		return snapshotOf(txn), nil
	}
	if res.Payment != nil {
		settled, err := e.finalizeSuccess(ctx, txn, res.Payment.ID, res.Response)
		if err != nil {
			return e.terminalSnapshot(ctx, orderID, err)
		}
		return snapshotOf(settled), nil
	}

	e.markFailed(ctx, orderID, res.Response)
	current, err := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload transaction: %w", err)
	}
	return snapshotOf(current), nil
}

func (e *SettlementEngine) tryCapture(ctx context.Context, orderID string) (gateway.CaptureResult, bool) {
	gw := e.Settings.Snapshot(ctx).Gateway()
	if !gw.Configured() {
		return gateway.CaptureResult{}, false
	}
	res, err := e.pollCapture(ctx, gateway.Keys{KeyID: gw.KeyID, KeySecret: gw.KeySecret}, orderID)
	if err != nil {
		e.logger().Warn("capture lookup unavailable", "order_id", orderID, "error", err)
		return res, false
	}
	return res, true
}

// pollCapture asks the gateway for a captured payment a bounded number of
// times. It returns an error only if the gateway never answered.
func (e *SettlementEngine) pollCapture(ctx context.Context, keys gateway.Keys, orderID string) (gateway.CaptureResult, error) {
	attempts, interval := e.PollAttempts, e.PollInterval
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	var last gateway.CaptureResult
	var lastErr error
	answered := false
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleepFn(ctx, interval); err != nil {
				lastErr = err
				break
			}
		}
		res, err := e.Gateway.FetchCapturedPayment(ctx, keys, orderID)
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		last = res
		if res.Payment != nil {
			return res, nil
		}
	}
	if !answered {
		return last, lastErr
	}
	return last, nil
}

// settleOrder finalizes a confirmed payment, constructing the transaction
// from the booking when the pending record is missing.
func (e *SettlementEngine) settleOrder(ctx context.Context, orderID, paymentID string, response json.RawMessage) (*models.Transaction, error) {
	txn, err := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	if errors.Is(err, ledger.ErrNotFound) {
		b, berr := e.Bookings.GetByPaymentOrderID(ctx, orderID)
		if errors.Is(berr, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		if berr != nil {
			return nil, fmt.Errorf("load booking: %w", berr)
		}
		mode := models.PaymentModeGateway
		oid := orderID
		txn, err = e.Ledger.UpsertPaymentTransaction(ctx, &models.Transaction{
			ID:              uuid.New(),
			BookingID:       &b.ID,
			UserID:          b.UserID,
			TherapistID:     &b.TherapistID,
			TransactionType: models.TxTypePayment,
			Amount:          b.Amount,
			PaymentMode:     &mode,
			Status:          models.TxStatusPending,
			GatewayOrderID:  &oid,
		})
		if err != nil {
			return nil, fmt.Errorf("reconstruct transaction: %w", err)
		}
		e.logger().Info("reconstructed missing payment transaction", "order_id", orderID, "booking_id", b.ID)
	} else if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	return e.finalizeSuccess(ctx, txn, paymentID, response)
}

// finalizeSuccess is safe to call any number of times for one transaction:
// only the caller whose conditional update moves it out of pending credits
// the wallet and settles the booking. The booking row is locked before the
// update so a capture on a booking another order already paid is failed for
// refund instead of colliding with the one-success-per-booking index.
func (e *SettlementEngine) finalizeSuccess(ctx context.Context, txn *models.Transaction, paymentID string, response json.RawMessage) (*models.Transaction, error) {
	switch txn.Status {
	case models.TxStatusSuccess:
		return txn, nil
	case models.TxStatusFailed:
		e.logger().Error("captured payment for failed transaction needs manual refund",
			"order_id", txn.OrderID(), "payment_id", paymentID)
		return nil, ErrTransactionFailed
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var booking *models.Booking
	if txn.BookingID != nil {
		booking, err = e.Bookings.GetByIDForUpdate(ctx, tx, *txn.BookingID)
		if err != nil {
			return nil, fmt.Errorf("lock booking: %w", err)
		}
		if booking.PaymentStatus == models.PaymentStatusSuccess {
			_ = tx.Rollback(ctx)
			return e.failDuplicate(ctx, txn, booking, paymentID)
		}
	}

	moved, err := e.Ledger.MarkTransactionSuccess(ctx, tx, txn.ID, paymentID, response)
	if err != nil {
		return nil, fmt.Errorf("mark transaction success: %w", err)
	}
	if !moved {
		_ = tx.Rollback(ctx)
		return e.reload(ctx, txn)
	}

	var credit *CreditResult
	if booking != nil {
		if booking.Status == models.BookingStatusCancelled {
			e.logger().Warn("payment captured for cancelled booking, no credit issued",
				"booking_id", booking.ID, "order_id", txn.OrderID(), "payment_id", paymentID)
		} else {
			credit, err = e.Wallets.CreditWallet(ctx, tx, booking.TherapistID, booking.ID, booking.Amount)
			if err != nil {
				return nil, fmt.Errorf("credit wallet: %w", err)
			}
			if _, err := e.Bookings.MarkPaidTx(ctx, tx, booking.ID, paymentID, credit.Commission); err != nil {
				return nil, fmt.Errorf("mark booking paid: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}

	txn.Status = models.TxStatusSuccess
	txn.GatewayTransactionID = &paymentID
	e.logger().Info("payment settled", "order_id", txn.OrderID(), "payment_id", paymentID, "amount", txn.Amount)

	if booking != nil && credit != nil {
		e.afterSettlement(ctx, txn, booking, credit)
	}
	return txn, nil
}

// failDuplicate fails a pending capture whose booking is already paid. If a
// concurrent finalizer settled this same transaction, its result is returned.
func (e *SettlementEngine) failDuplicate(ctx context.Context, txn *models.Transaction, b *models.Booking, paymentID string) (*models.Transaction, error) {
	audit, _ := json.Marshal(map[string]any{
		"error":      "duplicate capture, refund required",
		"payment_id": paymentID,
		"booking_id": b.ID,
	})
	moved, err := e.Ledger.MarkTransactionFailed(ctx, txn.ID, audit)
	if err != nil {
		return nil, fmt.Errorf("mark duplicate failed: %w", err)
	}
	if !moved {
		return e.reload(ctx, txn)
	}
	e.logger().Error("duplicate capture for paid booking needs manual refund",
		"booking_id", b.ID, "order_id", txn.OrderID(), "payment_id", paymentID, "amount", txn.Amount)
	return nil, ErrDuplicatePayment
}

// reload returns the transaction as another finalizer left it.
func (e *SettlementEngine) reload(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	current, err := e.Ledger.GetTransactionByOrderID(ctx, txn.OrderID())
	if err != nil {
		return nil, fmt.Errorf("reload transaction: %w", err)
	}
	if current.Status == models.TxStatusFailed {
		return nil, ErrTransactionFailed
	}
	return current, nil
}

// afterSettlement runs the best-effort side effects of a settled payment.
func (e *SettlementEngine) afterSettlement(ctx context.Context, txn *models.Transaction, b *models.Booking, credit *CreditResult) {
	if e.Chats != nil {
		if err := e.Chats.CloseForBooking(ctx, b.ID); err != nil {
			e.logger().Warn("close chat failed", "booking_id", b.ID, "error", err)
		}
	}
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.PaymentSucceeded(ctx, PaymentSucceededEvent{
		BookingID:     b.ID,
		UserID:        b.UserID,
		TherapistID:   b.TherapistID,
		OrderID:       txn.OrderID(),
		TransactionID: *txn.GatewayTransactionID,
		Amount:        txn.Amount,
	}); err != nil {
		e.logger().Warn("payment notification failed", "booking_id", b.ID, "error", err)
	}
	ev := WalletCreditedEvent{TherapistID: b.TherapistID, BookingID: b.ID, Credited: credit.Credited, Commission: credit.Commission}
	if credit.Wallet != nil {
		ev.Balance = credit.Wallet.Balance
	}
	if err := e.Notifier.WalletCredited(ctx, ev); err != nil {
		e.logger().Warn("wallet notification failed", "therapist_id", b.TherapistID, "error", err)
	}
}

// markFailed moves the order's pending transaction to failed and leaves the
// booking retriable. A booking that has moved on to a newer order is not touched.
func (e *SettlementEngine) markFailed(ctx context.Context, orderID string, response json.RawMessage) {
	var bookingID *uuid.UUID
	txn, err := e.Ledger.GetTransactionByOrderID(ctx, orderID)
	switch {
	case err == nil:
		if txn.Status == models.TxStatusSuccess {
			return
		}
		bookingID = txn.BookingID
		if txn.Status == models.TxStatusPending {
			if _, err := e.Ledger.MarkTransactionFailed(ctx, txn.ID, response); err != nil {
				e.logger().Error("mark transaction failed", "order_id", orderID, "error", err)
			}
		}
	case errors.Is(err, ledger.ErrNotFound):
		if b, berr := e.Bookings.GetByPaymentOrderID(ctx, orderID); berr == nil {
			bookingID = &b.ID
		}
	default:
		e.logger().Error("load transaction", "order_id", orderID, "error", err)
	}
	if bookingID == nil {
		return
	}
	moved, err := e.Bookings.MarkPaymentFailed(ctx, *bookingID, orderID)
	if err != nil {
		e.logger().Error("mark booking payment failed", "booking_id", *bookingID, "error", err)
	}
	e.logger().Warn("payment failed", "order_id", orderID, "booking_id", *bookingID, "booking_updated", moved)
}

func snapshotOf(t *models.Transaction) *StatusSnapshot {
	return &StatusSnapshot{
		OrderID:              t.OrderID(),
		GatewayTransactionID: t.GatewayTransactionID,
		Status:               t.Status,
		Amount:               t.Amount,
		BookingID:            t.BookingID,
	}
}

func settlementReason(err error) string {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return "transaction not found"
	case errors.Is(err, ErrTransactionFailed):
		return "payment was already marked failed"
	case errors.Is(err, ErrDuplicatePayment):
		return "booking was already paid, this payment will be refunded"
	default:
		return "payment could not be settled"
	}
}

func errorPayload(err error) json.RawMessage {
	body := map[string]any{"error": err.Error()}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		body["status_code"] = gwErr.StatusCode
		if json.Valid([]byte(gwErr.Body)) {
			body["gateway_body"] = json.RawMessage(gwErr.Body)
		}
	}
	raw, _ := json.Marshal(body)
	return raw
}
