package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carenest/backend/internal/config"
	"github.com/carenest/backend/internal/gateway"
	"github.com/carenest/backend/internal/ledger"
	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/repository"
	"github.com/carenest/backend/internal/settings"
)

// ---------------------------------------------------------------------------
// In-memory fakes for the ledger, bookings, zones, gateway and side effects.
// The ledger fake implements the same conditional updates as the SQL store
// so the settlement logic can be exercised without a database.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- stagingTx keeps undo steps; Rollback before Commit applies them in reverse. ---

type stagingTx struct {
	noopTx
	mu   sync.Mutex
	undo []func()
	done bool
}

func (s *stagingTx) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.undo = nil
	return nil
}

func (s *stagingTx) Rollback(context.Context) error {
	s.mu.Lock()
	undo := s.undo
	if s.done {
		undo = nil
	}
	s.done = true
	s.undo = nil
	s.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// staged registers undo on tx when it is a stagingTx.
func staged(tx pgx.Tx, undo func()) {
	if s, ok := tx.(*stagingTx); ok {
		s.mu.Lock()
		s.undo = append(s.undo, undo)
		s.mu.Unlock()
	}
}

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return &stagingTx{}, nil }

// --- ledger ---

type fakeLedger struct {
	mu      sync.Mutex
	txns    map[uuid.UUID]*models.Transaction
	wallets map[uuid.UUID]*models.Wallet
	seq     int
	// creditFailures makes the next n CreditWallet calls fail.
	creditFailures int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txns: make(map[uuid.UUID]*models.Transaction), wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (l *fakeLedger) insert(t *models.Transaction) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	l.seq++
	t.CreatedAt = time.Unix(int64(l.seq), 0)
	cp := *t
	l.txns[t.ID] = &cp
}

func (l *fakeLedger) CreateTransaction(_ context.Context, t *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if oid := t.OrderID(); oid != "" {
		for _, x := range l.txns {
			if x.OrderID() == oid {
				return fmt.Errorf("duplicate gateway_order_id %s", oid)
			}
		}
	}
	l.insert(t)
	return nil
}

func (l *fakeLedger) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	if err := l.CreateTransaction(ctx, t); err != nil {
		return err
	}
	id := t.ID
	staged(tx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.txns, id)
	})
	return nil
}

func (l *fakeLedger) GetTransactionByOrderID(_ context.Context, orderID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.txns {
		if t.OrderID() == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (l *fakeLedger) SetGatewayOrderID(_ context.Context, id uuid.UUID, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok {
		return ledger.ErrNotFound
	}
	t.GatewayOrderID = &orderID
	return nil
}

func (l *fakeLedger) MarkTransactionSuccess(_ context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, response json.RawMessage) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok || t.Status != models.TxStatusPending {
		return false, nil
	}
	// ux_transactions_booking_payment_success
	if t.TransactionType == models.TxTypePayment && t.BookingID != nil {
		for _, x := range l.txns {
			if x.ID != id && x.TransactionType == models.TxTypePayment && x.Status == models.TxStatusSuccess &&
				x.BookingID != nil && *x.BookingID == *t.BookingID {
				return false, fmt.Errorf("duplicate key value violates unique constraint %q", "ux_transactions_booking_payment_success")
			}
		}
	}
	prev := *t
	staged(tx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		*l.txns[id] = prev
	})
	t.Status = models.TxStatusSuccess
	t.GatewayTransactionID = &gatewayTxnID
	if len(response) > 0 {
		t.GatewayResponse = response
	}
	return true, nil
}

func (l *fakeLedger) MarkTransactionFailed(_ context.Context, id uuid.UUID, response json.RawMessage) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok || t.Status != models.TxStatusPending {
		return false, nil
	}
	t.Status = models.TxStatusFailed
	if len(response) > 0 {
		t.GatewayResponse = response
	}
	return true, nil
}

func (l *fakeLedger) UpsertPaymentTransaction(_ context.Context, t *models.Transaction) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.txns {
		if x.OrderID() == t.OrderID() {
			cp := *x
			return &cp, nil
		}
	}
	l.insert(t)
	cp := *l.txns[t.ID]
	return &cp, nil
}

func (l *fakeLedger) ListByTherapist(_ context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Transaction
	for _, t := range l.txns {
		if t.TherapistID != nil && *t.TherapistID == therapistID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLedger) EnsureWallet(_ context.Context, tx pgx.Tx, therapistID uuid.UUID) (*models.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[therapistID]
	if !ok {
		w = &models.Wallet{TherapistID: therapistID}
		l.wallets[therapistID] = w
		staged(tx, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.wallets, therapistID)
		})
	}
	cp := *w
	return &cp, nil
}

func (l *fakeLedger) CreditWallet(_ context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.creditFailures > 0 {
		l.creditFailures--
		return nil, fmt.Errorf("credit wallet: connection reset")
	}
	w, ok := l.wallets[therapistID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	w.Balance += amount
	w.TotalEarned += amount
	staged(tx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		w.Balance -= amount
		w.TotalEarned -= amount
	})
	cp := *w
	return &cp, nil
}

func (l *fakeLedger) DebitWallet(_ context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[therapistID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	if w.Balance < amount {
		return nil, ledger.ErrInsufficientBalance
	}
	w.Balance -= amount
	w.TotalWithdrawn += amount
	staged(tx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		w.Balance += amount
		w.TotalWithdrawn -= amount
	})
	cp := *w
	return &cp, nil
}

func (l *fakeLedger) wallet(therapistID uuid.UUID) *models.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[therapistID]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

func (l *fakeLedger) byType(kind string) []*models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Transaction
	for _, t := range l.txns {
		if t.TransactionType == kind {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (l *fakeLedger) byStatus(status string) []*models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Transaction
	for _, t := range l.txns {
		if t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// --- bookings ---

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
	updErr   error
	// paidFailures makes the next n MarkPaidTx calls fail.
	paidFailures int
}

func newFakeBookings(bs ...*models.Booking) *fakeBookings {
	f := &fakeBookings{bookings: make(map[uuid.UUID]*models.Booking)}
	for _, b := range bs {
		cp := *b
		f.bookings[b.ID] = &cp
	}
	return f
}

func (f *fakeBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeBookings) GetByPaymentOrderID(_ context.Context, orderID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.PaymentOrderID != nil && *b.PaymentOrderID == orderID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id uuid.UUID, to string, from ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return false, f.updErr
	}
	b, ok := f.bookings[id]
	if !ok || b.PaymentStatus == models.PaymentStatusSuccess {
		return false, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookings) SetPaymentOrder(_ context.Context, id uuid.UUID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.PaymentStatus == models.PaymentStatusSuccess {
		return repository.ErrNotFound
	}
	mode := models.PaymentModeGateway
	b.PaymentOrderID = &orderID
	b.PaymentStatus = models.PaymentStatusPending
	b.PaymentMode = &mode
	return nil
}

func (f *fakeBookings) MarkPaidTx(_ context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, commission int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paidFailures > 0 {
		f.paidFailures--
		return false, fmt.Errorf("mark paid: connection reset")
	}
	b, ok := f.bookings[id]
	if !ok || b.PaymentStatus == models.PaymentStatusSuccess || b.Status == models.BookingStatusCancelled {
		return false, nil
	}
	prev := *b
	staged(tx, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		*f.bookings[id] = prev
	})
	b.Status = models.BookingStatusCompleted
	b.PaymentStatus = models.PaymentStatusSuccess
	b.PaymentTransactionID = &gatewayTxnID
	b.Commission = &commission
	return true, nil
}

func (f *fakeBookings) MarkPaymentFailed(_ context.Context, id uuid.UUID, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.PaymentStatus == models.PaymentStatusSuccess || b.PaymentOrderID == nil || *b.PaymentOrderID != orderID {
		return false, nil
	}
	b.PaymentStatus = models.PaymentStatusFailed
	if b.Status != models.BookingStatusCancelled {
		b.Status = models.BookingStatusAwaitingPayment
	}
	return true, nil
}

func (f *fakeBookings) get(id uuid.UUID) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.bookings[id]
	return &cp
}

// --- zones ---

type fakeZones struct {
	mu         sync.Mutex
	geometry   bool
	point      *models.Zone
	pincodes   map[string]*models.Zone
	cities     map[string]*models.Zone
	pointErr   error
	pincodeErr error
	calls      []string
}

func (z *fakeZones) GeometryAvailable() bool { return z.geometry }

func (z *fakeZones) record(rule string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.calls = append(z.calls, rule)
}

func (z *fakeZones) ByPoint(_ context.Context, _, _ float64) (*models.Zone, error) {
	z.record(SourceZonePoint)
	if z.pointErr != nil {
		return nil, z.pointErr
	}
	if z.point == nil {
		return nil, repository.ErrNotFound
	}
	return z.point, nil
}

func (z *fakeZones) ByPincode(_ context.Context, pincode string) (*models.Zone, error) {
	z.record(SourceZonePincode)
	if z.pincodeErr != nil {
		return nil, z.pincodeErr
	}
	if zone, ok := z.pincodes[pincode]; ok {
		return zone, nil
	}
	return nil, repository.ErrNotFound
}

func (z *fakeZones) ByCity(_ context.Context, city string) (*models.Zone, error) {
	z.record(SourceZoneCity)
	if zone, ok := z.cities[city]; ok {
		return zone, nil
	}
	return nil, repository.ErrNotFound
}

func zone(pct float64) *models.Zone {
	return &models.Zone{ID: uuid.New(), CommissionPercent: pct, IsActive: true}
}

// --- settings ---

type settingsStore map[string]string

func (s settingsStore) GetMany(context.Context, ...string) (map[string]string, error) {
	return map[string]string(s), nil
}

func testSettings(overrides settingsStore) *settings.Resolver {
	env := &config.Config{Razorpay: config.Razorpay{KeyID: "rzp_test", KeySecret: "secret", Enabled: true}}
	return settings.NewResolver(overrides, env, nil)
}

// --- gateway ---

type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	createErr error
	// captures are returned in order per FetchCapturedPayment call; the last repeats.
	captures []gateway.CaptureResult
	fetchErr error
	fetches  int
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ gateway.Keys, amount int64, currency, receipt string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders++
	return &gateway.Order{ID: fmt.Sprintf("order_%d", g.orders), Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchCapturedPayment(_ context.Context, _ gateway.Keys, orderID string) (gateway.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return gateway.CaptureResult{}, g.fetchErr
	}
	if len(g.captures) == 0 {
		return gateway.CaptureResult{Response: json.RawMessage(`{"items":[]}`)}, nil
	}
	i := g.fetches - 1
	if i >= len(g.captures) {
		i = len(g.captures) - 1
	}
	return g.captures[i], nil
}

func captured(paymentID string) gateway.CaptureResult {
	return gateway.CaptureResult{
		Payment:  &gateway.Payment{ID: paymentID, Status: "captured"},
		Response: json.RawMessage(`{"items":[{"id":"` + paymentID + `","status":"captured"}]}`),
	}
}

func notCaptured() gateway.CaptureResult {
	return gateway.CaptureResult{Response: json.RawMessage(`{"items":[{"id":"pay_x","status":"failed"}]}`)}
}

// --- side effects ---

type fakeChats struct {
	mu     sync.Mutex
	closed []uuid.UUID
	err    error
}

func (c *fakeChats) CloseForBooking(_ context.Context, bookingID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.closed = append(c.closed, bookingID)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	payments []PaymentSucceededEvent
	credits  []WalletCreditedEvent
	err      error
}

func (n *fakeNotifier) PaymentSucceeded(_ context.Context, ev PaymentSucceededEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.payments = append(n.payments, ev)
	return nil
}

func (n *fakeNotifier) WalletCredited(_ context.Context, ev WalletCreditedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.credits = append(n.credits, ev)
	return nil
}

type fakeScheduler struct {
	orders []string
	err    error
}

func (s *fakeScheduler) ScheduleReconcile(_ context.Context, orderID string) error {
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, orderID)
	return nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func booking(amount int64, status, paymentStatus string) *models.Booking {
	return &models.Booking{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		TherapistID:   uuid.New(),
		ServiceID:     uuid.New(),
		Status:        status,
		PaymentStatus: paymentStatus,
		Amount:        amount,
		Pincode:       "560001",
		City:          "Bengaluru",
	}
}

type harness struct {
	ledger   *fakeLedger
	bookings *fakeBookings
	zones    *fakeZones
	gateway  *fakeGateway
	chats    *fakeChats
	notifier *fakeNotifier
	sched    *fakeScheduler
	wallets  *WalletService
	engine   *SettlementEngine
}

func newHarness(overrides settingsStore, bs ...*models.Booking) *harness {
	h := &harness{
		ledger:   newFakeLedger(),
		bookings: newFakeBookings(bs...),
		zones:    &fakeZones{},
		gateway:  &fakeGateway{},
		chats:    &fakeChats{},
		notifier: &fakeNotifier{},
		sched:    &fakeScheduler{},
	}
	st := testSettings(overrides)
	h.wallets = NewWalletService(mockPool{}, h.ledger, h.bookings, NewCommissionResolver(h.zones, st, nil), nil)
	h.engine = &SettlementEngine{
		Pool:         mockPool{},
		Ledger:       h.ledger,
		Bookings:     h.bookings,
		Wallets:      h.wallets,
		Gateway:      h.gateway,
		Settings:     st,
		Chats:        h.chats,
		Notifier:     h.notifier,
		Scheduler:    h.sched,
		Currency:     "INR",
		PollAttempts: 5,
		PollInterval: time.Millisecond,
	}
	return h
}
