package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/repository"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WalletLedger is the minimal ledger interface for wallet accounting.
type WalletLedger interface {
	EnsureWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID) (*models.Wallet, error)
	CreditWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error)
	DebitWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error)
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
}

// BookingReader loads a booking by id.
type BookingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// CreditResult describes one settlement credit.
type CreditResult struct {
	Wallet     *models.Wallet  `json:"wallet"`
	Credited   int64           `json:"credited"`
	Commission int64           `json:"commission"`
	Percent    decimal.Decimal `json:"commission_percent"`
	Source     string          `json:"commission_source"`
}

// WalletService keeps therapist wallets. Balance changes are atomic
// increments in the store, so concurrent settlements for one therapist
// never lose an update.
type WalletService struct {
	Pool       TxBeginner
	Ledger     WalletLedger
	Bookings   BookingReader
	Commission *CommissionResolver
	Logger     *slog.Logger
}

func NewWalletService(pool TxBeginner, ledger WalletLedger, bookings BookingReader, commission *CommissionResolver, logger *slog.Logger) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{Pool: pool, Ledger: ledger, Bookings: bookings, Commission: commission, Logger: logger}
}

// CreditWallet splits amount by the booking's commission rate, credits the
// therapist's share and writes the wallet_credit and commission rows.
// Call within a transaction; the caller commits.
func (s *WalletService) CreditWallet(ctx context.Context, tx pgx.Tx, therapistID, bookingID uuid.UUID, amount int64) (*CreditResult, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	res := s.Commission.Resolve(ctx, b.Location())
	pct := clampPercent(res.Percent)
	commission, credited := Split(amount, pct)

	if _, err := s.Ledger.EnsureWallet(ctx, tx, therapistID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	w, err := s.Ledger.CreditWallet(ctx, tx, therapistID, credited)
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	audit, _ := json.Marshal(map[string]any{
		"commission_percent": pct.String(),
		"commission_source":  res.Source,
		"zone_id":            res.ZoneID,
		"booking_amount":     amount,
	})
	for _, row := range []struct {
		kind   string
		amount int64
	}{
		{models.TxTypeWalletCredit, credited},
		{models.TxTypeCommission, commission},
	} {
		if err := s.Ledger.CreateTransactionTx(ctx, tx, &models.Transaction{
			ID:              uuid.New(),
			BookingID:       &bookingID,
			UserID:          b.UserID,
			TherapistID:     &therapistID,
			TransactionType: row.kind,
			Amount:          row.amount,
			Status:          models.TxStatusSuccess,
			GatewayResponse: audit,
		}); err != nil {
			return nil, fmt.Errorf("record %s: %w", row.kind, err)
		}
	}

	return &CreditResult{Wallet: w, Credited: credited, Commission: commission, Percent: pct, Source: res.Source}, nil
}

// ProcessWithdrawal debits the wallet and records a withdrawal. No payout is sent.
func (s *WalletService) ProcessWithdrawal(ctx context.Context, therapistID uuid.UUID, amount int64, bank models.BankDetails) (*models.Wallet, *models.Transaction, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin withdrawal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.Ledger.DebitWallet(ctx, tx, therapistID, amount)
	if err != nil {
		return nil, nil, err
	}
	audit, err := json.Marshal(map[string]any{"bank_details": bank})
	if err != nil {
		return nil, nil, err
	}
	txn := &models.Transaction{
		ID:              uuid.New(),
		UserID:          therapistID,
		TherapistID:     &therapistID,
		TransactionType: models.TxTypeWithdrawal,
		Amount:          amount,
		Status:          models.TxStatusSuccess,
		GatewayResponse: audit,
	}
	if err := s.Ledger.CreateTransactionTx(ctx, tx, txn); err != nil {
		return nil, nil, fmt.Errorf("record withdrawal: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit withdrawal: %w", err)
	}
	s.Logger.Info("withdrawal recorded", "therapist_id", therapistID, "amount", amount, "balance", w.Balance)
	return w, txn, nil
}

// GetBalance returns the therapist's wallet, creating an empty one on first read.
func (s *WalletService) GetBalance(ctx context.Context, therapistID uuid.UUID) (*models.Wallet, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	w, err := s.Ledger.EnsureWallet(ctx, tx, therapistID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// GetTransactions returns the therapist's ledger rows, newest first.
func (s *WalletService) GetTransactions(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	if _, err := s.GetBalance(ctx, therapistID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.Ledger.ListByTherapist(ctx, therapistID, limit, offset)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	return list, nil
}
