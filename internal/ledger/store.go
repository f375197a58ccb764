package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carenest/backend/internal/models"
)

var (
	// ErrNotFound is returned when no transaction or wallet matches the lookup.
	ErrNotFound = errors.New("ledger: not found")
	// ErrInsufficientBalance is returned when a debit exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrWalletNotFound is returned when debiting a therapist that has never earned.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Store is the durable record of payment attempts and therapist wallets.
// Methods taking a pgx.Tx run inside the caller's transaction.
type Store interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, orderID string) error
	MarkTransactionSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, response json.RawMessage) (bool, error)
	MarkTransactionFailed(ctx context.Context, id uuid.UUID, response json.RawMessage) (bool, error)
	UpsertPaymentTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error)

	EnsureWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID) (*models.Wallet, error)
	CreditWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error)
	DebitWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error)
	GetWallet(ctx context.Context, therapistID uuid.UUID) (*models.Wallet, error)
}

var _ Store = (*Repository)(nil)
