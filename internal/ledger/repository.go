package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenest/backend/internal/models"
)

const transactionColumns = `id, booking_id, user_id, therapist_id, transaction_type, amount, payment_mode, status,
	gateway_order_id, gateway_transaction_id, gateway_response, created_at, updated_at`

const walletColumns = `therapist_id, balance, total_earned, total_withdrawn, last_updated, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.BookingID, &t.UserID, &t.TherapistID, &t.TransactionType, &t.Amount, &t.PaymentMode, &t.Status,
		&t.GatewayOrderID, &t.GatewayTransactionID, &t.GatewayResponse, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.TherapistID, &w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.LastUpdated, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return r.pool.QueryRow(ctx, insertTransactionSQL, transactionArgs(t)...).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// CreateTransactionTx inserts a transaction inside the given transaction.
func (r *Repository) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, insertTransactionSQL, transactionArgs(t)...).Scan(&t.CreatedAt, &t.UpdatedAt)
}

const insertTransactionSQL = `
	INSERT INTO transactions (id, booking_id, user_id, therapist_id, transaction_type, amount, payment_mode, status,
		gateway_order_id, gateway_transaction_id, gateway_response)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at, updated_at
`

func transactionArgs(t *models.Transaction) []any {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return []any{t.ID, t.BookingID, t.UserID, t.TherapistID, t.TransactionType, t.Amount, t.PaymentMode, t.Status,
		t.GatewayOrderID, t.GatewayTransactionID, nullableJSON(t.GatewayResponse)}
}

func (r *Repository) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE gateway_order_id = $1
	`, orderID))
}

// SetGatewayOrderID rewrites the receipt placeholder to the gateway's order id.
func (r *Repository) SetGatewayOrderID(ctx context.Context, id uuid.UUID, orderID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions SET gateway_order_id = $2, updated_at = now() WHERE id = $1
	`, id, orderID)
	return err
}

// MarkTransactionSuccess moves a pending transaction to success. It returns
// false when the row was already terminal, which makes it the single
// serialization point for racing finalizers.
func (r *Repository) MarkTransactionSuccess(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, response json.RawMessage) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = 'success', gateway_transaction_id = $2, gateway_response = COALESCE($3, gateway_response), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, gatewayTxnID, nullableJSON(response))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkTransactionFailed moves a pending transaction to failed; false when it was already terminal.
func (r *Repository) MarkTransactionFailed(ctx context.Context, id uuid.UUID, response json.RawMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET status = 'failed', gateway_response = COALESCE($2, gateway_response), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, nullableJSON(response))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertPaymentTransaction inserts t unless a transaction already holds its
// gateway order id, and returns whichever row is stored.
func (r *Repository) UpsertPaymentTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	args := transactionArgs(t)
	return scanTransaction(r.pool.QueryRow(ctx, `
		INSERT INTO transactions (id, booking_id, user_id, therapist_id, transaction_type, amount, payment_mode, status,
			gateway_order_id, gateway_transaction_id, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (gateway_order_id) WHERE gateway_order_id IS NOT NULL
		DO UPDATE SET updated_at = transactions.updated_at
		RETURNING `+transactionColumns, args...))
}

// ListStalePending returns pending gateway payments created before the cutoff, oldest first.
func (r *Repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND transaction_type = 'payment' AND payment_mode = 'gateway' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, before, limit)
}

func (r *Repository) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE therapist_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, therapistID, limit, offset)
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// EnsureWallet creates a zero-balance wallet if none exists and returns it.
func (r *Repository) EnsureWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID) (*models.Wallet, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (therapist_id) VALUES ($1) ON CONFLICT (therapist_id) DO NOTHING
	`, therapistID); err != nil {
		return nil, err
	}
	return scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE therapist_id = $1`, therapistID))
}

// CreditWallet atomically adds amount to balance and total_earned.
func (r *Repository) CreditWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance + $1, total_earned = total_earned + $1, last_updated = now()
		WHERE therapist_id = $2
		RETURNING `+walletColumns, amount, therapistID))
}

// DebitWallet atomically moves amount from balance to total_withdrawn if the
// balance covers it.
func (r *Repository) DebitWallet(ctx context.Context, tx pgx.Tx, therapistID uuid.UUID, amount int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $1, total_withdrawn = total_withdrawn + $1, last_updated = now()
		WHERE therapist_id = $2 AND balance >= $1
		RETURNING `+walletColumns, amount, therapistID))
	if !errors.Is(err, ErrNotFound) {
		return w, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE therapist_id = $1)`, therapistID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrWalletNotFound
	}
	return nil, ErrInsufficientBalance
}

func (r *Repository) GetWallet(ctx context.Context, therapistID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE therapist_id = $1`, therapistID))
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
