package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenest/backend/internal/models"
)

const bookingColumns = `id, user_id, therapist_id, service_id, addons, booking_date_time, status, payment_status, amount, commission,
	payment_order_id, payment_transaction_id, payment_mode, latitude, longitude, pincode, city, created_at, updated_at`

type BookingRepo struct {
	pool *pgxpool.Pool
}

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.TherapistID, &b.ServiceID, &b.Addons, &b.BookingDateTime, &b.Status, &b.PaymentStatus, &b.Amount, &b.Commission,
		&b.PaymentOrderID, &b.PaymentTransactionID, &b.PaymentMode, &b.Latitude, &b.Longitude, &b.Pincode, &b.City, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// GetByIDForUpdate locks the booking row. Call within a transaction.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

// GetByPaymentOrderID returns the booking whose current payment order is orderID.
func (r *BookingRepo) GetByPaymentOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE payment_order_id = $1
		ORDER BY updated_at DESC LIMIT 1
	`, orderID))
}

// UpdateStatus moves the booking to status `to` only while its status is one of from.
// It reports whether a row changed.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3) AND payment_status <> 'success'
	`, id, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaymentOrder records a freshly created gateway order and reopens the
// payment for a booking whose previous attempt failed.
func (r *BookingRepo) SetPaymentOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET payment_order_id = $2, payment_status = 'pending', payment_mode = 'gateway', updated_at = now()
		WHERE id = $1 AND payment_status <> 'success'
	`, id, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaidTx settles the booking inside the finalizing transaction. It is a
// no-op for bookings that are already paid or were cancelled.
func (r *BookingRepo) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayTxnID string, commission int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed', payment_status = 'success', payment_transaction_id = $2, commission = $3,
			payment_mode = 'gateway', updated_at = now()
		WHERE id = $1 AND payment_status <> 'success' AND status <> 'cancelled'
	`, id, gatewayTxnID, commission)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaymentFailed leaves the booking retriable: payment failed, awaiting
// payment. It only applies while orderID is still the booking's current order.
func (r *BookingRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID, orderID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'failed',
			status = CASE WHEN status = 'cancelled' THEN status ELSE 'awaiting_payment' END,
			updated_at = now()
		WHERE id = $1 AND payment_order_id = $2 AND payment_status <> 'success'
	`, id, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
