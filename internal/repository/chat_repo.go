package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

// CloseForBooking closes the booking's chat. A booking without a chat is not an error.
func (r *ChatRepo) CloseForBooking(ctx context.Context, bookingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chats SET status = 'closed', updated_at = now()
		WHERE booking_id = $1 AND status <> 'closed'
	`, bookingID)
	return err
}
