package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChatStatusOpen   = "open"
	ChatStatusClosed = "closed"
)

type Chat struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
