package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Booking status and payment_status enums.
const (
	BookingStatusBooked          = "booked"
	BookingStatusOnTheWay        = "on_the_way"
	BookingStatusInProgress      = "in_progress"
	BookingStatusAwaitingPayment = "awaiting_payment"
	BookingStatusCompleted       = "completed"
	BookingStatusCancelled       = "cancelled"

	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// Payment modes shared by bookings and transactions.
const (
	PaymentModeGateway = "gateway"
	PaymentModeWallet  = "wallet"
)

// Booking is one service engagement between a user and a therapist.
// Amount and Commission are in minor currency units (paise).
type Booking struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	TherapistID          uuid.UUID       `json:"therapist_id"`
	ServiceID            uuid.UUID       `json:"service_id"`
	Addons               json.RawMessage `json:"addons,omitempty"`
	BookingDateTime      time.Time       `json:"booking_date_time"`
	Status               string          `json:"status"`
	PaymentStatus        string          `json:"payment_status"`
	Amount               int64           `json:"amount"`
	Commission           *int64          `json:"commission,omitempty"`
	PaymentOrderID       *string         `json:"payment_order_id,omitempty"`
	PaymentTransactionID *string         `json:"payment_transaction_id,omitempty"`
	PaymentMode          *string         `json:"payment_mode,omitempty"`
	Latitude             *float64        `json:"latitude,omitempty"`
	Longitude            *float64        `json:"longitude,omitempty"`
	Pincode              string          `json:"pincode,omitempty"`
	City                 string          `json:"city,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Location is the part of a booking the commission lookup works from.
type Location struct {
	Latitude  *float64
	Longitude *float64
	Pincode   string
	City      string
}

// Location returns the booking's address inputs for zone resolution.
func (b *Booking) Location() Location {
	return Location{Latitude: b.Latitude, Longitude: b.Longitude, Pincode: b.Pincode, City: b.City}
}

// Payable reports whether a new gateway order may be created for the booking.
func (b *Booking) Payable() bool {
	if b.PaymentStatus != PaymentStatusPending && b.PaymentStatus != PaymentStatusFailed {
		return false
	}
	switch b.Status {
	case BookingStatusAwaitingPayment, BookingStatusCompleted, BookingStatusBooked:
		return true
	}
	return false
}
