package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/repository"
)

// BookingTransitions is the booking store used for therapist and user actions.
type BookingTransitions interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to string, from ...string) (bool, error)
}

// PaymentInitiator opens a gateway order for a booking.
type PaymentInitiator interface {
	Initiate(ctx context.Context, bookingID, userID uuid.UUID) (*InitiateResult, error)
}

// CompleteResult is the booking after service completion plus the payment
// order opened for it, if the gateway accepted one.
type CompleteResult struct {
	Booking *models.Booking `json:"booking"`
	Payment *InitiateResult `json:"payment,omitempty"`
}

// BookingFlow applies the therapist and user transitions that lead into settlement.
type BookingFlow struct {
	Bookings BookingTransitions
	Payments PaymentInitiator
	Logger   *slog.Logger
}

func NewBookingFlow(bookings BookingTransitions, payments PaymentInitiator, logger *slog.Logger) *BookingFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingFlow{Bookings: bookings, Payments: payments, Logger: logger}
}

var activeStatuses = []string{
	models.BookingStatusBooked,
	models.BookingStatusOnTheWay,
	models.BookingStatusInProgress,
	models.BookingStatusAwaitingPayment,
}

func (f *BookingFlow) load(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := f.Bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

// CompleteService marks the therapist's work done and opens the payment on
// the user's behalf. A payment that cannot be opened is logged; the user can
// initiate it later.
func (f *BookingFlow) CompleteService(ctx context.Context, bookingID, therapistID uuid.UUID) (*CompleteResult, error) {
	b, err := f.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.TherapistID != therapistID {
		return nil, ErrForbidden
	}
	if b.PaymentStatus == models.PaymentStatusSuccess {
		return nil, ErrAlreadyPaid
	}
	ok, err := f.Bookings.UpdateStatus(ctx, b.ID, models.BookingStatusAwaitingPayment, activeStatuses...)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	if !ok {
		return nil, ErrBookingNotPayable
	}
	if b, err = f.load(ctx, bookingID); err != nil {
		return nil, err
	}

	res := &CompleteResult{Booking: b}
	if f.Payments != nil {
		p, err := f.Payments.Initiate(ctx, b.ID, b.UserID)
		if err != nil {
			f.Logger.Warn("initiate payment after completion failed", "booking_id", b.ID, "error", err)
		} else {
			res.Payment = p
		}
	}
	return res, nil
}

// Cancel cancels an unpaid booking owned by userID.
func (f *BookingFlow) Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	b, err := f.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.PaymentStatus == models.PaymentStatusSuccess {
		return nil, ErrBookingNotCancellable
	}
	ok, err := f.Bookings.UpdateStatus(ctx, b.ID, models.BookingStatusCancelled, activeStatuses...)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	if !ok {
		return nil, ErrBookingNotCancellable
	}
	return f.load(ctx, bookingID)
}
