package services

import (
	"errors"

	"github.com/carenest/backend/internal/ledger"
)

var (
	// ErrGatewayNotConfigured is returned when gateway credentials are missing or the gateway is disabled.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	// ErrTransactionNotFound is returned when neither a transaction nor a booking references an order.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionFailed is returned when a payment arrives for a transaction already marked failed.
	ErrTransactionFailed = errors.New("transaction already failed")
	// ErrDuplicatePayment is returned when a capture arrives for a booking another order already paid.
	ErrDuplicatePayment      = errors.New("booking already paid by another order")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotPayable     = errors.New("booking is not awaiting payment")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrAlreadyPaid           = errors.New("booking already paid")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidAmount         = errors.New("amount must be positive")

	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrWalletNotFound      = ledger.ErrWalletNotFound
)
