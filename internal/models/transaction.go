package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction transaction_type and status enums.
const (
	TxTypePayment      = "payment"
	TxTypeWalletCredit = "wallet_credit"
	TxTypeCommission   = "commission"
	TxTypeWithdrawal   = "withdrawal"

	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// Transaction is one payment attempt or one ledger movement.
// GatewayOrderID starts as the local receipt and is rewritten to the gateway
// order id once the order exists. Ledger movements carry no order id.
type Transaction struct {
	ID                   uuid.UUID       `json:"id"`
	BookingID            *uuid.UUID      `json:"booking_id,omitempty"`
	UserID               uuid.UUID       `json:"user_id"`
	TherapistID          *uuid.UUID      `json:"therapist_id,omitempty"`
	TransactionType      string          `json:"transaction_type"`
	Amount               int64           `json:"amount"`
	PaymentMode          *string         `json:"payment_mode,omitempty"`
	Status               string          `json:"status"`
	GatewayOrderID       *string         `json:"gateway_order_id,omitempty"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// OrderID returns the gateway order id or "" when unset.
func (t *Transaction) OrderID() string {
	if t.GatewayOrderID == nil {
		return ""
	}
	return *t.GatewayOrderID
}

// IsGatewayPayment reports whether t is a payment collected through the gateway.
func (t *Transaction) IsGatewayPayment() bool {
	return t.TransactionType == TxTypePayment && t.PaymentMode != nil && *t.PaymentMode == PaymentModeGateway
}
