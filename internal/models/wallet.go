package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a therapist's running balance. Balance always equals
// TotalEarned - TotalWithdrawn. Amounts are in minor units.
type Wallet struct {
	TherapistID    uuid.UUID `json:"therapist_id"`
	Balance        int64     `json:"balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	LastUpdated    time.Time `json:"last_updated"`
	CreatedAt      time.Time `json:"created_at"`
}

// BankDetails is the payout destination recorded with a withdrawal.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`
}
