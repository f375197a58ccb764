package models

import (
	"time"

	"github.com/google/uuid"
)

// Zone is a service area with its own commission percentage.
type Zone struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	City              string    `json:"city"`
	Pincodes          []string  `json:"pincodes"`
	CommissionPercent float64   `json:"commission_percent"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
