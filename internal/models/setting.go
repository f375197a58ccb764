package models

import "time"

// Admin-editable setting keys that override environment defaults.
const (
	SettingRazorpayKeyID     = "razorpay.key_id"
	SettingRazorpayKeySecret = "razorpay.key_secret"
	SettingRazorpayEnabled   = "razorpay.enabled"
	SettingCommissionDefault = "commission.default_percent"
)

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
