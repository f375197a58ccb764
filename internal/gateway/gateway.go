package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSignatureMismatch reports a callback whose signature did not verify.
var ErrSignatureMismatch = errors.New("gateway: signature mismatch")

// Error is a network failure or non-2xx response from the gateway.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// Keys are the merchant credentials for one call.
type Keys struct {
	KeyID     string
	KeySecret string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Method  string `json:"method,omitempty"`
}

// CaptureResult is the outcome of a capture lookup. Payment is nil when the
// order has no captured payment yet. Response is the raw gateway body kept for audit.
type CaptureResult struct {
	Payment  *Payment
	Response json.RawMessage
}

// Gateway is the payment provider as the settlement engine sees it.
type Gateway interface {
	CreateOrder(ctx context.Context, keys Keys, amount int64, currency, receipt string) (*Order, error)
	FetchCapturedPayment(ctx context.Context, keys Keys, orderID string) (CaptureResult, error)
}

// VerifySignature checks an HMAC-SHA256 over "orderId|paymentId" keyed by secret.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	expected := Sign(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns the hex signature the gateway attaches to a successful checkout.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
