package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	razorpayTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
	statusCaptured  = "captured"
)

// Razorpay talks to the Razorpay orders API.
type Razorpay struct {
	baseURL string
	client  *http.Client
}

var _ Gateway = (*Razorpay)(nil)

// NewRazorpay returns a client for baseURL (e.g. https://api.razorpay.com).
func NewRazorpay(baseURL string) *Razorpay {
	return &Razorpay{baseURL: baseURL, client: &http.Client{Timeout: razorpayTimeout}}
}

func (c *Razorpay) CreateOrder(ctx context.Context, keys Keys, amount int64, currency, receipt string) (*Order, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, keys, "create_order", http.MethodPost, "/v1/orders", payload)
	if err != nil {
		return nil, err
	}
	var o Order
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, &Error{Op: "create_order", Err: err}
	}
	if o.ID == "" {
		return nil, &Error{Op: "create_order", StatusCode: http.StatusOK, Body: string(body)}
	}
	return &o, nil
}

func (c *Razorpay) FetchCapturedPayment(ctx context.Context, keys Keys, orderID string) (CaptureResult, error) {
	body, err := c.do(ctx, keys, "fetch_payments", http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil)
	if err != nil {
		return CaptureResult{}, err
	}
	var list struct {
		Items []Payment `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return CaptureResult{}, &Error{Op: "fetch_payments", Err: err}
	}
	res := CaptureResult{Response: json.RawMessage(body)}
	for i := range list.Items {
		if list.Items[i].Status == statusCaptured {
			p := list.Items[i]
			res.Payment = &p
			break
		}
	}
	return res, nil
}

func (c *Razorpay) do(ctx context.Context, keys Keys, op, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.SetBasicAuth(keys.KeyID, keys.KeySecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
