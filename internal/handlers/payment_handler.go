package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/carenest/backend/internal/middleware"
	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/services"
)

// PaymentEngine is the settlement surface served over HTTP.
type PaymentEngine interface {
	Initiate(ctx context.Context, bookingID, userID uuid.UUID) (*services.InitiateResult, error)
	HandleCallback(ctx context.Context, p services.CallbackParams) services.CallbackOutcome
	VerifyStatus(ctx context.Context, orderID string) (*services.StatusSnapshot, error)
}

// BookingActions are the therapist and user booking transitions.
type BookingActions interface {
	CompleteService(ctx context.Context, bookingID, therapistID uuid.UUID) (*services.CompleteResult, error)
	Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)
}

// PaymentHandler serves /api/v1/payments and the booking transitions that feed them.
type PaymentHandler struct {
	Payments PaymentEngine
	Bookings BookingActions
	// SuccessURL and FailureURL are redirect templates. {orderId} and
	// {reason} are substituted with URL-escaped values.
	SuccessURL string
	FailureURL string
	Logger     *slog.Logger
}

// --- POST /api/v1/payments/initiate ---

type initiateRequest struct {
	BookingID string `json:"bookingId"`
}

// Initiate handles POST /api/v1/payments/initiate.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		http.Error(w, `{"error":"invalid bookingId"}`, http.StatusBadRequest)
		return
	}

	res, err := h.Payments.Initiate(r.Context(), bookingID, p.ID)
	if err != nil {
		h.writeError(w, "initiate payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// --- GET|POST /api/v1/payments/callback ---

type callbackResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type callbackBody struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"orderId"`
}

// Callback handles the gateway or client confirmation. Callers that send
// gateway signature fields get JSON; browser redirects get a redirect.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	params, programmatic := parseCallback(r)
	out := h.Payments.HandleCallback(r.Context(), params)

	if programmatic {
		status := http.StatusOK
		if !out.Success {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, callbackResponse{
			Success:       out.Success,
			OrderID:       out.OrderID,
			TransactionID: out.TransactionID,
			Reason:        out.Reason,
		})
		return
	}

	target := expandTemplate(h.SuccessURL, out.OrderID, "")
	if !out.Success {
		target = expandTemplate(h.FailureURL, out.OrderID, out.Reason)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func parseCallback(r *http.Request) (services.CallbackParams, bool) {
	var body callbackBody
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if r.Method == http.MethodPost && ct == "application/json" {
		_ = json.NewDecoder(r.Body).Decode(&body)
	} else {
		_ = r.ParseForm()
	}

	p := services.CallbackParams{
		GatewayOrderID: first(body.RazorpayOrderID, r.PostFormValue("razorpay_order_id")),
		OrderID:        first(body.OrderID, r.PostFormValue("orderId"), r.PostFormValue("order_id")),
		QueryOrderID:   first(r.URL.Query().Get("orderId"), r.URL.Query().Get("razorpay_order_id")),
		PaymentID:      first(body.RazorpayPaymentID, r.FormValue("razorpay_payment_id")),
		Signature:      first(body.RazorpaySignature, r.FormValue("razorpay_signature")),
	}
	return p, p.Signature != "" || p.PaymentID != ""
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func expandTemplate(tmpl, orderID, reason string) string {
	return strings.NewReplacer(
		"{orderId}", url.QueryEscape(orderID),
		"{reason}", url.QueryEscape(reason),
	).Replace(tmpl)
}

// --- GET /api/v1/payments/verify/{orderId} ---

// Verify handles GET /api/v1/payments/verify/{orderId}. Always JSON.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, "verify payment")
}

// Reconcile handles POST /api/v1/admin/payments/{orderId}/reconcile.
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, "reconcile payment")
}

func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request, op string) {
	orderID := strings.TrimSpace(r.PathValue("orderId"))
	if orderID == "" {
		http.Error(w, `{"error":"missing orderId"}`, http.StatusBadRequest)
		return
	}
	snap, err := h.Payments.VerifyStatus(r.Context(), orderID)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- POST /api/v1/bookings/{id}/complete ---

// CompleteBooking handles POST /api/v1/bookings/{id}/complete (therapist).
func (h *PaymentHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Bookings.CompleteService(r.Context(), bookingID, p.ID)
	if err != nil {
		h.writeError(w, "complete booking", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelBooking handles POST /api/v1/bookings/{id}/cancel (user).
func (h *PaymentHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	b, err := h.Bookings.Cancel(r.Context(), bookingID, p.ID)
	if err != nil {
		h.writeError(w, "cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// writeError maps service errors to status codes. Unknown errors are 500s
// and their text is logged, not returned.
func (h *PaymentHandler) writeError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger().Error(op+" failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *PaymentHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// StatusFor returns the HTTP status for a service error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrBookingNotPayable),
		errors.Is(err, services.ErrBookingNotCancellable),
		errors.Is(err, services.ErrTransactionFailed),
		errors.Is(err, services.ErrDuplicatePayment):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
