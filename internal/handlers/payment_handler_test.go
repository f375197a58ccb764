package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/carenest/backend/internal/middleware"
	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockEngine struct {
	initiateRes *services.InitiateResult
	initiateErr error
	gotBooking  uuid.UUID
	gotUser     uuid.UUID

	outcome   services.CallbackOutcome
	gotParams services.CallbackParams

	snap      *services.StatusSnapshot
	verifyErr error
	gotOrder  string
}

func (m *mockEngine) Initiate(_ context.Context, bookingID, userID uuid.UUID) (*services.InitiateResult, error) {
	m.gotBooking, m.gotUser = bookingID, userID
	return m.initiateRes, m.initiateErr
}

func (m *mockEngine) HandleCallback(_ context.Context, p services.CallbackParams) services.CallbackOutcome {
	m.gotParams = p
	out := m.outcome
	if out.OrderID == "" {
		out.OrderID = p.ResolveOrderID()
	}
	return out
}

func (m *mockEngine) VerifyStatus(_ context.Context, orderID string) (*services.StatusSnapshot, error) {
	m.gotOrder = orderID
	return m.snap, m.verifyErr
}

type mockBookings struct {
	completeErr error
	cancelErr   error
	gotActor    uuid.UUID
}

func (m *mockBookings) CompleteService(_ context.Context, bookingID, therapistID uuid.UUID) (*services.CompleteResult, error) {
	m.gotActor = therapistID
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return &services.CompleteResult{Booking: &models.Booking{ID: bookingID, Status: models.BookingStatusAwaitingPayment}}, nil
}

func (m *mockBookings) Cancel(_ context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	m.gotActor = userID
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &models.Booking{ID: bookingID, Status: models.BookingStatusCancelled}, nil
}

func newHandler(e *mockEngine, b *mockBookings) *PaymentHandler {
	return &PaymentHandler{
		Payments:   e,
		Bookings:   b,
		SuccessURL: "https://app.test/payment/success?orderId={orderId}",
		FailureURL: "https://app.test/payment/failure?orderId={orderId}&reason={reason}",
	}
}

func withPrincipal(r *http.Request, id uuid.UUID, role string) *http.Request {
	return r.WithContext(middleware.WithPrincipal(r.Context(), &middleware.Principal{ID: id, Role: role}))
}

// ---------------------------------------------------------------------------
// Initiate
// ---------------------------------------------------------------------------

func TestInitiate_Created(t *testing.T) {
	eng := &mockEngine{initiateRes: &services.InitiateResult{OrderID: "order_1", Amount: 150000, Currency: "INR"}}
	h := newHandler(eng, nil)
	userID, bookingID := uuid.New(), uuid.New()

	body := fmt.Sprintf(`{"bookingId":%q}`, bookingID)
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(body)), userID, "user")
	rec := httptest.NewRecorder()
	h.Initiate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.gotBooking != bookingID || eng.gotUser != userID {
		t.Errorf("engine called with %s/%s", eng.gotBooking, eng.gotUser)
	}
	var resp services.InitiateResult
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OrderID != "order_1" || resp.Amount != 150000 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestInitiate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrBookingNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrAlreadyPaid, http.StatusConflict},
		{services.ErrGatewayNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("create gateway order: %w", fmt.Errorf("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newHandler(&mockEngine{initiateErr: tc.err}, nil)
		body := fmt.Sprintf(`{"bookingId":%q}`, uuid.New())
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.New(), "user")
		rec := httptest.NewRecorder()
		h.Initiate(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestInitiate_BadInput(t *testing.T) {
	h := newHandler(&mockEngine{}, nil)

	rec := httptest.NewRecorder()
	h.Initiate(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no principal: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bookingId":"nope"}`)), uuid.New(), "user")
	h.Initiate(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Callback
// ---------------------------------------------------------------------------

func TestCallback_JSONWhenSignaturePresent(t *testing.T) {
	eng := &mockEngine{outcome: services.CallbackOutcome{Success: true, TransactionID: "pay_1"}}
	h := newHandler(eng, nil)

	form := url.Values{
		"razorpay_order_id":   {"order_1"},
		"razorpay_payment_id": {"pay_1"},
		"razorpay_signature":  {"sig"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp callbackResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success || resp.OrderID != "order_1" {
		t.Errorf("unexpected response %+v", resp)
	}
	if eng.gotParams.Signature != "sig" || eng.gotParams.PaymentID != "pay_1" {
		t.Errorf("params not forwarded: %+v", eng.gotParams)
	}
}

func TestCallback_JSONBody(t *testing.T) {
	eng := &mockEngine{outcome: services.CallbackOutcome{Reason: "payment verification failed"}}
	h := newHandler(eng, nil)

	body := `{"razorpay_order_id":"order_2","razorpay_payment_id":"pay_2","razorpay_signature":"bad"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp callbackResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Success || resp.OrderID != "order_2" || resp.Reason == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCallback_RedirectSuccess(t *testing.T) {
	h := newHandler(&mockEngine{outcome: services.CallbackOutcome{Success: true}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback?orderId=order_3", nil)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.test/payment/success?orderId=order_3" {
		t.Errorf("Location = %q", loc)
	}
}

func TestCallback_RedirectFailureEscapesReason(t *testing.T) {
	h := newHandler(&mockEngine{outcome: services.CallbackOutcome{OrderID: "unknown", Reason: "missing order id"}}, nil)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	want := "https://app.test/payment/failure?orderId=unknown&reason=missing+order+id"
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

// ---------------------------------------------------------------------------
// Verify / Reconcile
// ---------------------------------------------------------------------------

func TestVerify(t *testing.T) {
	eng := &mockEngine{snap: &services.StatusSnapshot{OrderID: "order_4", Status: models.TxStatusSuccess, Amount: 1000}}
	h := newHandler(eng, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/order_4", nil)
	req.SetPathValue("orderId", "order_4")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if eng.gotOrder != "order_4" {
		t.Errorf("verified %q", eng.gotOrder)
	}
	var snap services.StatusSnapshot
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.Status != models.TxStatusSuccess {
		t.Errorf("status = %q", snap.Status)
	}
}

func TestVerify_NotFoundIsJSON(t *testing.T) {
	h := newHandler(&mockEngine{verifyErr: services.ErrTransactionNotFound}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("orderId", "order_x")
	rec := httptest.NewRecorder()
	h.Reconcile(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

// ---------------------------------------------------------------------------
// Booking transitions
// ---------------------------------------------------------------------------

func TestCompleteBooking(t *testing.T) {
	bk := &mockBookings{}
	h := newHandler(nil, bk)
	therapist := uuid.New()

	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/", nil), therapist, "therapist")
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.CompleteBooking(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if bk.gotActor != therapist {
		t.Errorf("actor = %s", bk.gotActor)
	}
}

func TestCancelBooking_NotCancellable(t *testing.T) {
	h := newHandler(nil, &mockBookings{cancelErr: services.ErrBookingNotCancellable})

	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New(), "user")
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.CancelBooking(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}
