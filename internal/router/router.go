package router

import (
	"net/http"

	"github.com/carenest/backend/internal/auth"
	"github.com/carenest/backend/internal/dashboard"
	"github.com/carenest/backend/internal/handlers"
	"github.com/carenest/backend/internal/middleware"
)

// New returns an http.Handler that serves the API under /api/v1.
func New(tokens middleware.TokenValidator, payments *handlers.PaymentHandler, wallet *dashboard.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	user := middleware.RequireRole(tokens, auth.RoleUser)
	therapist := middleware.RequireRole(tokens, auth.RoleTherapist)
	admin := middleware.RequireRole(tokens, auth.RoleAdmin)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Handle("POST "+base+"/payments/initiate", user(http.HandlerFunc(payments.Initiate)))
	// Gateway and browser redirects call back without a token.
	mux.HandleFunc("GET "+base+"/payments/callback", payments.Callback)
	mux.HandleFunc("POST "+base+"/payments/callback", payments.Callback)
	mux.HandleFunc("GET "+base+"/payments/verify/{orderId}", payments.Verify)
	mux.Handle("POST "+base+"/admin/payments/{orderId}/reconcile", admin(http.HandlerFunc(payments.Reconcile)))

	mux.Handle("POST "+base+"/bookings/{id}/complete", therapist(http.HandlerFunc(payments.CompleteBooking)))
	mux.Handle("POST "+base+"/bookings/{id}/cancel", user(http.HandlerFunc(payments.CancelBooking)))

	mux.Handle("GET "+base+"/wallet", therapist(http.HandlerFunc(wallet.GetWallet)))
	mux.Handle("GET "+base+"/wallet/transactions", therapist(http.HandlerFunc(wallet.ListTransactions)))
	mux.Handle("POST "+base+"/wallet/withdraw", therapist(http.HandlerFunc(wallet.Withdraw)))

	return mux
}
