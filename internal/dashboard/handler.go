package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/carenest/backend/internal/middleware"
	"github.com/carenest/backend/internal/models"
	"github.com/carenest/backend/internal/services"
)

// Wallets is the wallet service surface used by the therapist dashboard.
type Wallets interface {
	GetBalance(ctx context.Context, therapistID uuid.UUID) (*models.Wallet, error)
	GetTransactions(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
	ProcessWithdrawal(ctx context.Context, therapistID uuid.UUID, amount int64, bank models.BankDetails) (*models.Wallet, *models.Transaction, error)
}

type Handler struct {
	wallets Wallets
	log     *slog.Logger
}

func NewHandler(wallets Wallets, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{wallets: wallets, log: log}
}

func therapistFromRequest(r *http.Request) (uuid.UUID, bool) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		return uuid.Nil, false
	}
	return p.ID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := therapistFromRequest(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	wallet, err := h.wallets.GetBalance(r.Context(), therapistID)
	if err != nil {
		h.log.Error("get wallet failed", "therapist_id", therapistID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// GET /api/v1/wallet/transactions?limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := therapistFromRequest(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	txns, err := h.wallets.GetTransactions(r.Context(), therapistID, limit, offset)
	if err != nil {
		h.log.Error("list wallet transactions failed", "therapist_id", therapistID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

type withdrawRequest struct {
	Amount      int64              `json:"amount"`
	BankDetails models.BankDetails `json:"bank_details"`
}

type withdrawResponse struct {
	Wallet      *models.Wallet      `json:"wallet"`
	Transaction *models.Transaction `json:"transaction"`
}

// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := therapistFromRequest(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"amount must be positive"}`, http.StatusBadRequest)
		return
	}
	if req.BankDetails.AccountNumber == "" && req.BankDetails.UPIID == "" {
		http.Error(w, `{"error":"bank_details require an account number or UPI id"}`, http.StatusBadRequest)
		return
	}

	wallet, txn, err := h.wallets.ProcessWithdrawal(r.Context(), therapistID, req.Amount, req.BankDetails)
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, services.ErrWalletNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, services.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("withdrawal failed", "therapist_id", therapistID, "amount", req.Amount, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.log.Info("withdrawal recorded", "therapist_id", therapistID, "amount", req.Amount, "transaction_id", txn.ID)
	writeJSON(w, http.StatusCreated, withdrawResponse{Wallet: wallet, Transaction: txn})
}
