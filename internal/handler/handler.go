package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Dan9191/microsave/internal/middleware"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type loanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Register handles account registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account, err := h.svc.RegisterAccount(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Login handles authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

// Me returns the authenticated account
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	account, err := h.svc.Account(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Profile returns the borrower profile of the authenticated account
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	profile, err := h.svc.Profile(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// CreateTransaction records a purchase with its round-up
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.svc.RecordTransaction(r.Context(), accountID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ListTransactions lists purchases of the authenticated account
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	txns, err := h.svc.Transactions(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// RequestLoan asks for a peer loan
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	loan, err := h.svc.RequestLoan(r.Context(), accountID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// ListLoans lists loans the authenticated account lent or borrowed
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	loans, err := h.svc.Loans(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// RepayLoan settles a loan of the authenticated borrower
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	loanID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid loan id", http.StatusBadRequest)
		return
	}
	repayment, err := h.svc.RepayLoan(r.Context(), loanID, accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repayment)
}

// Insights returns saving advice for the authenticated account
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	insights, err := h.svc.Insights(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if models.IsBusiness(err) || errors.Is(err, models.ErrRiskUnavailable) {
		h.log.WithError(err).Info("Request rejected")
	} else {
		h.log.WithError(err).Error("Request failed")
	}
	switch status {
	case http.StatusInternalServerError:
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	case http.StatusServiceUnavailable:
		writeJSON(w, status, map[string]string{"error": models.ErrRiskUnavailable.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidRegistration),
		errors.Is(err, models.ErrSelfLending):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotBorrower):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrLoanNotFound),
		errors.Is(err, models.ErrNoLenderAvailable):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAccountExists),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientLenderFunds),
		errors.Is(err, models.ErrLoanNotActive):
		return http.StatusConflict
	case errors.Is(err, models.ErrLoanDenied):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrRiskUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
