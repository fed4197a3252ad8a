package handler

import (
	"net/http"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the routes of the ledger API
func NewRouter(h *Handler, cfg *config.Config, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(log))

	// Public routes
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts/me", h.Me).Methods(http.MethodGet)
	authRouter.HandleFunc("/accounts/me/profile", h.Profile).Methods(http.MethodGet)
	authRouter.HandleFunc("/transactions", h.CreateTransaction).Methods(http.MethodPost)
	authRouter.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	authRouter.HandleFunc("/loans", h.RequestLoan).Methods(http.MethodPost)
	authRouter.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	authRouter.HandleFunc("/loans/{id:[0-9]+}/repay", h.RepayLoan).Methods(http.MethodPost)
	authRouter.HandleFunc("/insights", h.Insights).Methods(http.MethodGet)

	return r
}
