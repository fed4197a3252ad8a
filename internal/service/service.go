package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/microsave/internal/advice"
	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/lending"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/payout"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/Dan9191/microsave/internal/risk"
	"github.com/Dan9191/microsave/internal/roundup"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// Service handles business logic
type Service struct {
	repo    repository.Store
	log     *logrus.Logger
	config  *config.Config
	roundup *roundup.Engine
	payout  *payout.Trigger
	gate    risk.Gate
	advisor advice.Advisor
	loans   *lending.Manager
}

// NewService initializes a new service
func NewService(repo repository.Store, gate risk.Gate, advisor advice.Advisor, log *logrus.Logger, cfg *config.Config) *Service {
	matcher := lending.NewMatcher(repo)
	terms := lending.Terms{InterestRate: cfg.InterestRate, TermDays: cfg.LoanTermDays}
	return &Service{
		repo:    repo,
		log:     log,
		config:  cfg,
		roundup: roundup.NewEngine(cfg.RoundingUnit),
		payout:  payout.NewTrigger(cfg.PayoutThreshold),
		gate:    gate,
		advisor: advisor,
		loans:   lending.NewManager(repo, matcher, terms, log),
	}
}

// Registration is the profile supplied when opening an account
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterAccount creates an account with the starting balance and a hashed password
func (s *Service) RegisterAccount(ctx context.Context, reg Registration) (*models.Account, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return nil, models.ErrInvalidRegistration
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username:       reg.Username,
		Email:          reg.Email,
		PasswordHash:   string(hashedPassword),
		MainBalance:    s.config.StartingBalance,
		InitialBalance: s.config.StartingBalance,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.WithField("account_id", account.ID).Infof("Account registered: %s", account.Username)
	return account, nil
}

// Login authenticates an account holder and returns a JWT token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.repo.AccountByUsername(ctx, username)
	if errors.Is(err, models.ErrAccountNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", account.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.WithField("account_id", account.ID).Info("Account holder logged in")
	return tokenString, nil
}

// Account returns the current state of an account
func (s *Service) Account(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.repo.Account(ctx, accountID)
}

// Profile returns the risk summary the gate would see for the account
func (s *Service) Profile(ctx context.Context, accountID int64) (*models.BorrowerProfile, error) {
	return s.repo.BorrowerProfile(ctx, accountID)
}

// Transactions lists the account's purchases
func (s *Service) Transactions(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	return s.repo.Transactions(ctx, accountID)
}

// Loans lists loans the account has lent or borrowed
func (s *Service) Loans(ctx context.Context, accountID int64) ([]models.Loan, error) {
	return s.repo.Loans(ctx, accountID)
}
