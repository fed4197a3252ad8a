package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a purchase recorded against an account
type Transaction struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	RoundedCharge decimal.Decimal `json:"rounded_charge"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SavingsContribution is the round-up swept into the savings pot for a transaction
type SavingsContribution struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}
