package models

import "github.com/shopspring/decimal"

// BorrowerProfile summarises an account's history for risk evaluation
type BorrowerProfile struct {
	AccountID        int64           `json:"account_id"`
	TransactionCount int             `json:"transaction_count"`
	SavingsBalance   decimal.Decimal `json:"savings_balance"`
	RepaidLoans      int             `json:"repaid_loans"`
	ActiveLoans      int             `json:"active_loans"`
}
