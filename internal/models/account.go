package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a ledger account with its main and savings balances
type Account struct {
	ID             int64           `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"` // Not serialized
	MainBalance    decimal.Decimal `json:"main_balance"`
	SavingsBalance decimal.Decimal `json:"savings_balance"`
	InitialBalance decimal.Decimal `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Balances is the state of an account after a delta has been applied
type Balances struct {
	Main    decimal.Decimal `json:"main_balance"`
	Savings decimal.Decimal `json:"savings_balance"`
}

// Balances returns the current balances of the account
func (a *Account) Balances() Balances {
	return Balances{Main: a.MainBalance, Savings: a.SavingsBalance}
}

// LedgerTotals sums balances across all accounts together with the starting
// grants, the only money that enters the ledger. Interest is reported
// separately: the borrower pays it to the lender, so it moves money between
// accounts without adding any.
type LedgerTotals struct {
	Main     decimal.Decimal `json:"main"`
	Savings  decimal.Decimal `json:"savings"`
	Granted  decimal.Decimal `json:"granted"`
	Interest decimal.Decimal `json:"interest"`
}

// Held is the money currently sitting in accounts
func (t LedgerTotals) Held() decimal.Decimal {
	return t.Main.Add(t.Savings)
}

// Expected is the money that should be sitting in accounts
func (t LedgerTotals) Expected() decimal.Decimal {
	return t.Granted
}
