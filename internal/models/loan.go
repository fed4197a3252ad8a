package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanPending   LoanStatus = "pending"
	LoanActive    LoanStatus = "active"
	LoanPaid      LoanStatus = "paid"
	LoanDefaulted LoanStatus = "defaulted"
)

// Valid reports whether s is a known status
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanActive, LoanPaid, LoanDefaulted:
		return true
	}
	return false
}

// Loan represents a peer loan funded from the lender's savings
type Loan struct {
	ID           int64           `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Status       LoanStatus      `json:"status"`
	LenderID     int64           `json:"lender_id"`
	BorrowerID   int64           `json:"borrower_id"`
	CreatedAt    time.Time       `json:"created_at"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
}

// Interest is the interest owed on the principal at the fixed rate
func (l *Loan) Interest() decimal.Decimal {
	return l.Amount.Mul(l.InterestRate)
}

// TotalDue is principal plus interest
func (l *Loan) TotalDue() decimal.Decimal {
	return l.Amount.Add(l.Interest())
}

// Repayment confirms a settled loan
type Repayment struct {
	Loan     *Loan           `json:"loan"`
	Interest decimal.Decimal `json:"interest"`
	TotalDue decimal.Decimal `json:"total_due"`
}

// LoanApproval is an issued loan with the reason it was granted
type LoanApproval struct {
	*Loan
	Explanation string `json:"explanation"`
}
