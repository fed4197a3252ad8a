package models

import "errors"

// Validation errors
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidRegistration = errors.New("username, email and password are required")
)

// Business rejections
var (
	ErrAccountExists           = errors.New("account already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrNoLenderAvailable       = errors.New("no lender with sufficient savings available")
	ErrInsufficientLenderFunds = errors.New("lender savings no longer cover the loan")
	ErrLoanDenied              = errors.New("loan denied by risk evaluation")
	ErrLoanNotFound            = errors.New("loan not found")
	ErrNotBorrower             = errors.New("payer is not the borrower of this loan")
	ErrLoanNotActive           = errors.New("loan is not active")
	ErrSelfLending             = errors.New("lender and borrower must differ")
)

var business = []error{
	ErrInvalidAmount,
	ErrAccountNotFound,
	ErrInvalidRegistration,
	ErrAccountExists,
	ErrInvalidCredentials,
	ErrInsufficientFunds,
	ErrNoLenderAvailable,
	ErrInsufficientLenderFunds,
	ErrLoanDenied,
	ErrLoanNotFound,
	ErrNotBorrower,
	ErrLoanNotActive,
	ErrSelfLending,
}

// ErrRiskUnavailable is a dependency fault, distinct from ErrLoanDenied and safe to retry
var ErrRiskUnavailable = errors.New("risk evaluation service unavailable")

// IsBusiness reports whether err is a business rejection rather than a system fault
func IsBusiness(err error) bool {
	for _, target := range business {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
