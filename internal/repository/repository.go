// Package repository is the ledger store: durable tables of accounts,
// transactions, savings contributions and loans, plus the transaction
// boundary every balance mutation runs inside.
package repository

import (
	"context"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/shopspring/decimal"
)

// Store provides ledger persistence.
//
// Balances only change inside WithinTx. If fn returns an error, none of the
// writes it made through tx are visible afterwards.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	Account(ctx context.Context, id int64) (*models.Account, error)
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)

	// FindLender returns the account with the lowest id whose savings cover
	// required and whose id is not excludeID. Nothing is reserved.
	FindLender(ctx context.Context, required decimal.Decimal, excludeID int64) (*models.Account, error)

	BorrowerProfile(ctx context.Context, accountID int64) (*models.BorrowerProfile, error)
	Transactions(ctx context.Context, accountID int64) ([]models.Transaction, error)
	Loans(ctx context.Context, accountID int64) ([]models.Loan, error)
	Loan(ctx context.Context, id int64) (*models.Loan, error)
	Totals(ctx context.Context) (*models.LedgerTotals, error)

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is a unit of work against the ledger.
type Tx interface {
	// LockAccounts reads the given accounts and holds them until the
	// transaction ends. Locks are taken in ascending id order.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error)

	// ApplyDelta adds mainDelta and savingsDelta to the account in one
	// read-modify-write. It does not check for negative results.
	ApplyDelta(ctx context.Context, accountID int64, mainDelta, savingsDelta decimal.Decimal) (models.Balances, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	CreateContribution(ctx context.Context, contribution *models.SavingsContribution) error
	CreateLoan(ctx context.Context, loan *models.Loan) error
	LockLoan(ctx context.Context, id int64) (*models.Loan, error)
	SetLoanStatus(ctx context.Context, id int64, status models.LoanStatus) error
}
