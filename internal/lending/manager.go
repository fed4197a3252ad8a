// Package lending matches lenders to borrowers and runs the loan lifecycle:
// issuance from a lender's savings and settlement with interest.
package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/Dan9191/microsave/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Terms are fixed on a loan at issuance
type Terms struct {
	InterestRate decimal.Decimal
	// TermDays sets the due date; zero issues loans without one.
	TermDays int
}

// Manager issues and settles peer loans
type Manager struct {
	store   repository.Store
	matcher *Matcher
	terms   Terms
	log     *logrus.Logger
	now     func() time.Time
}

// NewManager creates a loan manager
func NewManager(store repository.Store, matcher *Matcher, terms Terms, log *logrus.Logger) *Manager {
	return &Manager{store: store, matcher: matcher, terms: terms, log: log, now: time.Now}
}

// Issue funds a loan of amount to borrowerID from the first eligible lender.
//
// A denial stops before any lender search. The lender's savings are read
// again inside the transaction that debits them, so a lender drained by a
// concurrent issuance yields ErrInsufficientLenderFunds instead of a
// negative balance.
func (m *Manager) Issue(ctx context.Context, amount decimal.Decimal, borrowerID int64, decision risk.Decision) (*models.Loan, error) {
	switch decision {
	case risk.Approve:
	case risk.Deny:
		return nil, models.ErrLoanDenied
	default:
		return nil, models.ErrRiskUnavailable
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("issue loan of %s: %w", amount, models.ErrInvalidAmount)
	}

	lender, err := m.matcher.FindLender(ctx, amount, borrowerID)
	if err != nil {
		return nil, err
	}

	loan := &models.Loan{
		Amount:       amount,
		InterestRate: m.terms.InterestRate,
		Status:       models.LoanActive,
		LenderID:     lender.ID,
		BorrowerID:   borrowerID,
	}
	if m.terms.TermDays > 0 {
		due := m.now().UTC().AddDate(0, 0, m.terms.TermDays)
		loan.DueDate = &due
	}

	err = m.store.WithinTx(ctx, func(tx repository.Tx) error {
		accounts, err := tx.LockAccounts(ctx, lender.ID, borrowerID)
		if err != nil {
			return err
		}
		if accounts[lender.ID].SavingsBalance.LessThan(amount) {
			return models.ErrInsufficientLenderFunds
		}

		if _, err := tx.ApplyDelta(ctx, lender.ID, decimal.Zero, amount.Neg()); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, borrowerID, amount, decimal.Zero); err != nil {
			return err
		}
		return tx.CreateLoan(ctx, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("issue loan of %s to account %d: %w", amount, borrowerID, err)
	}

	m.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"lender_id":   loan.LenderID,
		"borrower_id": loan.BorrowerID,
		"amount":      loan.Amount.String(),
	}).Info("Loan issued")
	return loan, nil
}

// Repay settles an active loan: the payer's main balance covers principal
// plus interest, which all goes to the lender's savings.
func (m *Manager) Repay(ctx context.Context, loanID, payerID int64) (*models.Repayment, error) {
	var repayment *models.Repayment

	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		loan, err := tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.BorrowerID != payerID {
			return models.ErrNotBorrower
		}
		if loan.Status != models.LoanActive {
			return fmt.Errorf("%w: status is %s", models.ErrLoanNotActive, loan.Status)
		}

		accounts, err := tx.LockAccounts(ctx, payerID, loan.LenderID)
		if err != nil {
			return err
		}
		totalDue := loan.TotalDue()
		if accounts[payerID].MainBalance.LessThan(totalDue) {
			return fmt.Errorf("%w: %s due", models.ErrInsufficientFunds, totalDue)
		}

		if _, err := tx.ApplyDelta(ctx, payerID, totalDue.Neg(), decimal.Zero); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, loan.LenderID, decimal.Zero, totalDue); err != nil {
			return err
		}
		if err := tx.SetLoanStatus(ctx, loan.ID, models.LoanPaid); err != nil {
			return err
		}

		loan.Status = models.LoanPaid
		repayment = &models.Repayment{Loan: loan, Interest: loan.Interest(), TotalDue: totalDue}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repay loan %d: %w", loanID, err)
	}

	m.log.WithFields(logrus.Fields{
		"loan_id":   loanID,
		"payer_id":  payerID,
		"lender_id": repayment.Loan.LenderID,
		"total_due": repayment.TotalDue.String(),
	}).Info("Loan repaid")
	return repayment, nil
}
