package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/risk"
	"github.com/shopspring/decimal"
)

const approvalExplanation = "Loan approved: your savings and repayment history show a healthy outlook."

// RequestLoan evaluates the borrower and, on approval, issues a loan funded
// by a matched lender. The risk call is bounded by the configured timeout
// and runs before any ledger transaction is opened.
func (s *Service) RequestLoan(ctx context.Context, borrowerID int64, amount decimal.Decimal) (*models.LoanApproval, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("request loan of %s: %w", amount, models.ErrInvalidAmount)
	}

	profile, err := s.repo.BorrowerProfile(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.config.RiskTimeout)
	decision, err := s.gate.Evaluate(evalCtx, *profile)
	cancel()
	if err != nil {
		s.log.WithError(err).WithField("account_id", borrowerID).Warn("Risk evaluation unavailable")
		decision = risk.Unavailable
	}

	switch decision {
	case risk.Deny:
		s.log.WithField("account_id", borrowerID).Info("Loan denied by risk evaluation")
	case risk.Unavailable:
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRiskUnavailable, err)
		}
	}

	loan, err := s.loans.Issue(ctx, amount, borrowerID, decision)
	if err != nil {
		return nil, err
	}
	return &models.LoanApproval{Loan: loan, Explanation: approvalExplanation}, nil
}

// RepayLoan settles a loan on behalf of its borrower
func (s *Service) RepayLoan(ctx context.Context, loanID, payerID int64) (*models.Repayment, error) {
	return s.loans.Repay(ctx, loanID, payerID)
}
