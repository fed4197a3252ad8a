package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransactionResult is a recorded purchase with its ledger effect
type TransactionResult struct {
	Transaction  *models.Transaction         `json:"transaction"`
	Contribution *models.SavingsContribution `json:"contribution"`
	Payout       decimal.Decimal             `json:"payout"`
	Balances     models.Balances             `json:"balances"`
}

// RecordTransaction charges the rounded-up amount to the main balance,
// puts the round-up into savings and sweeps a payout when savings reach the
// threshold. The records, the deltas and the sweep commit together.
func (s *Service) RecordTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*TransactionResult, error) {
	rounded, err := s.roundup.Compute(amount)
	if err != nil {
		return nil, err
	}

	result := &TransactionResult{Payout: decimal.Zero}
	err = s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		accounts, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		if accounts[accountID].MainBalance.LessThan(rounded.RoundedCharge) {
			return fmt.Errorf("%w: charge of %s", models.ErrInsufficientFunds, rounded.RoundedCharge)
		}

		balances, err := tx.ApplyDelta(ctx, accountID, rounded.RoundedCharge.Neg(), rounded.Contribution)
		if err != nil {
			return err
		}

		txn := &models.Transaction{
			AccountID:     accountID,
			Amount:        rounded.Amount,
			RoundedCharge: rounded.RoundedCharge,
			Description:   description,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		contribution := &models.SavingsContribution{
			AccountID:     accountID,
			TransactionID: txn.ID,
			Amount:        rounded.Contribution,
		}
		if err := tx.CreateContribution(ctx, contribution); err != nil {
			return err
		}

		if sweep, ok := s.payout.Sweep(balances.Savings); ok {
			balances, err = tx.ApplyDelta(ctx, accountID, sweep, sweep.Neg())
			if err != nil {
				return err
			}
			result.Payout = sweep
		}

		result.Transaction = txn
		result.Contribution = contribution
		result.Balances = balances
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record transaction for account %d: %w", accountID, err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"account_id":     accountID,
		"transaction_id": result.Transaction.ID,
		"rounded_charge": rounded.RoundedCharge.String(),
		"contribution":   rounded.Contribution.String(),
	})
	entry.Info("Transaction recorded")
	if result.Payout.IsPositive() {
		entry.WithField("payout", result.Payout.String()).Info("Savings payout triggered")
	}
	return result, nil
}
