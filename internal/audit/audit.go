// Package audit checks that the ledger conserves money: the balances held
// across all accounts must equal the starting grants. Round-ups, payouts,
// issuance and repayment with interest all move money between balances.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Alerter is notified when a check fails
type Alerter interface {
	SendConservationAlert(totals *models.LedgerTotals, checkedAt time.Time) error
}

// Report is the outcome of one check
type Report struct {
	Totals    *models.LedgerTotals `json:"totals"`
	Balanced  bool                 `json:"balanced"`
	CheckedAt time.Time            `json:"checked_at"`
}

// Auditor runs conservation checks against the ledger store
type Auditor struct {
	store   repository.Store
	alerter Alerter
	log     *logrus.Logger
	now     func() time.Time
}

// NewAuditor creates an auditor. alerter may be nil.
func NewAuditor(store repository.Store, alerter Alerter, log *logrus.Logger) *Auditor {
	return &Auditor{store: store, alerter: alerter, log: log, now: time.Now}
}

// Run performs one check. An unbalanced ledger is reported, not returned as
// an error; the error is for failures to read the ledger.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	totals, err := a.store.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit ledger: %w", err)
	}

	report := &Report{
		Totals:    totals,
		Balanced:  totals.Held().Equal(totals.Expected()),
		CheckedAt: a.now().UTC(),
	}

	entry := a.log.WithFields(logrus.Fields{
		"held":     totals.Held().String(),
		"expected": totals.Expected().String(),
	})
	if report.Balanced {
		entry.Info("Ledger audit passed")
		return report, nil
	}

	entry.Error("Ledger audit found a conservation mismatch")
	if a.alerter != nil {
		if err := a.alerter.SendConservationAlert(totals, report.CheckedAt); err != nil {
			a.log.WithError(err).Error("Failed to send audit alert")
		}
	}
	return report, nil
}

// Schedule registers the auditor on a cron scheduler with the given spec.
// The caller starts and stops the returned scheduler.
func Schedule(a *Auditor, spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			a.log.WithError(err).Error("Scheduled ledger audit failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	return c, nil
}
