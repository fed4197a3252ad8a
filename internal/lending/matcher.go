package lending

import (
	"context"
	"fmt"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/shopspring/decimal"
)

// Matcher selects a counterparty with enough idle savings to fund a loan
type Matcher struct {
	store repository.Store
}

// NewMatcher creates a matcher over the ledger store
func NewMatcher(store repository.Store) *Matcher {
	return &Matcher{store: store}
}

// FindLender returns the lowest-id account other than excludeID whose
// savings cover required. The lender's funds are not reserved; issuance
// checks them again when it commits.
func (m *Matcher) FindLender(ctx context.Context, required decimal.Decimal, excludeID int64) (*models.Account, error) {
	if !required.IsPositive() {
		return nil, fmt.Errorf("find lender for %s: %w", required, models.ErrInvalidAmount)
	}
	lender, err := m.store.FindLender(ctx, required, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find lender for %s: %w", required, err)
	}
	return lender, nil
}
