package risk

import (
	"context"

	"github.com/Dan9191/microsave/internal/models"
)

// Rules is a local gate that denies borrowers already carrying too many active loans
type Rules struct {
	MaxActiveLoans int
}

// NewRules creates a rules gate
func NewRules(maxActiveLoans int) *Rules {
	return &Rules{MaxActiveLoans: maxActiveLoans}
}

// Evaluate approves unless the borrower has reached the active loan cap
func (r *Rules) Evaluate(ctx context.Context, profile models.BorrowerProfile) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Unavailable, err
	}
	if profile.ActiveLoans >= r.MaxActiveLoans {
		return Deny, nil
	}
	return Approve, nil
}
