// Package roundup computes the rounded charge of a purchase and the
// difference that goes into the savings pot.
package roundup

import (
	"fmt"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/shopspring/decimal"
)

// Result is the outcome of rounding a single purchase
type Result struct {
	Amount        decimal.Decimal `json:"amount"`
	RoundedCharge decimal.Decimal `json:"rounded_charge"`
	Contribution  decimal.Decimal `json:"contribution"`
}

// Engine rounds amounts up to the next multiple of Unit
type Engine struct {
	Unit decimal.Decimal
}

// NewEngine creates an engine for the given rounding unit
func NewEngine(unit decimal.Decimal) *Engine {
	return &Engine{Unit: unit}
}

// Compute returns the rounded charge and the contribution for amount.
// The contribution is in [0, Unit) and is zero only for exact multiples.
func (e *Engine) Compute(amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("round up %s: %w", amount, models.ErrInvalidAmount)
	}

	contribution := decimal.Zero
	if rem := amount.Mod(e.Unit); !rem.IsZero() {
		contribution = e.Unit.Sub(rem)
	}

	return Result{
		Amount:        amount,
		RoundedCharge: amount.Add(contribution),
		Contribution:  contribution,
	}, nil
}
