// Package payout decides when accumulated savings are swept back into the
// main balance.
package payout

import "github.com/shopspring/decimal"

// Trigger sweeps exactly Threshold from savings to main once savings reach it.
// Each sweep is capped at Threshold; whatever exceeds it stays in savings and
// counts toward the next crossing.
type Trigger struct {
	Threshold decimal.Decimal
}

// NewTrigger creates a trigger for the given threshold
func NewTrigger(threshold decimal.Decimal) *Trigger {
	return &Trigger{Threshold: threshold}
}

// Sweep returns the amount to move out of savings and whether a sweep is due
func (t *Trigger) Sweep(savings decimal.Decimal) (decimal.Decimal, bool) {
	if savings.LessThan(t.Threshold) {
		return decimal.Zero, false
	}
	return t.Threshold, true
}
