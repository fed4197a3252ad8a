// Package risk is the decision gate consulted before a loan is issued.
//
// The gate only sees a BorrowerProfile and answers Approve, Deny or
// Unavailable. Which implementation answers is decided once at startup by
// New; a gate that could not be initialised is replaced by an explicit
// Unavailable gate rather than left nil.
package risk

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/sirupsen/logrus"
)

// Decision is the outcome of a risk evaluation
type Decision int

const (
	// Unavailable means no decision could be made. It is the zero value.
	Unavailable Decision = iota
	Approve
	Deny
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Deny:
		return "deny"
	default:
		return "unavailable"
	}
}

// Gate evaluates a borrower. When the returned error is non-nil the
// decision is Unavailable.
type Gate interface {
	Evaluate(ctx context.Context, profile models.BorrowerProfile) (Decision, error)
}

// New builds the gate configured in cfg. With no RISK_URL the local rules
// gate is used.
func New(cfg *config.Config, log *logrus.Logger) Gate {
	if cfg.RiskURL == "" {
		log.Infof("Risk evaluation: local rules, max %d active loans", cfg.MaxActiveLoans)
		return NewRules(cfg.MaxActiveLoans)
	}

	u, err := url.Parse(cfg.RiskURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host")
		}
		log.WithError(err).Errorf("Risk service URL %q is invalid, loan requests will be refused", cfg.RiskURL)
		return NewUnavailable(fmt.Errorf("risk client init: %w", err))
	}

	log.Infof("Risk evaluation: remote service at %s", u.Redacted())
	return NewClient(cfg, log)
}

// UnavailableGate always answers Unavailable
type UnavailableGate struct {
	reason error
}

// NewUnavailable creates a gate that refuses every evaluation with reason
func NewUnavailable(reason error) *UnavailableGate {
	return &UnavailableGate{reason: reason}
}

// Evaluate always reports the gate as unavailable
func (g *UnavailableGate) Evaluate(_ context.Context, _ models.BorrowerProfile) (Decision, error) {
	return Unavailable, g.reason
}
