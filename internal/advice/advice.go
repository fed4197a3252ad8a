// Package advice asks an external text service for saving tips based on an
// account's recent purchases. The service is optional: without it, or when
// it fails, callers fall back to generic advice.
package advice

import (
	"context"
	"net/url"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/sirupsen/logrus"
)

// Fallback is served when no advice service answers
const Fallback = "Could not fetch personalised advice at the moment. General advice: track your spending and build a budget to help you save more effectively!"

// Advisor turns purchase descriptions into advice text
type Advisor interface {
	Advise(ctx context.Context, descriptions []string) (string, error)
}

// New builds the advisor configured in cfg. With no ADVICE_URL every call
// answers with Fallback.
func New(cfg *config.Config, log *logrus.Logger) Advisor {
	if cfg.AdviceURL == "" {
		log.Info("Advice service not configured, serving generic advice")
		return Static{Text: Fallback}
	}
	u, err := url.Parse(cfg.AdviceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		log.Errorf("Advice service URL %q is invalid, serving generic advice", cfg.AdviceURL)
		return Static{Text: Fallback}
	}
	log.Infof("Advice service at %s", u.Redacted())
	return NewClient(cfg, log)
}

// Static always answers with the same text
type Static struct {
	Text string
}

// Advise returns the fixed text
func (s Static) Advise(context.Context, []string) (string, error) {
	return s.Text, nil
}
