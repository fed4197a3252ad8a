package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending operator alerts via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendConservationAlert tells operators that balances no longer match the
// money that entered the ledger
func (s *Sender) SendConservationAlert(totals *models.LedgerTotals, checkedAt time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = "Ledger conservation check failed"

	body := fmt.Sprintf(
		"The ledger audit at %s found a balance mismatch.\n\n"+
			"Main balances:    %s\n"+
			"Savings balances: %s\n"+
			"Held in total:    %s\n\n"+
			"Expected total:   %s\n"+
			"Difference:       %s\n\n"+
			"Interest paid to lenders so far: %s\n",
		checkedAt.Format("2006-01-02 15:04:05"),
		totals.Main, totals.Savings, totals.Held(),
		totals.Expected(),
		totals.Held().Sub(totals.Expected()),
		totals.Interest,
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send conservation alert to %s: %v", s.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}
