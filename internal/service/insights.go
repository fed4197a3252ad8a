package service

import (
	"context"
	"strings"

	"github.com/Dan9191/microsave/internal/advice"
	"github.com/Dan9191/microsave/internal/models"
)

// insightHistory is how many recent purchases are sent for advice
const insightHistory = 10

// Insights returns saving advice based on the account's latest purchases.
// A failing advice service yields generic advice, not an error.
func (s *Service) Insights(ctx context.Context, accountID int64) (*models.Insights, error) {
	if _, err := s.repo.Account(ctx, accountID); err != nil {
		return nil, err
	}
	txns, err := s.repo.Transactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(txns) > insightHistory {
		txns = txns[len(txns)-insightHistory:]
	}

	descriptions := make([]string, 0, len(txns))
	for _, t := range txns {
		if desc := strings.TrimSpace(t.Description); desc != "" {
			descriptions = append(descriptions, desc)
		}
	}
	if len(descriptions) == 0 {
		return &models.Insights{Text: advice.Fallback, Fallback: true}, nil
	}

	adviceCtx, cancel := context.WithTimeout(ctx, s.config.AdviceTimeout)
	text, err := s.advisor.Advise(adviceCtx, descriptions)
	cancel()
	if err != nil {
		s.log.WithError(err).WithField("account_id", accountID).Warn("Advice service unavailable, serving generic advice")
		return &models.Insights{Text: advice.Fallback, Fallback: true}, nil
	}
	return &models.Insights{Text: text, Fallback: text == advice.Fallback}, nil
}
