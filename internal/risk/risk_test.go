package risk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile() models.BorrowerProfile {
	return models.BorrowerProfile{
		AccountID:        7,
		TransactionCount: 12,
		SavingsBalance:   decimal.RequireFromString("123.4"),
		RepaidLoans:      2,
		ActiveLoans:      1,
	}
}

const decisionResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <EvaluateBorrowerResponse xmlns="http://microsave.local/risk/">
      <EvaluateBorrowerResult>
        <Decision>%s</Decision>
      </EvaluateBorrowerResult>
    </EvaluateBorrowerResponse>
  </soap:Body>
</soap:Envelope>`

func riskServer(t *testing.T, status int, body string, seen *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			*seen = string(raw)
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string, timeout time.Duration) *Client {
	log, _ := test.NewNullLogger()
	return NewClient(&config.Config{RiskURL: url, RiskTimeout: timeout}, log)
}

func TestRules(t *testing.T) {
	r := NewRules(3)
	ctx := context.Background()

	p := profile()
	got, err := r.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Approve, got)

	p.ActiveLoans = 3
	got, err = r.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Deny, got)
}

func TestRules_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := NewRules(3).Evaluate(ctx, profile())
	assert.Error(t, err)
	assert.Equal(t, Unavailable, got)
}

func TestParseDecision(t *testing.T) {
	tests := map[string]Decision{
		"approve":    Approve,
		" Approved ": Approve,
		"positive":   Approve,
		"neutral":    Approve,
		"DENY":       Deny,
		"negative":   Deny,
	}
	for label, want := range tests {
		got, err := parseDecision(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}

	got, err := parseDecision("maybe")
	assert.Error(t, err)
	assert.Equal(t, Unavailable, got)
}

func TestClient_Evaluate(t *testing.T) {
	var seen string
	srv := riskServer(t, http.StatusOK, strings.Replace(decisionResponse, "%s", "deny", 1), &seen)

	got, err := newTestClient(srv.URL, time.Second).Evaluate(context.Background(), profile())
	require.NoError(t, err)
	assert.Equal(t, Deny, got)

	assert.Contains(t, seen, "<EvaluateBorrower")
	assert.Contains(t, seen, "<AccountId>7</AccountId>")
	assert.Contains(t, seen, "<TransactionCount>12</TransactionCount>")
	assert.Contains(t, seen, "<SavingsBalance>123.40</SavingsBalance>")
	assert.Contains(t, seen, "<RepaidLoans>2</RepaidLoans>")
	assert.Contains(t, seen, "<ActiveLoans>1</ActiveLoans>")
}

func TestClient_Approve(t *testing.T) {
	srv := riskServer(t, http.StatusOK, strings.Replace(decisionResponse, "%s", "positive", 1), nil)

	got, err := newTestClient(srv.URL, time.Second).Evaluate(context.Background(), profile())
	require.NoError(t, err)
	assert.Equal(t, Approve, got)
}

func TestClient_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "oops"},
		{"malformed xml", http.StatusOK, "<not-xml"},
		{"missing decision", http.StatusOK, "<Envelope><Body/></Envelope>"},
		{"unknown label", http.StatusOK, strings.Replace(decisionResponse, "%s", "perhaps", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := riskServer(t, tt.status, tt.body, nil)
			got, err := newTestClient(srv.URL, time.Second).Evaluate(context.Background(), profile())
			assert.Error(t, err)
			assert.Equal(t, Unavailable, got)
		})
	}
}

func TestClient_TimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got, err := newTestClient(srv.URL, 5*time.Second).Evaluate(ctx, profile())
	assert.Error(t, err)
	assert.Equal(t, Unavailable, got)
}

func TestNew(t *testing.T) {
	log, _ := test.NewNullLogger()

	gate := New(&config.Config{MaxActiveLoans: 2, RiskTimeout: time.Second}, log)
	assert.IsType(t, &Rules{}, gate)

	gate = New(&config.Config{RiskURL: "http://risk.local/score", RiskTimeout: time.Second}, log)
	assert.IsType(t, &Client{}, gate)

	gate = New(&config.Config{RiskURL: "::not a url", RiskTimeout: time.Second}, log)
	require.IsType(t, &UnavailableGate{}, gate)
	got, err := gate.Evaluate(context.Background(), profile())
	assert.Error(t, err)
	assert.Equal(t, Unavailable, got)
}
