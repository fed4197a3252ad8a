package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.RiskTimeout)
	assert.Equal(t, 20*time.Second, cfg.AdviceTimeout)
	assert.Empty(t, cfg.AdviceURL)
	assert.Equal(t, 3, cfg.MaxActiveLoans)
	assert.True(t, cfg.RoundingUnit.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.PayoutThreshold.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.StartingBalance.Equal(decimal.NewFromInt(10000)))
	assert.True(t, cfg.InterestRate.Equal(decimal.RequireFromString("0.05")))
	assert.False(t, cfg.AlertsEnabled())
}

func TestNewConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microsave.yaml")
	content := "PORT: \"9090\"\n" +
		"DB_DRIVER: sqlite\n" +
		"DB_CONN: /tmp/ledger.db\n" +
		"ROUNDING_UNIT: \"100\"\n" +
		"LOAN_TERM_DAYS: \"30\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("RISK_TIMEOUT", "250ms")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port, "environment overrides the file")
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/ledger.db", cfg.DBConn)
	assert.True(t, cfg.RoundingUnit.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 30, cfg.LoanTermDays)
	assert.Equal(t, 250*time.Millisecond, cfg.RiskTimeout)
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad integer", map[string]string{"MAX_ACTIVE_LOANS": "many"}, "MAX_ACTIVE_LOANS"},
		{"bad duration", map[string]string{"RISK_TIMEOUT": "soon"}, "RISK_TIMEOUT"},
		{"zero advice timeout", map[string]string{"ADVICE_TIMEOUT": "0s"}, "ADVICE_TIMEOUT"},
		{"bad decimal", map[string]string{"INTEREST_RATE": "five"}, "INTEREST_RATE"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"zero unit", map[string]string{"ROUNDING_UNIT": "0"}, "ROUNDING_UNIT"},
		{"negative rate", map[string]string{"INTEREST_RATE": "-0.1"}, "INTEREST_RATE"},
		{"missing conn", map[string]string{"DB_DRIVER": "postgres", "DB_CONN": ""}, "DB_CONN"},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/microsave.yaml"}, "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAlertsEnabled(t *testing.T) {
	cfg := &Config{SMTPHost: "smtp.example.com", SenderEmail: "ledger@example.com"}
	assert.False(t, cfg.AlertsEnabled())
	cfg.AlertEmail = "ops@example.com"
	assert.True(t, cfg.AlertsEnabled())
}
