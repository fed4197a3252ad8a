package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Supported ledger store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBDriver  string
	DBConn    string
	LogLevel  string
	JWTSecret string

	RiskURL        string
	RiskTimeout    time.Duration
	MaxActiveLoans int

	AdviceURL     string
	AdviceAPIKey  string
	AdviceTimeout time.Duration

	RoundingUnit    decimal.Decimal
	PayoutThreshold decimal.Decimal
	StartingBalance decimal.Decimal
	InterestRate    decimal.Decimal
	LoanTermDays    int

	AuditSchedule string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SenderEmail   string
	AlertEmail    string
}

// NewConfig loads configuration from an optional YAML file named by
// CONFIG_FILE and from environment variables. Environment variables win.
func NewConfig() (*Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	l := loader{file: file}

	cfg := &Config{
		Port:      l.get("PORT", "8080"),
		DBDriver:  l.get("DB_DRIVER", DriverMemory),
		DBConn:    l.get("DB_CONN", "host=localhost port=5436 user=test password=test dbname=microsave sslmode=disable"),
		LogLevel:  l.get("LOG_LEVEL", "INFO"),
		JWTSecret: l.get("JWT_SECRET", "secret"),

		RiskURL:        l.get("RISK_URL", ""),
		RiskTimeout:    l.duration("RISK_TIMEOUT", 5*time.Second),
		MaxActiveLoans: l.int("MAX_ACTIVE_LOANS", 3),

		AdviceURL:     l.get("ADVICE_URL", ""),
		AdviceAPIKey:  l.get("ADVICE_API_KEY", ""),
		AdviceTimeout: l.duration("ADVICE_TIMEOUT", 20*time.Second),

		RoundingUnit:    l.decimal("ROUNDING_UNIT", "10"),
		PayoutThreshold: l.decimal("PAYOUT_THRESHOLD", "1000"),
		StartingBalance: l.decimal("STARTING_BALANCE", "10000"),
		InterestRate:    l.decimal("INTEREST_RATE", "0.05"),
		LoanTermDays:    l.int("LOAN_TERM_DAYS", 0),

		AuditSchedule: l.get("AUDIT_SCHEDULE", "@every 1h"),
		SMTPHost:      l.get("SMTP_HOST", ""),
		SMTPPort:      l.get("SMTP_PORT", "587"),
		SMTPUsername:  l.get("SMTP_USERNAME", ""),
		SMTPPassword:  l.get("SMTP_PASSWORD", ""),
		SenderEmail:   l.get("SENDER_EMAIL", ""),
		AlertEmail:    l.get("ALERT_EMAIL", ""),
	}
	if l.err != nil {
		return nil, l.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be one of memory, postgres, sqlite, got %q", c.DBDriver)
	}
	if c.DBDriver != DriverMemory && c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.RoundingUnit.IsPositive() {
		return fmt.Errorf("ROUNDING_UNIT must be positive")
	}
	if !c.PayoutThreshold.IsPositive() {
		return fmt.Errorf("PAYOUT_THRESHOLD must be positive")
	}
	if c.StartingBalance.IsNegative() {
		return fmt.Errorf("STARTING_BALANCE must not be negative")
	}
	if c.InterestRate.IsNegative() {
		return fmt.Errorf("INTEREST_RATE must not be negative")
	}
	if c.RiskTimeout <= 0 {
		return fmt.Errorf("RISK_TIMEOUT must be positive")
	}
	if c.AdviceTimeout <= 0 {
		return fmt.Errorf("ADVICE_TIMEOUT must be positive")
	}
	if c.MaxActiveLoans < 1 {
		return fmt.Errorf("MAX_ACTIVE_LOANS must be at least 1")
	}
	if c.LoanTermDays < 0 {
		return fmt.Errorf("LOAN_TERM_DAYS must not be negative")
	}
	return nil
}

// AlertsEnabled reports whether audit alerts can be mailed
func (c *Config) AlertsEnabled() bool {
	return c.AlertEmail != "" && c.SMTPHost != "" && c.SenderEmail != ""
}

func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

// loader resolves a key from the environment, then the config file, then the default.
// The first parse failure is kept in err.
type loader struct {
	file map[string]string
	err  error
}

func (l *loader) get(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := l.file[key]; exists {
		return value
	}
	return defaultVal
}

func (l *loader) int(key string, defaultVal int) int {
	raw := l.get(key, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid integer %q", key, raw))
		return defaultVal
	}
	return v
}

func (l *loader) duration(key string, defaultVal time.Duration) time.Duration {
	raw := l.get(key, defaultVal.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultVal
	}
	return v
}

func (l *loader) decimal(key, defaultVal string) decimal.Decimal {
	raw := l.get(key, defaultVal)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid decimal %q", key, raw))
		return decimal.RequireFromString(defaultVal)
	}
	return v
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}
