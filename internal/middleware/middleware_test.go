package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	var seen int64
	protected := AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	future := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), "7", future), http.StatusUnauthorized},
		{"wrong method", "Bearer " + signed(t, jwt.SigningMethodHS512, []byte("secret"), "7", future), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("secret"), "7", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"bad subject", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("secret"), "alice", future), http.StatusUnauthorized},
		{"valid", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("secret"), "7", future), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, int64(7), seen)
			} else {
				assert.Zero(t, seen)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	generated := rec.Header().Get(requestIDHeader)
	assert.NotEmpty(t, generated)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, generated, entry.Data["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}
