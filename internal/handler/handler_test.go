package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/microsave/internal/advice"
	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/Dan9191/microsave/internal/risk"
	"github.com/Dan9191/microsave/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type api struct {
	t      *testing.T
	router http.Handler
	store  *repository.MemoryStore
}

func newAPI(t *testing.T, gate risk.Gate) *api {
	return newAPIWithAdvisor(t, gate, advice.Static{Text: advice.Fallback})
}

func newAPIWithAdvisor(t *testing.T, gate risk.Gate, advisor advice.Advisor) *api {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg := &config.Config{
		DBDriver:        config.DriverMemory,
		JWTSecret:       "handler-secret",
		RiskTimeout:     time.Second,
		AdviceTimeout:   time.Second,
		MaxActiveLoans:  3,
		RoundingUnit:    d("10"),
		PayoutThreshold: d("1000"),
		StartingBalance: d("10000"),
		InterestRate:    d("0.05"),
	}
	store := repository.NewMemoryStore()
	svc := service.NewService(store, gate, advisor, log, cfg)
	return &api{t: t, router: NewRouter(NewHandler(svc, log), cfg, log), store: store}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *api) signUp(name string) (int64, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret-" + name,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var acc struct {
		ID int64 `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &acc))

	rec = a.do(http.MethodPost, "/login", "", map[string]string{"username": name, "password": "secret-" + name})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &tok))
	return acc.ID, tok.AccessToken
}

func decodeAccount(t *testing.T, rec *httptest.ResponseRecorder) models.Account {
	t.Helper()
	var acc models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	return acc
}

func TestHealth(t *testing.T) {
	a := newAPI(t, risk.NewRules(3))
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newAPI(t, risk.NewRules(3))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/accounts/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/accounts/me", "garbage", nil).Code)
}

func TestRegisterAndLogin_Errors(t *testing.T) {
	a := newAPI(t, risk.NewRules(3))
	a.signUp("alice")

	rec := a.do(http.MethodPost, "/register", "", map[string]string{"username": "alice", "email": "x@example.com", "password": "p"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/register", "", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactionFlow(t *testing.T) {
	a := newAPI(t, risk.NewRules(3))
	_, token := a.signUp("alice")

	rec := a.do(http.MethodPost, "/transactions", token, map[string]any{"amount": 47, "description": "coffee"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res service.TransactionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Transaction.RoundedCharge.Equal(d("50")))
	assert.True(t, res.Contribution.Amount.Equal(d("3")))

	acc := decodeAccount(t, a.do(http.MethodGet, "/accounts/me", token, nil))
	assert.True(t, acc.MainBalance.Equal(d("9950")))
	assert.True(t, acc.SavingsBalance.Equal(d("3")))

	rec = a.do(http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	assert.Len(t, txns, 1)

	rec = a.do(http.MethodPost, "/transactions", token, map[string]any{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/transactions", token, map[string]any{"amount": 20000})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoanFlow(t *testing.T) {
	a := newAPI(t, risk.NewRules(3))
	lenderID, lenderToken := a.signUp("lender")
	borrowerID, borrowerToken := a.signUp("borrower")
	ctx := context.Background()

	rec := a.do(http.MethodPost, "/loans", borrowerToken, map[string]any{"amount": 200})
	assert.Equal(t, http.StatusNotFound, rec.Code, "no lender has savings yet")

	require.NoError(t, a.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.ApplyDelta(ctx, lenderID, d("-500"), d("500"))
		return err
	}))

	rec = a.do(http.MethodPost, "/loans", borrowerToken, map[string]any{"amount": "200"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loan models.Loan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loan))
	assert.Equal(t, models.LoanActive, loan.Status)
	var approval struct {
		Explanation string `json:"explanation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	assert.NotEmpty(t, approval.Explanation)
	assert.Equal(t, lenderID, loan.LenderID)
	assert.Equal(t, borrowerID, loan.BorrowerID)

	repayPath := fmt.Sprintf("/loans/%d/repay", loan.ID)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, repayPath, lenderToken, nil).Code)

	rec = a.do(http.MethodPost, repayPath, borrowerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var repayment models.Repayment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repayment))
	assert.True(t, repayment.TotalDue.Equal(d("210")))

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, repayPath, borrowerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/loans/999/repay", borrowerToken, nil).Code)

	lender := decodeAccount(t, a.do(http.MethodGet, "/accounts/me", lenderToken, nil))
	assert.True(t, lender.SavingsBalance.Equal(d("510")))

	rec = a.do(http.MethodGet, "/loans", lenderToken, nil)
	var loans []models.Loan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, models.LoanPaid, loans[0].Status)

	rec = a.do(http.MethodGet, "/accounts/me/profile", borrowerToken, nil)
	var profile models.BorrowerProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, 1, profile.RepaidLoans)
}

func TestLoanGateStatuses(t *testing.T) {
	denied := newAPI(t, risk.NewRules(1))
	lenderID, _ := denied.signUp("lender")
	_, token := denied.signUp("borrower")
	ctx := context.Background()
	require.NoError(t, denied.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.ApplyDelta(ctx, lenderID, d("-1000"), d("1000"))
		return err
	}))
	assert.Equal(t, http.StatusCreated, denied.do(http.MethodPost, "/loans", token, map[string]any{"amount": 100}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, denied.do(http.MethodPost, "/loans", token, map[string]any{"amount": 100}).Code)

	down := newAPI(t, risk.NewUnavailable(fmt.Errorf("dial tcp 10.0.0.5:8443: connection refused")))
	_, token = down.signUp("borrower")
	rec := down.do(http.MethodPost, "/loans", token, map[string]any{"amount": 100})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ErrRiskUnavailable.Error(), body["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

type fixedAdvisor string

func (a fixedAdvisor) Advise(context.Context, []string) (string, error) {
	return string(a), nil
}

func TestInsights(t *testing.T) {
	a := newAPIWithAdvisor(t, risk.NewRules(3), fixedAdvisor("Cook at home."))
	_, token := a.signUp("alice")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/insights", "", nil).Code)

	rec := a.do(http.MethodGet, "/insights", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Insights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Fallback, "no purchases yet")

	a.do(http.MethodPost, "/transactions", token, map[string]any{"amount": 12, "description": "lunch"})
	rec = a.do(http.MethodGet, "/insights", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Cook at home.", got.Text)
	assert.False(t, got.Fallback)
}
