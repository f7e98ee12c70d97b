package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/cache"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/redisstore"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"
)

var fixedNow = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubSource struct {
	accounts map[string]*domain.AccountRecord
	bills    map[string][]domain.Bill
}

func (s *stubSource) GetAccount(_ context.Context, id string) (*domain.AccountRecord, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return acc, nil
}

func (s *stubSource) ListCycleBills(_ context.Context, id string) ([]domain.Bill, error) {
	return s.bills[id], nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newSource() *stubSource {
	day := func(d int) domain.Date { return domain.NewDate(2026, time.October, d) }
	return &stubSource{
		accounts: map[string]*domain.AccountRecord{
			"acc-1": {ID: "acc-1", OwnerID: "user-1", Tier: domain.TierBasic, CycleStartDate: day(1), SettlementDayOfMonth: 31},
		},
		bills: map[string][]domain.Bill{
			"acc-1": {
				{ID: "b1", Name: "Power", Category: domain.CategoryUtilities, Amount: decimal.RequireFromString("120.40"), DueDate: day(20), Status: domain.BillStatusScheduled},
				{ID: "b2", Name: "Rent", Category: domain.CategoryRent, Amount: decimal.RequireFromString("900"), DueDate: day(3), Status: domain.BillStatusPaid},
				{ID: "b3", Name: "Phone", Category: domain.CategoryPhone, Amount: decimal.RequireFromString("60"), DueDate: day(17), Status: domain.BillStatusPending},
				{ID: "b4", Name: "Insurance", Category: domain.CategoryInsurance, Amount: decimal.RequireFromString("75"), DueDate: day(28), Status: domain.BillStatusPending},
			},
		},
	}
}

type testEnv struct {
	router   http.Handler
	verifier *service.WebhookVerifier
}

func setup(t *testing.T) testEnv {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	catalog, err := ledger.NewPlanCatalog(ledger.DefaultPlans())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewReferralStore(client, "test", logger)

	verifier, err := service.NewWebhookVerifier("webhook-secret", clock)
	require.NoError(t, err)

	router := handler.NewRouter(handler.Services{
		Access:   service.NewAccessService(newSource(), catalog, cache.New[*domain.AccessAccount](10, time.Minute), clock, time.UTC, 3, metrics, logger),
		Plans:    service.NewPlanService(catalog),
		Referral: service.NewReferralService(store, decimal.RequireFromString("25"), clock, metrics, logger),
		Webhook:  verifier,
		Health:   map[string]handler.Pinger{"redis": store},
	}, metrics, logger)

	return testEnv{router: router, verifier: verifier}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyz_FailingDependency(t *testing.T) {
	router := handler.NewRouter(handler.Services{
		Health: map[string]handler.Pinger{"supabase": failingPinger{}},
	}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/v1/metrics/ledger", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "all_time", decode(t, rec)["period"])
}

// --- Plans ---

func TestPlans(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/v1/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["total"])

	rec = do(t, env.router, http.MethodGet, "/v1/plans/plus/first-payment", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "19.5", body["firstInstallment"])
	assert.Equal(t, "58.5", body["totalDueToday"])

	rec = do(t, env.router, http.MethodGet, "/v1/plans/diamond", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Accounts ---

func TestAccessOverview(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/v1/accounts/acc-1/access", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	usage := body["usage"].(map[string]any)
	assert.Equal(t, "1020.4", usage["used"])
	assert.Equal(t, "479.6", usage["remaining"])
	assert.Equal(t, "68.03", usage["percentUsed"])
	assert.Equal(t, "2026-10-31", body["nextSettlementDate"])
	assert.EqualValues(t, 13, body["daysUntilSettlement"])
	assert.Equal(t, false, body["degraded"])
}

func TestAccessOverview_UnknownAccount(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/v1/accounts/nope/access", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpcomingBills(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/v1/accounts/acc-1/bills/upcoming?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	bills := decode(t, rec)["bills"].([]any)
	require.Len(t, bills, 1)
	assert.Equal(t, "b3", bills[0].(map[string]any)["id"])
	assert.Equal(t, "overdue", bills[0].(map[string]any)["displayStatus"])

	rec = do(t, env.router, http.MethodGet, "/v1/accounts/acc-1/bills/upcoming", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["total"])

	for _, q := range []string{"limit=0", "limit=abc"} {
		rec = do(t, env.router, http.MethodGet, "/v1/accounts/acc-1/bills/upcoming?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestNextPaymentAndRefresh(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, http.MethodGet, "/v1/accounts/acc-1/next-payment", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1020.4", decode(t, rec)["amount"])

	rec = do(t, env.router, http.MethodPost, "/v1/accounts/acc-1/refresh", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// --- Referrals ---

func TestReferralFlow(t *testing.T) {
	env := setup(t)
	token, err := env.verifier.Sign("onboarding-svc", time.Minute)
	require.NoError(t, err)

	rec := do(t, env.router, http.MethodGet, "/v1/users/abcdef123456/referral", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REF-ABCDEF12", decode(t, rec)["code"])

	payload := `{"eventId":"evt-9","referrerId":"abcdef123456","referredUserId":"new-user"}`
	rec = do(t, env.router, http.MethodPost, "/v1/referrals/completions", payload, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decode(t, rec)["duplicate"])

	rec = do(t, env.router, http.MethodPost, "/v1/referrals/completions", payload, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["duplicate"])

	rec = do(t, env.router, http.MethodGet, "/v1/users/abcdef123456/referral", "", "")
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["referralCount"])
	assert.Equal(t, "25", body["totalEarnings"])
}

func TestReferralCompletion_RequiresToken(t *testing.T) {
	env := setup(t)
	payload := `{"referrerId":"a","referredUserId":"b"}`

	rec := do(t, env.router, http.MethodPost, "/v1/referrals/completions", payload, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, env.router, http.MethodPost, "/v1/referrals/completions", payload, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReferralCompletion_BadRequests(t *testing.T) {
	env := setup(t)
	token, err := env.verifier.Sign("onboarding-svc", time.Minute)
	require.NoError(t, err)

	rec := do(t, env.router, http.MethodPost, "/v1/referrals/completions", `{not json`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.router, http.MethodPost, "/v1/referrals/completions", `{"referrerId":"a","referredUserId":"a"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
