package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/cache"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/redisstore"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Feb 10th 2026, 23:30 in São Paulo is already Feb 11th in UTC.
var now = time.Date(2026, time.February, 11, 2, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

// mockPostgREST serves one account on the auto_plus tier and its bills.
func mockPostgREST(t *testing.T, accountCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rest/v1/access_accounts":
			accountCalls.Add(1)
			if r.URL.Query().Get("id") != "eq.acc-42" {
				w.Write([]byte(`[]`))
				return
			}
			w.Write([]byte(`[{"id":"acc-42","owner_id":"7f3e9a10-bb","tier":"auto_plus","cycle_start_date":"2026-01-31","settlement_day_of_month":31}]`))
		case "/rest/v1/cycle_bills":
			w.Write([]byte(`[
				{"id":"car","name":"Car payment","category":"auto","amount":"1499.99","due_date":"2026-02-12","status":"scheduled"},
				{"id":"rent","name":"Rent","category":"rent","amount":"2100.00","due_date":"2026-02-01","status":"paid"},
				{"id":"daycare","name":"Daycare","category":"childcare","amount":"640.00","due_date":"2026-02-09","status":"pending"},
				{"id":"net","name":"Fiber","category":"internet","amount":"99.90","due_date":"2026-02-12","status":"pending"},
				{"id":"bad","name":"Refund","category":"other","amount":"-10.00","due_date":"2026-02-15","status":"pending"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

type stack struct {
	server       *httptest.Server
	verifier     *service.WebhookVerifier
	metrics      *observability.Metrics
	accountCalls *atomic.Int32
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	accountCalls := &atomic.Int32{}
	postgrest := mockPostgREST(t, accountCalls)
	t.Cleanup(postgrest.Close)

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	source := supabase.NewClient(&http.Client{Timeout: 5 * time.Second}, postgrest.URL, "anon", "service",
		resilience.NewCircuitBreaker("test", nil), cfg, logger)

	mr := miniredis.RunT(t)
	redisClient, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("redis connect: %v", err)
	}
	t.Cleanup(func() { redisClient.Close() })
	store := redisstore.NewReferralStore(redisClient, "it", logger)

	catalog, err := ledger.NewPlanCatalog(ledger.DefaultPlans())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	verifier, err := service.NewWebhookVerifier("integration-secret", clock)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	router := handler.NewRouter(handler.Services{
		Access:   service.NewAccessService(source, catalog, cache.New[*domain.AccessAccount](100, time.Minute), clock, saoPaulo, 5, metrics, logger),
		Plans:    service.NewPlanService(catalog),
		Referral: service.NewReferralService(store, decimal.RequireFromString("25.00"), clock, metrics, logger),
		Webhook:  verifier,
		Health:   map[string]handler.Pinger{"supabase": source, "redis": store},
	}, metrics, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &stack{server: srv, verifier: verifier, metrics: metrics, accountCalls: accountCalls}
}

func (s *stack) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (s *stack) post(t *testing.T, path, token string, body any, out any) int {
	t.Helper()
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// TestIntegration_AccessFlow walks the account views end to end.
func TestIntegration_AccessFlow(t *testing.T) {
	s := newStack(t)

	var overview domain.AccessOverview
	if code := s.get(t, "/v1/accounts/acc-42/access", &overview); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if overview.Usage == nil {
		t.Fatal("expected usage to be present")
	}
	// 1499.99 scheduled + 2100.00 paid against a 5000 limit.
	if got := overview.Usage.Used.StringFixed(2); got != "3599.99" {
		t.Errorf("expected used 3599.99, got %s", got)
	}
	if got := overview.Usage.PercentUsed.StringFixed(2); got != "72.00" {
		t.Errorf("expected 72.00%%, got %s", got)
	}
	// Day 31 clamps to Feb 28th; today is still Feb 10th in São Paulo.
	if got := overview.NextSettlementDate.String(); got != "2026-02-28" {
		t.Errorf("expected settlement on 2026-02-28, got %s", got)
	}
	if overview.DaysUntilSettlement != 18 {
		t.Errorf("expected 18 days until settlement, got %d", overview.DaysUntilSettlement)
	}
	if got := overview.CycleEndDate.String(); got != "2026-02-27" {
		t.Errorf("expected cycle end 2026-02-27, got %s", got)
	}

	var upcoming struct {
		Bills []domain.BillView `json:"bills"`
	}
	if code := s.get(t, "/v1/accounts/acc-42/bills/upcoming?limit=2", &upcoming); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(upcoming.Bills) != 2 {
		t.Fatalf("expected 2 upcoming bills, got %d", len(upcoming.Bills))
	}
	// Daycare fell due yesterday: inside the upcoming window, yet overdue.
	if upcoming.Bills[0].ID != "daycare" || upcoming.Bills[0].DisplayStatus != domain.DisplayOverdue {
		t.Errorf("expected overdue daycare first, got %s (%s)", upcoming.Bills[0].ID, upcoming.Bills[0].DisplayStatus)
	}
	if upcoming.Bills[1].ID != "car" {
		t.Errorf("expected car second, got %s", upcoming.Bills[1].ID)
	}

	var next domain.NextPayment
	if code := s.get(t, "/v1/accounts/acc-42/next-payment", &next); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if next.ScheduledBills != 1 || next.PaidBills != 1 {
		t.Errorf("unexpected bill counts: %+v", next)
	}

	if calls := s.accountCalls.Load(); calls != 1 {
		t.Errorf("expected a single account fetch thanks to the cache, got %d", calls)
	}
	if skipped := s.metrics.GetLedgerSnapshot().InvalidBillsSkipped; skipped != 1 {
		t.Errorf("expected 1 invalid bill skipped, got %d", skipped)
	}

	if code := s.get(t, "/v1/accounts/missing/access", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", code)
	}
}

// TestIntegration_ReferralFlow credits a referral once and treats the replay
// as a no-op.
func TestIntegration_ReferralFlow(t *testing.T) {
	s := newStack(t)
	token, err := s.verifier.Sign("onboarding", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	event := map[string]string{"referrerId": "7f3e9a10-bb", "referredUserId": "c0ffee00-11"}

	if code := s.post(t, "/v1/referrals/completions", "", event, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	var first, replay domain.ReferralCompletion
	if code := s.post(t, "/v1/referrals/completions", token, event, &first); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := s.post(t, "/v1/referrals/completions", token, event, &replay); code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", code)
	}
	if !replay.Duplicate || replay.EventID != first.EventID {
		t.Errorf("expected duplicate replay with same event id, got %+v", replay)
	}

	var summary domain.ReferralSummary
	if code := s.get(t, "/v1/users/7f3e9a10-bb/referral", &summary); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if summary.Code != "REF-7F3E9A10" || summary.CodeKind != domain.CodeFallback {
		t.Errorf("unexpected code %s (%s)", summary.Code, summary.CodeKind)
	}
	if summary.ReferralCount != 1 || summary.TotalEarnings.StringFixed(2) != "25.00" {
		t.Errorf("expected 1 referral worth 25.00, got %d / %s", summary.ReferralCount, summary.TotalEarnings.StringFixed(2))
	}

	var referee domain.ReferralSummary
	s.get(t, "/v1/users/c0ffee00-11/referral", &referee)
	if referee.ReferralCount != 0 || referee.TotalEarnings.StringFixed(2) != "25.00" {
		t.Errorf("expected referee reward without count, got %d / %s", referee.ReferralCount, referee.TotalEarnings.StringFixed(2))
	}
}

func TestIntegration_Health(t *testing.T) {
	s := newStack(t)

	var health domain.HealthStatus
	if code := s.get(t, "/healthz", &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %s", health.Status)
	}

	resp, err := http.Get(s.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "bfa_access_over_limit_total") {
		t.Errorf("expected prometheus exposition, got %q", buf.String())
	}
}
