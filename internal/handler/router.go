// Package handler exposes the ledger view data over HTTP.
package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the use cases served by the router. Nil services leave
// their routes unregistered.
type Services struct {
	Access   *service.AccessService
	Plans    *service.PlanService
	Referral *service.ReferralService
	Webhook  *service.WebhookVerifier
	Health   map[string]Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Health, logger))
	r.Get("/readyz", readyzHandler(svc.Health))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		if svc.Plans != nil {
			r.Route("/plans", func(r chi.Router) {
				r.Get("/", listPlansHandler(svc.Plans))
				r.Get("/{tier}", getPlanHandler(svc.Plans, logger))
				r.Get("/{tier}/first-payment", firstPaymentHandler(svc.Plans, logger))
			})
		}

		if svc.Access != nil {
			r.Route("/accounts/{accountId}", func(r chi.Router) {
				r.Get("/access", accessOverviewHandler(svc.Access, logger))
				r.Get("/next-payment", nextPaymentHandler(svc.Access, logger))
				r.Get("/bills", listBillsHandler(svc.Access, logger))
				r.Get("/bills/upcoming", upcomingBillsHandler(svc.Access, logger))
				r.Post("/refresh", refreshAccountHandler(svc.Access))
			})
		}

		if svc.Referral != nil {
			r.Get("/users/{userId}/referral", getReferralHandler(svc.Referral, logger))

			if svc.Webhook != nil {
				r.With(WebhookAuthMiddleware(svc.Webhook, logger)).
					Post("/referrals/completions", completeReferralHandler(svc.Referral, logger))
			}
		}
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func checkDependencies(ctx context.Context, deps map[string]Pinger) []domain.ServiceHealth {
	now := time.Now().UTC().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "bfa-api", Status: "healthy", LastChecked: now},
	}

	names := lo.Keys(deps)
	slices.Sort(names)
	for _, name := range names {
		start := time.Now()
		err := deps[name].Ping(ctx)
		status := "healthy"
		if err != nil {
			status = "unhealthy"
		}
		services = append(services, domain.ServiceHealth{
			Name:        name,
			Status:      status,
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		})
	}
	return services
}

// healthzHandler reports per-dependency status. It always answers 200;
// a failing dependency only degrades the overall status.
func healthzHandler(deps map[string]Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		services := checkDependencies(ctx, deps)
		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				logger.Warn("dependency unhealthy", zap.String("dependency", s.Name))
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

// readyzHandler answers 503 until every dependency responds.
func readyzHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, s := range checkDependencies(ctx, deps) {
			if s.Status != "healthy" {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "dependency": s.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
