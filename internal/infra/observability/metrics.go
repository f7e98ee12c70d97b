package observability

import (
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	referrals       *prometheus.CounterVec
	degradedViews   *prometheus.CounterVec
	overLimitViews  prometheus.Counter
	invalidBills    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		referrals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_referral_completions_total",
				Help: "Referral completion events by outcome.",
			},
			[]string{"outcome"},
		),
		degradedViews: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_degraded_views_total",
				Help: "Views served without computed figures because of invalid plan data.",
			},
			[]string{"view"},
		),
		overLimitViews: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_access_over_limit_total",
				Help: "Access summaries where usage exceeded the plan limit.",
			},
		),
		invalidBills: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_invalid_bills_total",
				Help: "Bills from the data source skipped for violating invariants.",
			},
			[]string{"field"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrReferral counts a referral completion; outcome is credited or duplicate.
func (m *Metrics) IncrReferral(outcome string) {
	m.referrals.WithLabelValues(outcome).Inc()
}

// IncrDegradedView counts a view served in degraded mode.
func (m *Metrics) IncrDegradedView(view string) {
	m.degradedViews.WithLabelValues(view).Inc()
}

// IncrOverLimit counts an over-limit access summary.
func (m *Metrics) IncrOverLimit() {
	m.overLimitViews.Inc()
}

// IncrInvalidBill counts a skipped bill by the field that failed validation.
func (m *Metrics) IncrInvalidBill(field string) {
	m.invalidBills.WithLabelValues(field).Inc()
}

// GetLedgerSnapshot returns a snapshot of ledger metrics suitable for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	cacheHits := getCounterValue(m.cacheHits, "account")
	cacheMisses := getCounterValue(m.cacheMisses, "account")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.LedgerMetrics{
		ReferralsCredited:   int64(getCounterValue(m.referrals, "credited")),
		ReferralsDuplicate:  int64(getCounterValue(m.referrals, "duplicate")),
		DegradedViews:       int64(sumCounterVec(m.degradedViews)),
		OverLimitViews:      int64(readCounter(m.overLimitViews)),
		InvalidBillsSkipped: int64(sumCounterVec(m.invalidBills)),
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
