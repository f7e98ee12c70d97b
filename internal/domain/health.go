package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	ReferralsCredited   int64   `json:"referralsCredited"`
	ReferralsDuplicate  int64   `json:"referralsDuplicate"`
	DegradedViews       int64   `json:"degradedViews"`
	OverLimitViews      int64   `json:"overLimitViews"`
	InvalidBillsSkipped int64   `json:"invalidBillsSkipped"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}
