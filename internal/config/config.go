// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // zone database for LEDGER_TIMEZONE on minimal images

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port            int
	LogLevel        string
	ShutdownTimeout time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Redis
	RedisURL    string
	RedisPrefix string

	// Ledger
	Timezone        string
	ReferralReward  decimal.Decimal
	UpcomingLimit   int
	PlanCatalogFile string

	// Webhooks
	WebhookSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:            getEnvInt("PORT", 8080),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize: getEnvInt("CACHE_SIZE", 10000),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: getEnv("REDIS_PREFIX", "referrals"),

		Timezone:        getEnv("LEDGER_TIMEZONE", "UTC"),
		ReferralReward:  getEnvDecimal("REFERRAL_REWARD", decimal.RequireFromString("25.00")),
		UpcomingLimit:   getEnvInt("UPCOMING_LIMIT", 5),
		PlanCatalogFile: getEnv("PLAN_CATALOG_FILE", ""),

		WebhookSecret: getEnv("ONBOARDING_WEBHOOK_SECRET", ""),
	}
}

// Validate checks the settings the ledger cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.SupabaseURL == "":
		return &domain.ErrConfiguration{Field: "SUPABASE_URL", Message: "required"}
	case !c.ReferralReward.IsPositive():
		return &domain.ErrConfiguration{Field: "REFERRAL_REWARD", Message: fmt.Sprintf("must be positive, got %s", c.ReferralReward)}
	case c.UpcomingLimit <= 0:
		return &domain.ErrConfiguration{Field: "UPCOMING_LIMIT", Message: fmt.Sprintf("must be positive, got %d", c.UpcomingLimit)}
	case c.WebhookSecret == "":
		return &domain.ErrConfiguration{Field: "ONBOARDING_WEBHOOK_SECRET", Message: "required"}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the timezone that defines "today" for the ledger.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &domain.ErrConfiguration{Field: "LEDGER_TIMEZONE", Message: err.Error()}
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}
