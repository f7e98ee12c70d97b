package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/access-ledger-bfa-go/internal/config"
	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.UpcomingLimit)
	assert.Equal(t, "25", cfg.ReferralReward.String())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("REFERRAL_REWARD", "12.50")
	t.Setenv("UPCOMING_LIMIT", "8")
	t.Setenv("LEDGER_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := config.Load()
	assert.Equal(t, "12.5", cfg.ReferralReward.String())
	assert.Equal(t, 8, cfg.UpcomingLimit)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Load()
		cfg.SupabaseURL = "http://supabase.local"
		cfg.WebhookSecret = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*config.Config){
		"missing supabase": func(c *config.Config) { c.SupabaseURL = "" },
		"zero limit":       func(c *config.Config) { c.UpcomingLimit = 0 },
		"missing secret":   func(c *config.Config) { c.WebhookSecret = "" },
		"bad timezone":     func(c *config.Config) { c.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			var cfgErr *domain.ErrConfiguration
			assert.True(t, errors.As(cfg.Validate(), &cfgErr))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_DOTENV_A=from-file\nLEDGER_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("LEDGER_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("LEDGER_DOTENV_A") })

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LEDGER_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("LEDGER_DOTENV_B"))

	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestParsePlanCatalog(t *testing.T) {
	catalog, err := config.ParsePlanCatalog([]byte(`
plans:
  - tier: plus
    name: Plus
    monthly_price: "44.90"
    max_access: "3500"
    features: [rent, utilities]
  - tier: basic
    name: Basic
    monthly_price: "21.90"
    max_access: "1500"
`))
	require.NoError(t, err)

	plans := catalog.Plans()
	require.Len(t, plans, 2)
	assert.Equal(t, domain.TierBasic, plans[0].Tier)

	plus, err := catalog.Lookup(domain.TierPlus)
	require.NoError(t, err)
	assert.Equal(t, "44.9", plus.MonthlyPrice.String())
	assert.Equal(t, []string{"rent", "utilities"}, plus.Features)
}

func TestParsePlanCatalog_Invalid(t *testing.T) {
	inputs := map[string]string{
		"zero limit": "plans:\n  - {tier: basic, name: B, monthly_price: \"19\", max_access: \"0\"}\n",
		"bad price":  "plans:\n  - {tier: basic, name: B, monthly_price: cheap, max_access: \"100\"}\n",
		"empty":      "plans: []\n",
		"not yaml":   "plans: [",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParsePlanCatalog([]byte(in))
			var cfgErr *domain.ErrConfiguration
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestLoadPlanCatalog_Default(t *testing.T) {
	catalog, err := config.LoadPlanCatalog("")
	require.NoError(t, err)
	assert.Len(t, catalog.Plans(), 3)
}
