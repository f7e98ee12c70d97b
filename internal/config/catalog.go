package config

import (
	"fmt"
	"os"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// planFile is the YAML layout of a plan catalog override. Amounts are
// strings so they parse exactly.
type planFile struct {
	Plans []struct {
		Tier                        string   `yaml:"tier"`
		Name                        string   `yaml:"name"`
		MonthlyPrice                string   `yaml:"monthly_price"`
		MaxAccess                   string   `yaml:"max_access"`
		Features                    []string `yaml:"features"`
		RequiresVehicleVerification bool     `yaml:"requires_vehicle_verification"`
	} `yaml:"plans"`
}

// LoadPlanCatalog builds the catalog from path, or the built-in plans when
// path is empty.
func LoadPlanCatalog(path string) (*ledger.PlanCatalog, error) {
	if path == "" {
		return ledger.NewPlanCatalog(ledger.DefaultPlans())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog decodes and validates a YAML plan catalog.
func ParsePlanCatalog(data []byte) (*ledger.PlanCatalog, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &domain.ErrConfiguration{Field: "plans", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	plans := make([]domain.Plan, 0, len(f.Plans))
	for i, p := range f.Plans {
		price, err := decimal.NewFromString(p.MonthlyPrice)
		if err != nil {
			return nil, &domain.ErrConfiguration{Field: fmt.Sprintf("plans[%d].monthly_price", i), Message: err.Error()}
		}
		maxAccess, err := decimal.NewFromString(p.MaxAccess)
		if err != nil {
			return nil, &domain.ErrConfiguration{Field: fmt.Sprintf("plans[%d].max_access", i), Message: err.Error()}
		}
		plans = append(plans, domain.Plan{
			Tier:                        domain.Tier(p.Tier),
			Name:                        p.Name,
			MonthlyPrice:                price,
			MaxAccess:                   maxAccess,
			Features:                    p.Features,
			RequiresVehicleVerification: p.RequiresVehicleVerification,
		})
	}
	return ledger.NewPlanCatalog(plans)
}
