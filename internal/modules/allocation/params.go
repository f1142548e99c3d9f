package allocation

import (
	"fmt"
	"os"

	"github.com/aristath/sipcopy/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultSeverityCeiling is the severity at which an instrument receives MaxCap
const DefaultSeverityCeiling = 2.0

// Params are the allocation constants. Amounts are in rupees.
type Params struct {
	MinCap                float64  `yaml:"min_cap"`
	MaxCap                float64  `yaml:"max_cap"`
	MinVolume             float64  `yaml:"min_volume"`
	DailySIPMin           float64  `yaml:"daily_sip_min"`
	DailySIPMax           float64  `yaml:"daily_sip_max"`
	ExcludedKeywords      []string `yaml:"excluded_keywords"`
	GenericAverageDecline float64  `yaml:"generic_average_decline"`
	SeverityCeiling       float64  `yaml:"severity_ceiling"`
}

// DefaultParams returns the production constants
func DefaultParams() Params {
	return Params{
		MinCap:      400,
		MaxCap:      2000,
		MinVolume:   70000,
		DailySIPMin: 400,
		DailySIPMax: 7500,
		ExcludedKeywords: []string{
			"Debt", "Bond", "Gilt", "Treasury", "Fixed Income",
			"Corporate", "Govt Sec", "Securities", "Media",
		},
		GenericAverageDecline: -1.2,
		SeverityCeiling:       DefaultSeverityCeiling,
	}
}

// LoadParams reads a YAML override file on top of the defaults.
// Keys absent from the file keep their default value. An empty path returns the defaults.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("failed to read allocation config: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, &domain.ConfigurationError{Reason: "invalid allocation config " + path, Err: err}
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Validate rejects inconsistent constants
func (p Params) Validate() error {
	switch {
	case p.MinCap <= 0:
		return domain.NewConfigurationError("min_cap must be positive, got %v", p.MinCap)
	case p.MinCap > p.MaxCap:
		return domain.NewConfigurationError("min_cap (%v) exceeds max_cap (%v)", p.MinCap, p.MaxCap)
	case p.DailySIPMin <= 0:
		return domain.NewConfigurationError("daily_sip_min must be positive, got %v", p.DailySIPMin)
	case p.DailySIPMin > p.DailySIPMax:
		return domain.NewConfigurationError("daily_sip_min (%v) exceeds daily_sip_max (%v)", p.DailySIPMin, p.DailySIPMax)
	case p.MinVolume < 0:
		return domain.NewConfigurationError("min_volume must not be negative")
	case p.GenericAverageDecline >= 0:
		return domain.NewConfigurationError("generic_average_decline must be negative, got %v", p.GenericAverageDecline)
	case p.SeverityCeiling <= 0:
		return domain.NewConfigurationError("severity_ceiling must be positive, got %v", p.SeverityCeiling)
	}
	return nil
}
