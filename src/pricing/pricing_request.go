package pricing

import (
	"fmt"
	"math"
)

const DefaultNumSimulations = 100_000

// PricingRequest holds the inputs shared by every pricer. It is never mutated by
// this package.
type PricingRequest struct {
	SpotPrice      float64    `json:"spot_price" yaml:"spot_price"`
	StrikePrice    float64    `json:"strike_price" yaml:"strike_price"`
	TimeToMaturity float64    `json:"time_to_maturity" yaml:"time_to_maturity"`
	Volatility     float64    `json:"volatility" yaml:"volatility"`
	RiskFreeRate   float64    `json:"risk_free_rate" yaml:"risk_free_rate"`
	OptionType     OptionType `json:"option_type" yaml:"option_type"`
	NumSimulations int        `json:"num_simulations" yaml:"num_simulations"`
	RandomSeed     *uint64    `json:"random_seed,omitempty" yaml:"random_seed,omitempty"`
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

func newValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// ValidatePricingInputs checks the numeric domain of the pricing inputs and
// reports the first rule that fails.
func ValidatePricingInputs(spotPrice, strikePrice, timeToMaturity, volatility, riskFreeRate float64, optionType OptionType) (bool, string) {
	inputs := []struct {
		name  string
		value float64
	}{
		{"Spot price", spotPrice},
		{"Strike price", strikePrice},
		{"Time to maturity", timeToMaturity},
		{"Volatility", volatility},
		{"Risk-free rate", riskFreeRate},
	}

	for _, in := range inputs {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			return false, fmt.Sprintf("%s must be a finite number", in.name)
		}
	}

	if spotPrice <= 0 {
		return false, "Spot price must be positive"
	}

	if strikePrice <= 0 {
		return false, "Strike price must be positive"
	}

	if timeToMaturity <= 0 {
		return false, "Time to maturity must be positive"
	}

	if volatility < 0 {
		return false, "Volatility cannot be negative"
	}

	if err := optionType.Validate(); err != nil {
		return false, fmt.Sprintf("Option type must be one of %q or %q", Call, Put)
	}

	return true, ""
}

func (r PricingRequest) Validate() error {
	if ok, reason := ValidatePricingInputs(r.SpotPrice, r.StrikePrice, r.TimeToMaturity, r.Volatility, r.RiskFreeRate, r.OptionType); !ok {
		return newValidationError(reason)
	}

	return nil
}

// WithDefaults fills in the simulation count when the caller left it unset.
func (r PricingRequest) WithDefaults() PricingRequest {
	if r.NumSimulations == 0 {
		r.NumSimulations = DefaultNumSimulations
	}

	return r
}
