package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jiaming2012/optionprisma/src/pricing"
)

// OptionPricingRequest is the wire shape of a pricing request. Pointer fields
// distinguish a missing value from an explicit zero.
type OptionPricingRequest struct {
	SpotPrice      *float64 `json:"spot_price" validate:"required,gt=0"`
	StrikePrice    *float64 `json:"strike_price" validate:"required,gt=0"`
	TimeToMaturity *float64 `json:"time_to_maturity" validate:"required,gt=0,lte=10"`
	Volatility     *float64 `json:"volatility" validate:"required,gte=0,lte=5"`
	RiskFreeRate   *float64 `json:"risk_free_rate" validate:"required,gte=-0.1,lte=0.3"`
	OptionType     *string  `json:"option_type" validate:"required,oneof=call put"`
	NumSimulations *int     `json:"num_simulations,omitempty"`
	RandomSeed     *uint64  `json:"random_seed,omitempty"`
}

type SimulationLimits struct {
	DefaultSimulations int
	MinSimulations     int
	MaxSimulations     int
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request schema and the simulation count bounds.
func (r *OptionPricingRequest) Validate(limits SimulationLimits) error {
	if err := requestValidator.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, describeFieldErrors(fieldErrs))
		}

		return fmt.Errorf("OptionPricingRequest: Validate: %w", err)
	}

	if r.NumSimulations != nil {
		n := *r.NumSimulations
		if n < limits.MinSimulations || n > limits.MaxSimulations {
			return fmt.Errorf("%w: num_simulations must be between %d and %d, got %d", ErrInvalidRequest, limits.MinSimulations, limits.MaxSimulations, n)
		}
	}

	return nil
}

// ToPricingRequest converts a validated request into the pricing input.
func (r *OptionPricingRequest) ToPricingRequest(limits SimulationLimits) (pricing.PricingRequest, error) {
	if err := r.Validate(limits); err != nil {
		return pricing.PricingRequest{}, err
	}

	numSimulations := limits.DefaultSimulations
	if r.NumSimulations != nil {
		numSimulations = *r.NumSimulations
	}

	req := pricing.PricingRequest{
		SpotPrice:      *r.SpotPrice,
		StrikePrice:    *r.StrikePrice,
		TimeToMaturity: *r.TimeToMaturity,
		Volatility:     *r.Volatility,
		RiskFreeRate:   *r.RiskFreeRate,
		OptionType:     pricing.OptionType(*r.OptionType),
		NumSimulations: numSimulations,
	}

	if r.RandomSeed != nil {
		seed := *r.RandomSeed
		req.RandomSeed = &seed
	}

	return req, nil
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		field := jsonFieldNames[e.Field()]
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, e.Tag(), e.Param()))
		}
	}

	return strings.Join(msgs, "; ")
}

var jsonFieldNames = map[string]string{
	"SpotPrice":      "spot_price",
	"StrikePrice":    "strike_price",
	"TimeToMaturity": "time_to_maturity",
	"Volatility":     "volatility",
	"RiskFreeRate":   "risk_free_rate",
	"OptionType":     "option_type",
	"NumSimulations": "num_simulations",
	"RandomSeed":     "random_seed",
}
