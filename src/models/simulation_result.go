package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jiaming2012/optionprisma/src/pricing"
)

const SimulationIDPrefix = "sim_"

// NewSimulationID returns an id of the form sim_<unix seconds>_<8 hex chars>.
func NewSimulationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d_%s", SimulationIDPrefix, now.Unix(), suffix)
}

type SimulationResult struct {
	SimulationID         string                 `json:"simulation_id"`
	OptionPrice          float64                `json:"option_price"`
	StdError             float64                `json:"std_error"`
	ConfidenceInterval95 float64                `json:"confidence_interval_95"`
	BlackScholesPrice    float64                `json:"black_scholes_price"`
	Greeks               pricing.Greeks         `json:"greeks"`
	Inputs               pricing.PricingRequest `json:"inputs"`
	Timestamp            time.Time              `json:"timestamp"`
}

// SimulationRow is the flattened form of a SimulationResult used for CSV export.
type SimulationRow struct {
	SimulationID         string  `csv:"simulation_id"`
	Timestamp            string  `csv:"timestamp"`
	OptionType           string  `csv:"option_type"`
	SpotPrice            float64 `csv:"spot_price"`
	StrikePrice          float64 `csv:"strike_price"`
	TimeToMaturity       float64 `csv:"time_to_maturity"`
	Volatility           float64 `csv:"volatility"`
	RiskFreeRate         float64 `csv:"risk_free_rate"`
	NumSimulations       int     `csv:"num_simulations"`
	OptionPrice          float64 `csv:"option_price"`
	StdError             float64 `csv:"std_error"`
	ConfidenceInterval95 float64 `csv:"confidence_interval_95"`
	BlackScholesPrice    float64 `csv:"black_scholes_price"`
	Delta                float64 `csv:"delta"`
	Gamma                float64 `csv:"gamma"`
	Vega                 float64 `csv:"vega"`
	Theta                float64 `csv:"theta"`
	Rho                  float64 `csv:"rho"`
}

func (r SimulationResult) ToRow() SimulationRow {
	return SimulationRow{
		SimulationID:         r.SimulationID,
		Timestamp:            r.Timestamp.UTC().Format(time.RFC3339),
		OptionType:           string(r.Inputs.OptionType),
		SpotPrice:            r.Inputs.SpotPrice,
		StrikePrice:          r.Inputs.StrikePrice,
		TimeToMaturity:       r.Inputs.TimeToMaturity,
		Volatility:           r.Inputs.Volatility,
		RiskFreeRate:         r.Inputs.RiskFreeRate,
		NumSimulations:       r.Inputs.NumSimulations,
		OptionPrice:          r.OptionPrice,
		StdError:             r.StdError,
		ConfidenceInterval95: r.ConfidenceInterval95,
		BlackScholesPrice:    r.BlackScholesPrice,
		Delta:                r.Greeks.Delta,
		Gamma:                r.Greeks.Gamma,
		Vega:                 r.Greeks.Vega,
		Theta:                r.Greeks.Theta,
		Rho:                  r.Greeks.Rho,
	}
}
