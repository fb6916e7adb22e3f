package pricing

import (
	"fmt"
)

type Greeks struct {
	Delta float64 `json:"delta" csv:"delta"`
	Gamma float64 `json:"gamma" csv:"gamma"`
	Vega  float64 `json:"vega" csv:"vega"`
	Theta float64 `json:"theta" csv:"theta"`
	Rho   float64 `json:"rho" csv:"rho"`
}

type AnalyticalResult struct {
	BlackScholesPrice float64 `json:"black_scholes_price"`
	Greeks            Greeks  `json:"greeks"`
}

// greeks returns the analytical sensitivities. Vega and rho are per unit change
// of volatility and rate, theta is per year.
func (t bsTerms) greeks(req PricingRequest) (Greeks, error) {
	S, K, T, sigma, r := req.SpotPrice, req.StrikePrice, req.TimeToMaturity, req.Volatility, req.RiskFreeRate

	var g Greeks

	// gamma and vega are singular without optionality; their limit is zero
	if !t.degenerate {
		g.Gamma = t.pdfD1 / (S * t.volSqrtT)
		g.Vega = S * t.pdfD1 * t.sqrtT
	}

	decay := 0.0
	if !t.degenerate {
		decay = -(S * t.pdfD1 * sigma) / (2 * t.sqrtT)
	}

	switch req.OptionType {
	case Call:
		g.Delta = t.cdfD1
		g.Theta = decay - r*K*t.discount*t.cdfD2
		g.Rho = K * T * t.discount * t.cdfD2
	case Put:
		g.Delta = t.cdfD1 - 1
		if t.degenerate {
			g.Delta = -t.cdfNegD1
		}
		g.Theta = decay + r*K*t.discount*t.cdfNegD2
		g.Rho = -K * T * t.discount * t.cdfNegD2
	default:
		return Greeks{}, newValidationError(fmt.Sprintf("Option type must be one of %q or %q", Call, Put))
	}

	return g, nil
}

func CalculateGreeks(req PricingRequest) (Greeks, error) {
	g, err := newBSTerms(req).greeks(req)
	if err != nil {
		return Greeks{}, fmt.Errorf("CalculateGreeks: %w", err)
	}

	return g, nil
}

// PriceAnalytical prices the option and derives its Greeks from a single
// evaluation of d1 and d2.
func PriceAnalytical(req PricingRequest) (AnalyticalResult, error) {
	terms := newBSTerms(req)

	price, err := terms.price(req)
	if err != nil {
		return AnalyticalResult{}, fmt.Errorf("PriceAnalytical: %w", err)
	}

	g, err := terms.greeks(req)
	if err != nil {
		return AnalyticalResult{}, fmt.Errorf("PriceAnalytical: %w", err)
	}

	return AnalyticalResult{
		BlackScholesPrice: price,
		Greeks:            g,
	}, nil
}
