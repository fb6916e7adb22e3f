package pricing

import (
	"fmt"
	"math"
)

// bsTerms carries d1, d2 and the normal distribution values derived from them so
// that the price and every Greek are computed from the same numbers.
type bsTerms struct {
	degenerate bool
	sqrtT      float64
	volSqrtT   float64
	discount   float64
	d1         float64
	d2         float64
	cdfD1      float64
	cdfD2      float64
	cdfNegD1   float64
	cdfNegD2   float64
	pdfD1      float64
}

func isDegenerate(volatility, timeToMaturity float64) bool {
	return volatility <= 0 || timeToMaturity <= 0
}

// newBSTerms evaluates
//
//	d1 = [ln(S/K) + (r + sigma^2/2)T] / (sigma*sqrt(T))
//	d2 = d1 - sigma*sqrt(T)
//
// With sigma = 0 or T = 0 the ratio is undefined, and so is it when
// sigma*sqrt(T) underflows for tiny positive inputs. The limit is used instead:
// d1 and d2 run off to +Inf for S > K and -Inf otherwise, which collapses the
// cumulative terms to moneyness indicators and the density to zero.
func newBSTerms(req PricingRequest) bsTerms {
	S, K, T, sigma, r := req.SpotPrice, req.StrikePrice, req.TimeToMaturity, req.Volatility, req.RiskFreeRate

	t := bsTerms{
		sqrtT:    math.Sqrt(math.Max(T, 0)),
		discount: math.Exp(-r * T),
	}

	if !isDegenerate(sigma, T) {
		t.volSqrtT = sigma * t.sqrtT
		t.d1 = (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / t.volSqrtT
		t.d2 = t.d1 - t.volSqrtT
		t.pdfD1 = normPDF(t.d1)
	}

	if isDegenerate(sigma, T) || !finiteTerms(S, t) {
		t = bsTerms{
			degenerate: true,
			sqrtT:      t.sqrtT,
			discount:   t.discount,
		}
		if S > K {
			t.d1, t.d2 = math.Inf(1), math.Inf(1)
			t.cdfD1, t.cdfD2 = 1, 1
		} else {
			t.d1, t.d2 = math.Inf(-1), math.Inf(-1)
			t.cdfNegD1, t.cdfNegD2 = 1, 1
		}

		// a put is only in the money strictly below the strike
		if S == K {
			t.cdfNegD1, t.cdfNegD2 = 0, 0
		}

		return t
	}

	t.cdfD1 = normCDF(t.d1)
	t.cdfD2 = normCDF(t.d2)
	t.cdfNegD1 = normCDF(-t.d1)
	t.cdfNegD2 = normCDF(-t.d2)

	return t
}

// finiteTerms reports whether d1 and the gamma ratio survive floating point.
// Both break down once sigma*sqrt(T) is too small to divide by.
func finiteTerms(spot float64, t bsTerms) bool {
	if t.volSqrtT <= 0 || math.IsNaN(t.d1) || math.IsNaN(t.d2) {
		return false
	}

	gamma := t.pdfD1 / (spot * t.volSqrtT)
	return !math.IsNaN(gamma) && !math.IsInf(gamma, 0)
}

func (t bsTerms) price(req PricingRequest) (float64, error) {
	S, K := req.SpotPrice, req.StrikePrice

	if t.degenerate {
		switch req.OptionType {
		case Call:
			return math.Max(S-K, 0) * t.discount, nil
		case Put:
			return math.Max(K-S, 0) * t.discount, nil
		default:
			return 0, newValidationError(fmt.Sprintf("Option type must be one of %q or %q", Call, Put))
		}
	}

	var price float64
	switch req.OptionType {
	case Call:
		price = S*t.cdfD1 - K*t.discount*t.cdfD2
	case Put:
		price = K*t.discount*t.cdfNegD2 - S*t.cdfNegD1
	default:
		return 0, newValidationError(fmt.Sprintf("Option type must be one of %q or %q", Call, Put))
	}

	// rounding can push a deep out-of-the-money price a few ULPs below zero
	return math.Max(price, 0), nil
}

// BlackScholesPrice returns the closed-form price of a European option.
func BlackScholesPrice(req PricingRequest) (float64, error) {
	price, err := newBSTerms(req).price(req)
	if err != nil {
		return 0, fmt.Errorf("BlackScholesPrice: %w", err)
	}

	return price, nil
}
