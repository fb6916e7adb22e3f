package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"
)

const confidenceZ95 = 1.96

var ErrInvalidSimulationCount = errors.New("number of simulations must be at least 1")

type MonteCarloResult struct {
	Price                float64 `json:"price"`
	StdError             float64 `json:"std_error"`
	ConfidenceInterval95 float64 `json:"confidence_interval_95"`
}

func newRand(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}

	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}

// DrawStandardNormals returns n standard normal variates. A non-nil seed makes
// the sequence reproducible.
func DrawStandardNormals(n int, seed *uint64) []float64 {
	rng := newRand(seed)
	z := make([]float64, n)
	for i := range z {
		z[i] = rng.NormFloat64()
	}

	return z
}

// PriceMonteCarlo estimates the discounted expected payoff of a European option
// under risk-neutral geometric Brownian motion. Inputs are expected to have
// passed Validate.
func PriceMonteCarlo(req PricingRequest) (MonteCarloResult, error) {
	n := req.NumSimulations
	if n < 1 {
		return MonteCarloResult{}, fmt.Errorf("PriceMonteCarlo: %w: got %d", ErrInvalidSimulationCount, n)
	}

	payoff, err := payoffFunc(req.OptionType, req.StrikePrice)
	if err != nil {
		return MonteCarloResult{}, fmt.Errorf("PriceMonteCarlo: %w", err)
	}

	z := DrawStandardNormals(n, req.RandomSeed)

	// S_T = S * exp((r - 0.5*sigma^2)*T + sigma*sqrt(T)*Z)
	drift := (req.RiskFreeRate - 0.5*req.Volatility*req.Volatility) * req.TimeToMaturity
	diffusion := req.Volatility * math.Sqrt(req.TimeToMaturity)
	discount := math.Exp(-req.RiskFreeRate * req.TimeToMaturity)

	discounted := make(stats.Float64Data, n)
	for i, zi := range z {
		terminal := req.SpotPrice * math.Exp(drift+diffusion*zi)
		discounted[i] = payoff(terminal) * discount
	}

	price, err := stats.Mean(discounted)
	if err != nil {
		return MonteCarloResult{}, fmt.Errorf("PriceMonteCarlo: failed to calculate mean: %w", err)
	}

	sd, err := stats.StandardDeviationPopulation(discounted)
	if err != nil {
		return MonteCarloResult{}, fmt.Errorf("PriceMonteCarlo: failed to calculate the standard deviation: %w", err)
	}

	stdError := sd / math.Sqrt(float64(n))

	return MonteCarloResult{
		Price:                price,
		StdError:             stdError,
		ConfidenceInterval95: confidenceZ95 * stdError,
	}, nil
}
