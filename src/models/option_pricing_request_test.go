package models

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/optionprisma/src/pricing"
)

var limits = SimulationLimits{
	DefaultSimulations: 100_000,
	MinSimulations:     1_000,
	MaxSimulations:     1_000_000,
}

func decode(t *testing.T, body string) OptionPricingRequest {
	var req OptionPricingRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestOptionPricingRequest(t *testing.T) {
	t.Run("converts a complete request", func(t *testing.T) {
		req := decode(t, `{"spot_price":100,"strike_price":105,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"put","num_simulations":5000,"random_seed":7}`)

		got, err := req.ToPricingRequest(limits)
		require.NoError(t, err)

		assert.Equal(t, 100.0, got.SpotPrice)
		assert.Equal(t, 105.0, got.StrikePrice)
		assert.Equal(t, pricing.Put, got.OptionType)
		assert.Equal(t, 5000, got.NumSimulations)
		require.NotNil(t, got.RandomSeed)
		assert.Equal(t, uint64(7), *got.RandomSeed)
	})

	t.Run("defaults the simulation count and leaves the seed unset", func(t *testing.T) {
		req := decode(t, `{"spot_price":100,"strike_price":100,"time_to_maturity":0.5,"volatility":0.3,"risk_free_rate":0.01,"option_type":"call"}`)

		got, err := req.ToPricingRequest(limits)
		require.NoError(t, err)

		assert.Equal(t, 100_000, got.NumSimulations)
		assert.Nil(t, got.RandomSeed)
	})

	t.Run("explicit zeros are present values", func(t *testing.T) {
		req := decode(t, `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0,"risk_free_rate":0,"option_type":"call"}`)

		got, err := req.ToPricingRequest(limits)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Volatility)
		assert.Equal(t, 0.0, got.RiskFreeRate)
	})

	rejected := []struct {
		name    string
		body    string
		message string
	}{
		{"missing spot", `{"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"call"}`, "spot_price is required"},
		{"missing volatility", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"risk_free_rate":0.05,"option_type":"call"}`, "volatility is required"},
		{"zero spot", `{"spot_price":0,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"call"}`, "spot_price"},
		{"maturity above ten", `{"spot_price":100,"strike_price":100,"time_to_maturity":10.5,"volatility":0.2,"risk_free_rate":0.05,"option_type":"call"}`, "time_to_maturity"},
		{"volatility above five", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":5.1,"risk_free_rate":0.05,"option_type":"call"}`, "volatility"},
		{"rate below range", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":-0.11,"option_type":"call"}`, "risk_free_rate"},
		{"unknown option type", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"straddle"}`, "option_type must be one of [call put]"},
		{"too few simulations", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"call","num_simulations":999}`, "num_simulations must be between 1000 and 1000000"},
		{"too many simulations", `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":0.05,"option_type":"call","num_simulations":1000001}`, "num_simulations"},
	}

	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			req := decode(t, tc.body)

			_, err := req.ToPricingRequest(limits)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	t.Run("boundaries are inclusive", func(t *testing.T) {
		req := decode(t, `{"spot_price":100,"strike_price":100,"time_to_maturity":10,"volatility":5,"risk_free_rate":0.3,"option_type":"call","num_simulations":1000}`)
		_, err := req.ToPricingRequest(limits)
		assert.NoError(t, err)

		req = decode(t, `{"spot_price":100,"strike_price":100,"time_to_maturity":1,"volatility":0.2,"risk_free_rate":-0.1,"option_type":"call","num_simulations":1000000}`)
		_, err = req.ToPricingRequest(limits)
		assert.NoError(t, err)
	})
}

func TestNewSimulationID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	pattern := regexp.MustCompile(`^sim_1700000000_[0-9a-f]{8}$`)

	a := NewSimulationID(now)
	b := NewSimulationID(now)

	assert.Regexp(t, pattern, a)
	assert.Regexp(t, pattern, b)
	assert.NotEqual(t, a, b)
}

func TestSimulationResultToRow(t *testing.T) {
	seed := uint64(3)
	result := SimulationResult{
		SimulationID:      "sim_1_aaaaaaaa",
		OptionPrice:       5.5,
		BlackScholesPrice: 5.57,
		Greeks:            pricing.Greeks{Delta: -0.36, Rho: -41.9},
		Inputs: pricing.PricingRequest{
			SpotPrice:      100,
			StrikePrice:    100,
			OptionType:     pricing.Put,
			NumSimulations: 1000,
			RandomSeed:     &seed,
		},
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600)),
	}

	row := result.ToRow()

	assert.Equal(t, "sim_1_aaaaaaaa", row.SimulationID)
	assert.Equal(t, "put", row.OptionType)
	assert.Equal(t, "2024-01-02T08:04:05Z", row.Timestamp)
	assert.Equal(t, -0.36, row.Delta)
	assert.Equal(t, -41.9, row.Rho)
	assert.Equal(t, 1000, row.NumSimulations)
}

func TestWebError(t *testing.T) {
	cause := errors.New("boom")
	err := NewWebError(500, "internal_error", cause)

	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal_error", NewWebError(404, "internal_error", nil).Error())
}

func TestNewHealthCheckResponse(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	resp := NewHealthCheckResponse("1.0.0", now)

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Equal(t, time.UTC, resp.Timestamp.Location())
}
