package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
)

func newStore(t *testing.T) (*JSONFileStore, string) {
	path := filepath.Join(t.TempDir(), "data", "results.json")
	s, err := NewJSONFileStore(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func record(id string) models.SimulationResult {
	return models.SimulationResult{
		SimulationID:         id,
		OptionPrice:          10.43,
		StdError:             0.03,
		ConfidenceInterval95: 0.0588,
		BlackScholesPrice:    10.45,
		Greeks:               pricing.Greeks{Delta: 0.64, Gamma: 0.019, Vega: 37.5, Theta: -6.4, Rho: 53.2},
		Inputs: pricing.PricingRequest{
			SpotPrice:      100,
			StrikePrice:    100,
			TimeToMaturity: 1,
			Volatility:     0.2,
			RiskFreeRate:   0.05,
			OptionType:     pricing.Call,
			NumSimulations: 10_000,
		},
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewJSONFileStore(t *testing.T) {
	t.Run("creates the directory and an empty array", func(t *testing.T) {
		_, path := newStore(t)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(data))
	})

	t.Run("keeps existing records", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "results.json")
		data, err := json.Marshal([]models.SimulationResult{record("sim_1_aaaaaaaa")})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		s, err := NewJSONFileStore(path, 1)
		require.NoError(t, err)
		defer s.Close()

		got, err := s.Get(context.Background(), "sim_1_aaaaaaaa")
		require.NoError(t, err)
		assert.Equal(t, record("sim_1_aaaaaaaa"), got)
	})
}

func TestJSONFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then get", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, record("sim_1_aaaaaaaa")))

		got, err := s.Get(ctx, "sim_1_aaaaaaaa")
		require.NoError(t, err)
		assert.Equal(t, record("sim_1_aaaaaaaa"), got)
	})

	t.Run("get unknown id", func(t *testing.T) {
		s, _ := newStore(t)

		_, err := s.Get(ctx, "sim_0_00000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, record("sim_1_aaaaaaaa")))
		assert.Error(t, s.Save(ctx, record("sim_1_aaaaaaaa")))
	})

	t.Run("list keeps insertion order and paginates", func(t *testing.T) {
		s, _ := newStore(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Save(ctx, record(fmt.Sprintf("sim_%d_aaaaaaaa", i))))
		}

		all, err := s.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, r := range all {
			assert.Equal(t, fmt.Sprintf("sim_%d_aaaaaaaa", i), r.SimulationID)
		}

		page, err := s.List(ctx, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "sim_1_aaaaaaaa", page[0].SimulationID)
		assert.Equal(t, "sim_2_aaaaaaaa", page[1].SimulationID)

		empty, err := s.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, record("sim_1_aaaaaaaa")))
		require.NoError(t, s.Save(ctx, record("sim_2_bbbbbbbb")))

		require.NoError(t, s.Delete(ctx, "sim_1_aaaaaaaa"))

		_, err := s.Get(ctx, "sim_1_aaaaaaaa")
		assert.ErrorIs(t, err, ErrNotFound)

		all, err := s.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "sim_2_bbbbbbbb", all[0].SimulationID)

		assert.ErrorIs(t, s.Delete(ctx, "sim_1_aaaaaaaa"), ErrNotFound)
	})

	t.Run("concurrent saves never interleave", func(t *testing.T) {
		s, path := newStore(t)

		const writers = 50
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Save(ctx, record(fmt.Sprintf("sim_%d_cccccccc", i)))
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var onDisk []models.SimulationResult
		require.NoError(t, json.Unmarshal(data, &onDisk))
		assert.Len(t, onDisk, writers)

		seen := map[string]bool{}
		for _, r := range onDisk {
			assert.False(t, seen[r.SimulationID])
			seen[r.SimulationID] = true
		}

		leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("save after close", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.Save(ctx, record("sim_1_aaaaaaaa")), ErrClosed)
		assert.NoError(t, s.Close())
	})

	t.Run("cancelled context", func(t *testing.T) {
		s, _ := newStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		// either the mutation was queued before the cancellation was noticed or
		// it was rejected with the context error
		err := s.Save(cancelled, record("sim_9_dddddddd"))
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		s, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := s.List(ctx, 0, 0)
		assert.Error(t, err)
		assert.Error(t, s.Save(ctx, record("sim_1_aaaaaaaa")))
	})
}
