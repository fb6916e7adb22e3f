package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/optionprisma/src/cache"
	"github.com/jiaming2012/optionprisma/src/eventpubsub"
	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
	"github.com/jiaming2012/optionprisma/src/ratefetcher"
	"github.com/jiaming2012/optionprisma/src/store"
)

var simulationIDPattern = regexp.MustCompile(`^sim_\d+_[0-9a-f]{8}$`)

type failingStore struct{}

func (failingStore) Save(ctx context.Context, result models.SimulationResult) error {
	return errors.New("disk full")
}

func (failingStore) Get(ctx context.Context, id string) (models.SimulationResult, error) {
	return models.SimulationResult{}, store.ErrNotFound
}

func (failingStore) List(ctx context.Context, skip, limit int) ([]models.SimulationResult, error) {
	return nil, nil
}

func (failingStore) Delete(ctx context.Context, id string) error {
	return store.ErrNotFound
}

func seed(v uint64) *uint64 {
	return &v
}

func request() pricing.PricingRequest {
	return pricing.PricingRequest{
		SpotPrice:      100,
		StrikePrice:    100,
		TimeToMaturity: 1,
		Volatility:     0.2,
		RiskFreeRate:   0.05,
		OptionType:     pricing.Call,
		NumSimulations: 10_000,
		RandomSeed:     seed(42),
	}
}

func newService(t *testing.T, opts ...Option) (*SimulationService, *store.JSONFileStore) {
	s, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "results.json"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc, err := NewSimulationService(s, ratefetcher.NewStubFetcher(0, 0.05), opts...)
	require.NoError(t, err)

	return svc, s
}

func TestRunSimulation(t *testing.T) {
	ctx := context.Background()

	t.Run("prices, stores and publishes", func(t *testing.T) {
		bus := eventpubsub.New()
		var mu sync.Mutex
		var published []models.SimulationResult
		require.NoError(t, bus.Subscribe("test", eventpubsub.SimulationCreatedEvent, func(ev eventpubsub.SimulationCreated) {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, ev.Result)
		}))

		now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
		svc, s := newService(t, WithEventBus(bus), WithClock(func() time.Time { return now }))

		result, err := svc.RunSimulation(ctx, request())
		require.NoError(t, err)

		mc, err := pricing.PriceMonteCarlo(request())
		require.NoError(t, err)
		analytical, err := pricing.PriceAnalytical(request())
		require.NoError(t, err)

		assert.Regexp(t, simulationIDPattern, result.SimulationID)
		assert.Contains(t, result.SimulationID, fmt.Sprintf("sim_%d_", now.Unix()))
		assert.Equal(t, mc.Price, result.OptionPrice)
		assert.Equal(t, mc.StdError, result.StdError)
		assert.Equal(t, mc.ConfidenceInterval95, result.ConfidenceInterval95)
		assert.Equal(t, analytical.BlackScholesPrice, result.BlackScholesPrice)
		assert.Equal(t, analytical.Greeks, result.Greeks)
		assert.Equal(t, request(), result.Inputs)
		assert.Equal(t, now, result.Timestamp)

		stored, err := s.Get(ctx, result.SimulationID)
		require.NoError(t, err)
		assert.Equal(t, result.OptionPrice, stored.OptionPrice)

		bus.WaitAsync()
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, published, 1)
		assert.Equal(t, result.SimulationID, published[0].SimulationID)
	})

	t.Run("applies the default simulation count", func(t *testing.T) {
		svc, _ := newService(t)
		req := request()
		req.NumSimulations = 0

		result, err := svc.RunSimulation(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, pricing.DefaultNumSimulations, result.Inputs.NumSimulations)
	})

	t.Run("validation failure stores nothing", func(t *testing.T) {
		svc, s := newService(t)
		req := request()
		req.SpotPrice = -1

		_, err := svc.RunSimulation(ctx, req)

		var validationErr *pricing.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Reason, "Spot price")
		assert.True(t, IsRejected(err))

		all, err := s.List(ctx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("non-finite output is rejected", func(t *testing.T) {
		svc, s := newService(t)
		req := pricing.PricingRequest{
			SpotPrice:      1e308,
			StrikePrice:    1,
			TimeToMaturity: 1,
			Volatility:     5,
			RiskFreeRate:   0,
			OptionType:     pricing.Call,
			NumSimulations: 10_000,
			RandomSeed:     seed(42),
		}

		_, err := svc.RunSimulation(ctx, req)
		assert.ErrorIs(t, err, models.ErrRejectedScenario)
		assert.True(t, IsRejected(err))

		all, err := s.List(ctx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("deadline while fetching the rate", func(t *testing.T) {
		s, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "results.json"), 1)
		require.NoError(t, err)
		defer s.Close()

		svc, err := NewSimulationService(s, ratefetcher.NewStubFetcher(time.Hour, 0.05))
		require.NoError(t, err)

		timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err = svc.RunSimulation(timeout, request())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, IsRejected(err))
	})

	t.Run("store failure is not a rejection", func(t *testing.T) {
		svc, err := NewSimulationService(failingStore{}, ratefetcher.NewStubFetcher(0, 0.05))
		require.NoError(t, err)

		_, err = svc.RunSimulation(ctx, request())
		assert.ErrorContains(t, err, "disk full")
		assert.False(t, IsRejected(err))
	})

	t.Run("seeded requests are served from the cache", func(t *testing.T) {
		c := cache.NewResultCache(time.Minute, time.Minute)
		svc, _ := newService(t, WithCache(c))

		first, err := svc.RunSimulation(ctx, request())
		require.NoError(t, err)
		second, err := svc.RunSimulation(ctx, request())
		require.NoError(t, err)

		assert.Equal(t, 1, c.Len())
		assert.Equal(t, first.OptionPrice, second.OptionPrice)
		assert.NotEqual(t, first.SimulationID, second.SimulationID)

		req := request()
		req.RandomSeed = nil
		_, err = svc.RunSimulation(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len())
	})
}

func TestSimulationLifecycle(t *testing.T) {
	ctx := context.Background()

	bus := eventpubsub.New()
	var mu sync.Mutex
	var deleted []string
	require.NoError(t, bus.Subscribe("test", eventpubsub.SimulationDeletedEvent, func(ev eventpubsub.SimulationDeleted) {
		mu.Lock()
		defer mu.Unlock()
		deleted = append(deleted, ev.SimulationID)
	}))

	svc, _ := newService(t, WithEventBus(bus))

	var ids []string
	for _, optionType := range []pricing.OptionType{pricing.Call, pricing.Put} {
		req := request()
		req.OptionType = optionType
		result, err := svc.RunSimulation(ctx, req)
		require.NoError(t, err)
		ids = append(ids, result.SimulationID)
	}

	all, err := svc.ListSimulations(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := svc.GetSimulation(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, pricing.Put, got.Inputs.OptionType)

	require.NoError(t, svc.DeleteSimulation(ctx, ids[0]))

	_, err = svc.GetSimulation(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteSimulation(ctx, ids[0]), store.ErrNotFound)

	bus.WaitAsync()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ids[0]}, deleted)
}
