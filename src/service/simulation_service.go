package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jiaming2012/optionprisma/src/cache"
	"github.com/jiaming2012/optionprisma/src/eventpubsub"
	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
)

const publisherName = "SimulationService"

type Store interface {
	Save(ctx context.Context, result models.SimulationResult) error
	Get(ctx context.Context, id string) (models.SimulationResult, error)
	List(ctx context.Context, skip, limit int) ([]models.SimulationResult, error)
	Delete(ctx context.Context, id string) error
}

type RateFetcher interface {
	FetchRiskFreeRate(ctx context.Context) (float64, error)
}

// SimulationService validates a request, prices it with both engines, checks
// the outputs and records the result.
type SimulationService struct {
	store     Store
	rates     RateFetcher
	cache     *cache.ResultCache
	bus       *eventpubsub.Bus
	now       func() time.Time
	tracer    trace.Tracer
	created   metric.Int64Counter
	rejected  metric.Int64Counter
	stdErrors metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type Option func(*SimulationService)

func WithCache(c *cache.ResultCache) Option {
	return func(s *SimulationService) { s.cache = c }
}

func WithEventBus(bus *eventpubsub.Bus) Option {
	return func(s *SimulationService) { s.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(s *SimulationService) { s.now = now }
}

func NewSimulationService(store Store, rates RateFetcher, opts ...Option) (*SimulationService, error) {
	meter := otel.GetMeterProvider().Meter("service:simulation")

	created, err := meter.Int64Counter("simulations.created", metric.WithDescription("Simulations priced and stored"))
	if err != nil {
		return nil, fmt.Errorf("NewSimulationService: %w", err)
	}

	rejected, err := meter.Int64Counter("simulations.rejected", metric.WithDescription("Simulations rejected by validation or output checks"))
	if err != nil {
		return nil, fmt.Errorf("NewSimulationService: %w", err)
	}

	stdErrors, err := meter.Float64Histogram("simulations.std_error", metric.WithDescription("Monte Carlo standard error"))
	if err != nil {
		return nil, fmt.Errorf("NewSimulationService: %w", err)
	}

	cacheHits, err := meter.Int64Counter("simulations.cache_hits")
	if err != nil {
		return nil, fmt.Errorf("NewSimulationService: %w", err)
	}

	s := &SimulationService{
		store:     store,
		rates:     rates,
		now:       time.Now,
		tracer:    otel.GetTracerProvider().Tracer("service:simulation"),
		created:   created,
		rejected:  rejected,
		stdErrors: stdErrors,
		cacheHits: cacheHits,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// RunSimulation prices req and persists the result. Validation failures are
// returned as *pricing.ValidationError and unusable outputs wrap
// models.ErrRejectedScenario.
func (s *SimulationService) RunSimulation(ctx context.Context, req pricing.PricingRequest) (models.SimulationResult, error) {
	ctx, span := s.tracer.Start(ctx, "RunSimulation")
	defer span.End()

	req = req.WithDefaults()
	span.SetAttributes(
		attribute.String("option_type", string(req.OptionType)),
		attribute.Int("num_simulations", req.NumSimulations),
		attribute.Bool("seeded", req.RandomSeed != nil),
	)

	logger := log.WithContext(ctx).WithField("option_type", req.OptionType)

	if err := req.Validate(); err != nil {
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "validation")))
		span.SetStatus(codes.Error, err.Error())
		return models.SimulationResult{}, fmt.Errorf("RunSimulation: %w", err)
	}

	entry, err := s.price(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.SimulationResult{}, fmt.Errorf("RunSimulation: %w", err)
	}

	if err := checkOutputs(entry); err != nil {
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "output")))
		span.SetStatus(codes.Error, err.Error())
		logger.Warnf("RunSimulation: %v", err)
		return models.SimulationResult{}, fmt.Errorf("RunSimulation: %w", err)
	}

	now := s.now().UTC()
	result := models.SimulationResult{
		SimulationID:         models.NewSimulationID(now),
		OptionPrice:          entry.MonteCarlo.Price,
		StdError:             entry.MonteCarlo.StdError,
		ConfidenceInterval95: entry.MonteCarlo.ConfidenceInterval95,
		BlackScholesPrice:    entry.Analytical.BlackScholesPrice,
		Greeks:               entry.Analytical.Greeks,
		Inputs:               req,
		Timestamp:            now,
	}

	if err := s.store.Save(ctx, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.SimulationResult{}, fmt.Errorf("RunSimulation: %w", err)
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("option_type", string(req.OptionType))))
	s.stdErrors.Record(ctx, result.StdError)
	span.SetAttributes(attribute.String("simulation_id", result.SimulationID))

	logger.WithFields(log.Fields{
		"simulation_id":       result.SimulationID,
		"option_price":        result.OptionPrice,
		"black_scholes_price": result.BlackScholesPrice,
		"std_error":           result.StdError,
	}).Info("simulation completed")

	if s.bus != nil {
		s.bus.Publish(publisherName, eventpubsub.SimulationCreatedEvent, eventpubsub.SimulationCreated{Result: result})
	}

	return result, nil
}

// price runs the risk-free-rate lookup and both pricers concurrently. The
// pricers themselves are not cancellable, so the wait is raced against ctx.
func (s *SimulationService) price(ctx context.Context, req pricing.PricingRequest) (cache.Entry, error) {
	if s.cache != nil {
		if entry, found := s.cache.Get(req); found {
			s.cacheHits.Add(ctx, 1)
			return entry, nil
		}
	}

	var entry cache.Entry
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rate, err := s.rates.FetchRiskFreeRate(gctx)
		if err != nil {
			return err
		}

		log.WithContext(ctx).Debugf("market risk-free rate %v, request rate %v", rate, req.RiskFreeRate)
		return nil
	})

	g.Go(func() error {
		_, span := s.tracer.Start(gctx, "PriceMonteCarlo")
		defer span.End()

		mc, err := pricing.PriceMonteCarlo(req)
		if err != nil {
			return err
		}

		entry.MonteCarlo = mc
		return nil
	})

	g.Go(func() error {
		_, span := s.tracer.Start(gctx, "PriceAnalytical")
		defer span.End()

		analytical, err := pricing.PriceAnalytical(req)
		if err != nil {
			return err
		}

		entry.Analytical = analytical
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return cache.Entry{}, fmt.Errorf("price: %w", err)
		}
	case <-ctx.Done():
		return cache.Entry{}, fmt.Errorf("price: %w", ctx.Err())
	}

	if s.cache != nil {
		if _, err := s.cache.Set(req, entry); err != nil {
			log.WithContext(ctx).Warnf("price: failed to cache result: %v", err)
		}
	}

	return entry, nil
}

func checkOutputs(entry cache.Entry) error {
	values := []struct {
		name        string
		value       float64
		nonNegative bool
	}{
		{"option_price", entry.MonteCarlo.Price, true},
		{"std_error", entry.MonteCarlo.StdError, true},
		{"confidence_interval_95", entry.MonteCarlo.ConfidenceInterval95, true},
		{"black_scholes_price", entry.Analytical.BlackScholesPrice, true},
		{"delta", entry.Analytical.Greeks.Delta, false},
		{"gamma", entry.Analytical.Greeks.Gamma, false},
		{"vega", entry.Analytical.Greeks.Vega, false},
		{"theta", entry.Analytical.Greeks.Theta, false},
		{"rho", entry.Analytical.Greeks.Rho, false},
	}

	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s is not finite", models.ErrRejectedScenario, v.name)
		}

		if v.nonNegative && v.value < 0 {
			return fmt.Errorf("%w: %s is negative", models.ErrRejectedScenario, v.name)
		}
	}

	return nil
}

func (s *SimulationService) GetSimulation(ctx context.Context, id string) (models.SimulationResult, error) {
	result, err := s.store.Get(ctx, id)
	if err != nil {
		return models.SimulationResult{}, fmt.Errorf("GetSimulation: %w", err)
	}

	return result, nil
}

func (s *SimulationService) ListSimulations(ctx context.Context, skip, limit int) ([]models.SimulationResult, error) {
	results, err := s.store.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("ListSimulations: %w", err)
	}

	return results, nil
}

func (s *SimulationService) DeleteSimulation(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("DeleteSimulation: %w", err)
	}

	log.WithContext(ctx).WithField("simulation_id", id).Info("simulation deleted")

	if s.bus != nil {
		s.bus.Publish(publisherName, eventpubsub.SimulationDeletedEvent, eventpubsub.SimulationDeleted{
			SimulationID: id,
			DeletedAt:    s.now().UTC(),
		})
	}

	return nil
}

// IsRejected reports whether err came from the pricing inputs or outputs rather
// than from the infrastructure.
func IsRejected(err error) bool {
	var validationErr *pricing.ValidationError
	return errors.As(err, &validationErr) || errors.Is(err, models.ErrRejectedScenario)
}
