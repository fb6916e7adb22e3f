package ratefetcher

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// StubFetcher stands in for a market-data lookup of the risk-free rate. It
// answers with a fixed rate after a fixed delay.
type StubFetcher struct {
	delay time.Duration
	rate  float64
}

func NewStubFetcher(delay time.Duration, rate float64) *StubFetcher {
	return &StubFetcher{
		delay: delay,
		rate:  rate,
	}
}

func (f *StubFetcher) FetchRiskFreeRate(ctx context.Context) (float64, error) {
	timer := time.NewTimer(f.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		log.WithContext(ctx).Debugf("fetched risk-free rate %v", f.rate)
		return f.rate, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("FetchRiskFreeRate: %w", ctx.Err())
	}
}
