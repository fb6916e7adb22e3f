package cache

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/optionprisma/src/pricing"
	"github.com/jiaming2012/optionprisma/src/utils"
)

const keyPrefix = "pricing"

type Entry struct {
	MonteCarlo pricing.MonteCarloResult
	Analytical pricing.AnalyticalResult
}

// ResultCache memoizes pricing outputs per request. Only seeded requests are
// cached; an unseeded run is not reproducible.
type ResultCache struct {
	cache *cache.Cache
}

func NewResultCache(ttl, cleanupInterval time.Duration) *ResultCache {
	return &ResultCache{
		cache: cache.New(ttl, cleanupInterval),
	}
}

func key(req pricing.PricingRequest) (string, bool, error) {
	if req.RandomSeed == nil {
		return "", false, nil
	}

	k, err := utils.HashStruct(keyPrefix, req)
	if err != nil {
		return "", false, fmt.Errorf("ResultCache: key: %w", err)
	}

	return k, true, nil
}

func (c *ResultCache) Get(req pricing.PricingRequest) (Entry, bool) {
	k, ok, err := key(req)
	if err != nil {
		log.Warnf("ResultCache: skipping lookup: %v", err)
		return Entry{}, false
	}

	if !ok {
		return Entry{}, false
	}

	item, found := c.cache.Get(k)
	if !found {
		return Entry{}, false
	}

	log.Tracef("ResultCache: hit %s", k)
	return item.(Entry), true
}

// Set stores the entry and reports whether the request was cacheable.
func (c *ResultCache) Set(req pricing.PricingRequest, entry Entry) (bool, error) {
	k, ok, err := key(req)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	c.cache.Set(k, entry, cache.DefaultExpiration)
	return true, nil
}

func (c *ResultCache) Len() int {
	return c.cache.ItemCount()
}

func (c *ResultCache) Flush() {
	c.cache.Flush()
}
