package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PerfTTLSeconds int `envconfig:"PERF_CACHE_TTL_SECONDS" default:"60"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

type item struct {
	value     interface{}
	expiresAt time.Time
}

// Cache memoizes expensive per-portfolio computations and owns the
// per-portfolio version counters used to build cache keys. A single mutex
// covers both maps so a version bump that happens-before a Get/Set is
// always visible to it.
type Cache struct {
	mu       sync.Mutex
	items    map[string]item
	versions map[uint]int64
	now      func() time.Time
}

func New() *Cache {
	return &Cache{
		items:    make(map[string]item),
		versions: make(map[uint]int64),
		now:      time.Now,
	}
}

// Get returns the cached value for key, or (nil, false) on a miss.
// Expired entries count as misses and are evicted lazily; there is no
// background sweep.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !it.expiresAt.After(c.now()) {
		delete(c.items, key)
		return nil, false
	}
	return it.value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{value: value, expiresAt: c.now().Add(ttl)}
}

// Version returns the current version token for a portfolio. Portfolios
// never bumped report 1, so version 0 never appears in a cache key.
func (c *Cache) Version(portfolioID uint) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.versionLocked(portfolioID)
}

// Bump advances the portfolio's version token and returns the new value.
// Call it after any durable write that changes the portfolio's ledger or
// cash balance; entries keyed under older versions simply become
// unreachable.
func (c *Cache) Bump(portfolioID uint) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.versionLocked(portfolioID) + 1
	c.versions[portfolioID] = next
	return next
}

func (c *Cache) versionLocked(portfolioID uint) int64 {
	if v, ok := c.versions[portfolioID]; ok {
		return v
	}
	return 1
}
