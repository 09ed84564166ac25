package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/Alias1177/signalrank/models"
)

type cacheKey struct {
	canonical string
	asOfHour  int64
	lookback  int
}

type cacheEntry struct {
	ready chan struct{}
	snap  *models.MarketSnapshot
	err   error
}

// Cache is a read-through snapshot cache in front of a provider. Concurrent
// requests for the same (asset, as-of hour, lookback) trigger a single
// upstream fetch; everyone else waits for it. Failed fetches are not cached,
// a later request retries. Cache itself implements models.MarketSignalProvider.
type Cache struct {
	provider models.MarketSignalProvider

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewCache wraps a provider with snapshot caching.
func NewCache(provider models.MarketSignalProvider) *Cache {
	return &Cache{
		provider: provider,
		entries:  make(map[cacheKey]*cacheEntry),
	}
}

// Fetch returns the cached snapshot for the asset, fetching it once on miss.
// The as-of moment is bucketed by hour so predictions issued within the same
// hour share one snapshot.
func (c *Cache) Fetch(ctx context.Context, asset models.Asset, asOf time.Time, lookbackDays int) (*models.MarketSnapshot, error) {
	key := cacheKey{
		canonical: asset.Canonical,
		asOfHour:  asOf.UTC().Truncate(time.Hour).Unix(),
		lookback:  lookbackDays,
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{ready: make(chan struct{})}
		c.entries[key] = entry
		c.mu.Unlock()

		entry.snap, entry.err = c.provider.Fetch(ctx, asset, asOf, lookbackDays)
		if entry.err != nil {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		close(entry.ready)
		return entry.snap, entry.err
	}
	c.mu.Unlock()

	select {
	case <-entry.ready:
		return entry.snap, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
