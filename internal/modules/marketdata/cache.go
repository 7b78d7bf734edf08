package marketdata

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedResult is a Result plus the time its batch finished. Entries live for
// the process lifetime; there is no eviction because the input domain (one
// basket, one credential, one date range per day) is tiny.
type CachedResult struct {
	Result
	FetchedAt time.Time
}

// Cache memoizes batch results in memory, keyed by basket + date range +
// credential identity. Population is single-flight per key: concurrent
// callers of an uncached key share one throttled batch instead of burning
// quota twice.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CachedResult
	group   singleflight.Group
	log     zerolog.Logger
}

// NewCache creates a new result cache.
func NewCache(log zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*CachedResult),
		log:     log.With().Str("service", "result_cache").Logger(),
	}
}

// Key derives the cache key for a batch. Tickers are sorted so basket order
// doesn't fragment the cache, and the credential is hashed so the key never
// embeds the secret itself.
func Key(tickers []string, from, to, apiKey string) string {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	credential := sha256.Sum256([]byte(apiKey))

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte("|" + from + "|" + to + "|"))
	h.Write(credential[:])

	return hex.EncodeToString(h.Sum(nil)[:16])
}

// GetOrCollect returns the cached result for key, or runs collect exactly
// once to populate it. Failed batches are never stored, so a transient API
// failure doesn't poison the cache; the next caller retries.
func (c *Cache) GetOrCollect(key string, collect func() (*Result, error)) (*CachedResult, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.log.Debug().Str("key", key).Msg("Cache hit")
		return entry, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// Re-check under single-flight: another caller may have populated
		// the entry between the read above and this call.
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return entry, nil
		}

		result, err := collect()
		if err != nil {
			return nil, err
		}

		cached := &CachedResult{Result: *result, FetchedAt: time.Now()}

		c.mu.Lock()
		c.entries[key] = cached
		c.mu.Unlock()

		return cached, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.log.Debug().Str("key", key).Msg("Shared in-flight batch")
	}

	return v.(*CachedResult), nil
}

// Get returns the cached result for key without triggering a fetch.
func (c *Cache) Get(key string) (*CachedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Len returns the number of cached batches.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all cached batches and returns how many were removed.
// This is the manual eviction path; there is no automatic expiry.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]*CachedResult)

	c.log.Info().Int("removed", removed).Msg("Cache cleared")
	return removed
}
