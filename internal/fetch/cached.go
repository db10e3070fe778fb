package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a fetched page, or a failure, is reused.
const DefaultCacheTTL = 15 * time.Minute

// PageFetcher is implemented by Fetcher and CachedFetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

type cacheEntry struct {
	result    *Result
	err       error
	fetchedAt time.Time
}

// CachedFetcher memoizes fetches in process memory, keyed by normalized URL.
// Franchises and chains often list the same website for every branch, so a
// single job would otherwise download the same page many times. Failures are
// remembered too: a dead domain is not retried within the TTL. Expired entries
// are dropped whenever a new one is stored, so the cache only ever holds the
// pages fetched within the last TTL.
type CachedFetcher struct {
	next PageFetcher
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedFetcher wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachedFetcher(next PageFetcher, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch returns a fresh cached result when available, otherwise fetches.
// Cancellation of ctx is not cached.
func (c *CachedFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	key := NormalizeURL(rawURL)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.result, entry.err
	}

	result, err := c.next.Fetch(ctx, rawURL)
	if ctx.Err() != nil {
		return result, err
	}

	c.mu.Lock()
	now := c.now()
	c.dropExpired(now)
	c.entries[key] = cacheEntry{result: result, err: err, fetchedAt: now}
	c.mu.Unlock()

	return result, err
}

// Len returns the number of cached entries, including expired ones not yet dropped.
func (c *CachedFetcher) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// dropExpired removes entries older than the TTL. c.mu must be held.
func (c *CachedFetcher) dropExpired(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}
