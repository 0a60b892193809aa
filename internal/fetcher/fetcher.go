// Package fetcher retrieves upstream RSS/HTML bytes over HTTP with a
// short-TTL cache that coalesces concurrent identical requests
// (spec.md §4.2 Feed Fetcher).
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sunerpy/akari/internal/apperr"
)

// Fetcher retrieves raw bytes from one upstream host, applying a polite
// per-host rate limit.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *Cache
}

// New creates a Fetcher with the given timeout, cache TTL, and a
// one-request-per-interval rate limit (spec §4.2 "polite HTTP
// discipline").
func New(timeout time.Duration, ttl time.Duration, minInterval time.Duration) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		cache:   NewCache(ttl),
	}
}

// FetchFeed retrieves the raw RSS bytes for (mikanBangumiID, subgroupID),
// serving a cached response when one is fresh within the TTL window
// (spec §4.2 Caching). subgroupID may be empty.
func (f *Fetcher) FetchFeed(ctx context.Context, url, mikanBangumiID, subgroupID string) ([]byte, time.Time, error) {
	key := CacheKey(mikanBangumiID, subgroupID)
	return f.fetchCached(ctx, key, url)
}

// SearchAnime retrieves the raw HTML of a search-results page. Search
// queries are not cached — they're interactive and the TTL window would
// mostly cause stale-result confusion rather than savings.
func (f *Fetcher) SearchAnime(ctx context.Context, url string) ([]byte, error) {
	body, _, err := f.do(ctx, url)
	return body, err
}

func (f *Fetcher) fetchCached(ctx context.Context, key, url string) ([]byte, time.Time, error) {
	if entry, ok := f.cache.Get(key); ok {
		return entry.Bytes, entry.FetchedAt, nil
	}

	release := f.cache.Lock(key)
	defer release()

	if entry, ok := f.cache.Get(key); ok {
		return entry.Bytes, entry.FetchedAt, nil
	}

	body, fetchedAt, err := f.do(ctx, url)
	if err != nil {
		return nil, time.Time{}, err
	}
	f.cache.Set(key, body, fetchedAt)
	return body, fetchedAt, nil
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, time.Time, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, time.Time{}, apperr.Cancelled("rate limiter wait cancelled", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, time.Time{}, apperr.Validation("invalid fetch URL", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, time.Time{}, apperr.Cancelled("fetch cancelled", ctx.Err())
		}
		return nil, time.Time{}, apperr.UpstreamUnavailable("feed fetch failed", err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, time.Time{}, apperr.UpstreamUnavailable("feed fetch failed", err, 0)
		}
		return nil, time.Time{}, apperr.UpstreamRejected("feed fetch rejected", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, apperr.UpstreamUnavailable("reading feed response failed", err, 0)
	}
	return body, time.Now(), nil
}
