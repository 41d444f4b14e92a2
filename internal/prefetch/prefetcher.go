// Package prefetch warms the image CDN for sites that are about to be shown
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

const (
	dedupKeyPrefix = "sites:prefetch:"
	releaseTimeout = 2 * time.Second
)

// dedupStore is the part of *redis.Client used for dedup claims
type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// HTTPPrefetcher fetches image URLs with bounded concurrency so the CDN
// edge holds them before the map asks. With a Redis client it skips URLs
// that any instance warmed within the dedup TTL.
type HTTPPrefetcher struct {
	client   *http.Client
	sem      *semaphore.Weighted
	rdb      dedupStore
	dedupTTL time.Duration
	logger   *slog.Logger
}

// Options configures an HTTPPrefetcher
type Options struct {
	Concurrency int64
	Timeout     time.Duration
	// Redis is optional
	Redis    *redis.Client
	DedupTTL time.Duration
}

// NewHTTPPrefetcher creates a prefetcher
func NewHTTPPrefetcher(opts Options, logger *slog.Logger) *HTTPPrefetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	p := &HTTPPrefetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		sem:      semaphore.NewWeighted(opts.Concurrency),
		dedupTTL: opts.DedupTTL,
		logger:   logger,
	}
	if opts.Redis != nil {
		p.rdb = opts.Redis
	}
	return p
}

// Prefetch warms every URL in urlsByID for the given ids. It waits for all
// requests and returns their joined errors.
func (p *HTTPPrefetcher) Prefetch(ctx context.Context, ids []string, urlsByID map[string]string) error {
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		errs       []error
		acquireErr error
	)

	warmed := 0
	for _, id := range ids {
		url := urlsByID[id]
		if url == "" {
			continue
		}
		skip, claimed := p.claim(ctx, url)
		if skip {
			continue
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			if claimed {
				p.release(url)
			}
			acquireErr = err
			break
		}
		warmed++

		wg.Add(1)
		go func(id, url string, claimed bool) {
			defer wg.Done()
			defer p.sem.Release(1)
			if err := p.warm(ctx, url); err != nil {
				if claimed {
					p.release(url)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("site %s: %w", id, err))
				mu.Unlock()
			}
		}(id, url, claimed)
	}
	wg.Wait()
	if acquireErr != nil {
		errs = append(errs, acquireErr)
	}

	p.logger.Debug("image prefetch finished", "requested", len(ids), "warmed", warmed, "failed", len(errs))
	return errors.Join(errs...)
}

// claim takes the Redis dedup key for url. skip is true when another warm
// holds it. Redis errors never block a warm.
func (p *HTTPPrefetcher) claim(ctx context.Context, url string) (skip, claimed bool) {
	if p.rdb == nil {
		return false, false
	}
	ok, err := p.rdb.SetNX(ctx, dedupKeyPrefix+url, 1, p.dedupTTL).Result()
	if err != nil {
		p.logger.Debug("prefetch dedup unavailable", "error", err)
		return false, false
	}
	return !ok, ok
}

// release drops the claim on url so a failed warm can be retried
func (p *HTTPPrefetcher) release(url string) {
	if p.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := p.rdb.Del(ctx, dedupKeyPrefix+url).Err(); err != nil {
		p.logger.Debug("prefetch dedup release failed", "url", url, "error", err)
	}
}

func (p *HTTPPrefetcher) warm(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
