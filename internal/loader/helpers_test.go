package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jengzang/sites-backend-go/internal/models"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("disk I/O error")

func makeSites(n int) []models.Site {
	sites := make([]models.Site, n)
	for i := range sites {
		sites[i] = models.Site{
			ID:        fmt.Sprintf("site-%05d", i),
			Name:      fmt.Sprintf("Site %d", i),
			Latitude:  float64(i%180) - 89,
			Longitude: float64(i%360) - 179,
			ImageURL:  fmt.Sprintf("https://cdn.example.com/sites/%d.jpg", i),
		}
	}
	return sites
}

// fakeStore serves a fixed dataset and records every call
type fakeStore struct {
	mu sync.Mutex

	sites []models.Site

	rankedErr error
	countErr  error
	allErr    error

	// boundsResults are consumed in order; when empty the query returns boundsDefault
	boundsResults []boundsResult
	boundsDefault []models.Site
	boundsDelay   time.Duration
	// ignoreCancel makes a delayed bounds query finish even after its ctx is cancelled
	ignoreCancel bool

	boundsCalls []boundsCall
	allCalls    int
}

type boundsResult struct {
	sites []models.Site
	err   error
}

type boundsCall struct {
	viewport models.Viewport
	limit    int
}

func (s *fakeStore) FetchRanked(ctx context.Context, limit int) ([]models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rankedErr != nil {
		return nil, s.rankedErr
	}
	if limit > len(s.sites) {
		limit = len(s.sites)
	}
	return append([]models.Site(nil), s.sites[:limit]...), nil
}

func (s *fakeStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.sites)), nil
}

func (s *fakeStore) FetchInBounds(ctx context.Context, bounds models.Viewport, limit int) ([]models.Site, error) {
	s.mu.Lock()
	s.boundsCalls = append(s.boundsCalls, boundsCall{viewport: bounds, limit: limit})
	var res boundsResult
	if len(s.boundsResults) > 0 {
		res = s.boundsResults[0]
		s.boundsResults = s.boundsResults[1:]
	} else {
		res = boundsResult{sites: s.boundsDefault}
	}
	delay := s.boundsDelay
	ignoreCancel := s.ignoreCancel
	s.mu.Unlock()

	if delay > 0 && ignoreCancel {
		time.Sleep(delay)
	} else if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	if limit < len(res.sites) {
		return append([]models.Site(nil), res.sites[:limit]...), nil
	}
	return append([]models.Site(nil), res.sites...), nil
}

func (s *fakeStore) FetchAll(ctx context.Context) ([]models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allCalls++
	if s.allErr != nil {
		return nil, s.allErr
	}
	return append([]models.Site(nil), s.sites...), nil
}

func (s *fakeStore) setAllErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allErr = err
}

func (s *fakeStore) calls() []boundsCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]boundsCall(nil), s.boundsCalls...)
}

func (s *fakeStore) fullFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allCalls
}

type recordingPrefetcher struct {
	mu    sync.Mutex
	calls [][]string
}

func (p *recordingPrefetcher) Prefetch(ctx context.Context, ids []string, urlsByID map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ids)
	return errors.New("cdn unreachable")
}

func (p *recordingPrefetcher) batches() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.calls...)
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Debounce = 20 * time.Millisecond
	s.WarmupDelay = 0
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, store RecordStore, settings Settings, safeMode bool, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	c, err := NewController(store, settings, safeMode, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

var testViewport = models.Viewport{MinLat: 10, MaxLat: 20, MinLon: 100, MaxLon: 120}

// waitIdle waits until no viewport task is pending or running
func waitIdle(t *testing.T, c *Controller, queries int, store *fakeStore) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(store.calls()) >= queries
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pendingCancel == nil
	}, 2*time.Second, 5*time.Millisecond)
}
