package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/sites-backend-go/internal/loader"
	"github.com/jengzang/sites-backend-go/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingListener struct {
	mu   sync.Mutex
	seen []bool
}

func (l *recordingListener) OnSafeModeChanged(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, enabled)
}

func (l *recordingListener) transitions() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.seen...)
}

func TestModeService_BroadcastsToAllListeners(t *testing.T) {
	s := NewModeService(false, discardLogger())
	a, b := &recordingListener{}, &recordingListener{}
	s.Register(a)
	s.Register(b)

	s.SetSafeMode(true, "manual")
	s.SetSafeMode(true, "manual")
	s.SetSafeMode(false, "manual")

	assert.False(t, s.Enabled())
	assert.Equal(t, []bool{true, true, false}, a.transitions())
	assert.Equal(t, a.transitions(), b.transitions())
}

func TestModeService_RunEscalates(t *testing.T) {
	s := NewModeService(false, discardLogger())
	l := &recordingListener{}
	s.Register(l)

	requests := make(chan loader.EscalationRequest, 2)
	requests <- loader.EscalationRequest{Reason: loader.ReasonQuerySlow}
	requests <- loader.EscalationRequest{Reason: loader.ReasonQueryFailures}
	close(requests)

	s.Run(context.Background(), requests)

	assert.True(t, s.Enabled())
	assert.Equal(t, []bool{true}, l.transitions(), "second request ignored while already safe")
}

func TestModeService_RunStopsOnContext(t *testing.T) {
	s := NewModeService(false, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, make(chan loader.EscalationRequest))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(500, 7, "https://cdn.example.com")
	b := Generate(500, 7, "https://cdn.example.com")
	require.Equal(t, a, b)

	c := Generate(500, 8, "https://cdn.example.com")
	assert.NotEqual(t, a[0].ID, c[0].ID)

	ids := make(map[string]struct{}, len(a))
	withImage := 0
	for _, s := range a {
		ids[s.ID] = struct{}{}
		assert.GreaterOrEqual(t, s.Latitude, -85.0)
		assert.LessOrEqual(t, s.Latitude, 85.0)
		assert.GreaterOrEqual(t, s.Longitude, -180.0)
		assert.LessOrEqual(t, s.Longitude, 180.0)
		if s.ImageURL != "" {
			withImage++
		}
	}
	assert.Len(t, ids, 500)
	assert.Greater(t, withImage, 250)

	for _, s := range Generate(50, 7, "") {
		assert.Empty(t, s.ImageURL)
	}
}

type batchWriter struct {
	batches [][]models.Site
	err     error
}

func (w *batchWriter) InsertSites(ctx context.Context, sites []models.Site) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, sites)
	return nil
}

func TestSeedService_WritesInBatches(t *testing.T) {
	w := &batchWriter{}
	s := NewSeedService(w, discardLogger())

	require.NoError(t, s.Seed(context.Background(), 2500, 1, "", 1000))
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[2], 500)

	w = &batchWriter{err: errors.New("database is locked")}
	err := NewSeedService(w, discardLogger()).Seed(context.Background(), 10, 1, "", 0)
	assert.ErrorContains(t, err, "database is locked")
}

type staticSource struct {
	sites []models.Site
	err   error
}

func (s staticSource) FetchAll(ctx context.Context) ([]models.Site, error) {
	return s.sites, s.err
}

func TestStatsService_GetDatasetStats(t *testing.T) {
	sites := []models.Site{
		{ID: "a", Region: "Red Sea", Latitude: 27.9, Longitude: 34.3, VisitedCount: 10, ImageURL: "x"},
		{ID: "b", Region: "Red Sea", Latitude: 27.91, Longitude: 34.31, VisitedCount: 20, Wishlist: true},
		{ID: "c", Region: "Fiji", Latitude: -17.5, Longitude: 179.9, VisitedCount: 30},
	}
	svc := NewStatsService(staticSource{sites: sites})

	got, err := svc.GetDatasetStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.WithImage)
	assert.Equal(t, 1, got.Wishlist)
	assert.Equal(t, map[string]int{"Red Sea": 2, "Fiji": 1}, got.ByRegion)
	assert.Equal(t, 20.0, got.VisitedCount.P50)
	require.Len(t, got.DensestCells, 1)
	assert.Equal(t, 2, got.DensestCells[0].Count)

	_, err = NewStatsService(staticSource{err: errors.New("no such table: sites")}).GetDatasetStats(context.Background(), 0)
	assert.ErrorContains(t, err, "failed to load sites")
}
