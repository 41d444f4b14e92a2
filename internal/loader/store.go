package loader

import (
	"context"
	"errors"

	"github.com/jengzang/sites-backend-go/internal/models"
)

var (
	// ErrColdStart wraps store failures during bootstrap
	ErrColdStart = errors.New("cold start failed")
	// ErrBootstrapInProgress is returned when Bootstrap is called while one is running
	ErrBootstrapInProgress = errors.New("bootstrap already in progress")
	// ErrInvalidViewport is returned for out-of-range bounds
	ErrInvalidViewport = errors.New("invalid viewport")
	// ErrClosed is returned once the controller has been closed
	ErrClosed = errors.New("loader closed")
)

// RecordStore is the query surface of the site database
type RecordStore interface {
	// FetchRanked returns at most limit sites, best ranked first
	FetchRanked(ctx context.Context, limit int) ([]models.Site, error)
	Count(ctx context.Context) (int64, error)
	// FetchInBounds returns at most limit sites inside the viewport
	FetchInBounds(ctx context.Context, bounds models.Viewport, limit int) ([]models.Site, error)
	FetchAll(ctx context.Context) ([]models.Site, error)
}

// Prefetcher warms image caches. Calls are best effort.
type Prefetcher interface {
	Prefetch(ctx context.Context, ids []string, urlsByID map[string]string) error
}
