package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jengzang/sites-backend-go/internal/models"
)

// LoadSnapshot is what the map currently has to show
type LoadSnapshot struct {
	Visible    []models.Site `json:"visible"`
	Fallback   []models.Site `json:"fallback"`
	TotalCount int64         `json:"totalCount"`
	IsSampled  bool          `json:"isSampled"`
}

// State is a point-in-time copy of everything the controller owns
type State struct {
	LoadSnapshot
	SafeMode bool          `json:"safeMode"`
	Adaptive AdaptiveState `json:"adaptive"`
	Bounds   LimitBounds   `json:"bounds"`
}

// WarmupGuard allows at most one warmup per session unless one fails
type WarmupGuard struct {
	hasRequested bool
}

// HasRequested reports whether a warmup started and has not failed
func (g WarmupGuard) HasRequested() bool { return g.hasRequested }

// Controller owns the loader state. Every mutation happens under mu, so
// viewport outcomes, safe-mode transitions, bootstrap and warmup commits
// never interleave.
type Controller struct {
	store      RecordStore
	prefetcher Prefetcher
	settings   Settings
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	safeMode      bool
	limit         *AdaptiveLimit
	bank          SampleBank
	sites         []models.Site // authoritative set
	visible       []models.Site
	totalCount    int64
	isSampled     bool
	bootstrapping bool
	bootstrapped  bool
	warmup        WarmupGuard

	pendingCancel context.CancelFunc
	pendingGen    uint64
	// bumped on every safe-mode transition
	modeEpoch uint64

	escalations broadcaster[EscalationRequest]
	changes     broadcaster[StateChange]
}

// Option configures a Controller
type Option func(*Controller)

// WithPrefetcher sets the image prefetch collaborator
func WithPrefetcher(p Prefetcher) Option {
	return func(c *Controller) { c.prefetcher = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithObserver sets the metrics sink
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock replaces time.Now for query timing
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller starting in the given safe mode
func NewController(store RecordStore, settings Settings, safeMode bool, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader settings: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:    store,
		settings: settings,
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		safeMode: safeMode,
		limit:    NewAdaptiveLimit(settings, settings.LimitBoundsFor(safeMode)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.observer.ObserveSafeMode(safeMode)
	c.observer.ObserveLimit(c.limit.Current())
	return c, nil
}

// Settings returns the tunables the controller was built with
func (c *Controller) Settings() Settings { return c.settings }

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		LoadSnapshot: c.snapshotLocked(),
		SafeMode:     c.safeMode,
		Adaptive:     c.limit.State(),
		Bounds:       c.limit.Bounds(),
	}
}

// SubscribeEscalations returns a channel of safe-mode activation requests
// and a function that cancels the subscription.
func (c *Controller) SubscribeEscalations() (<-chan EscalationRequest, func()) {
	return c.escalations.subscribe()
}

// SubscribeState returns a channel of state changes and a cancel function
func (c *Controller) SubscribeState() (<-chan StateChange, func()) {
	return c.changes.subscribe()
}

// Close cancels pending work, waits for background tasks and closes all
// subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pendingCancel = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.escalations.close()
	c.changes.close()
}

func (c *Controller) snapshotLocked() LoadSnapshot {
	return LoadSnapshot{
		Visible:    append([]models.Site(nil), c.visible...),
		Fallback:   c.bank.Sites(),
		TotalCount: c.totalCount,
		IsSampled:  c.isSampled,
	}
}

func (c *Controller) publishLocked(cause ChangeCause) {
	dropped := c.changes.publish(StateChange{
		Cause:         cause,
		TotalCount:    c.totalCount,
		IsSampled:     c.isSampled,
		SafeMode:      c.safeMode,
		CurrentLimit:  c.limit.Current(),
		VisibleCount:  len(c.visible),
		FallbackCount: c.bank.Len(),
	})
	if dropped > 0 {
		c.logger.Debug("state change dropped by slow subscribers", "cause", cause, "dropped", dropped)
	}
}

func (c *Controller) escalateLocked(reason EscalationReason) {
	c.observer.ObserveEscalation(reason)
	c.logger.Warn("requesting safe mode", "reason", reason,
		"consecutive_slow", c.limit.State().ConsecutiveSlow,
		"consecutive_failures", c.limit.State().ConsecutiveFailures)
	if dropped := c.escalations.publish(EscalationRequest{Reason: reason, At: c.now()}); dropped > 0 {
		c.logger.Warn("escalation request dropped by slow subscribers", "reason", reason, "dropped", dropped)
	}
}

// prefetchLocked hands the image URLs of the leading sites to the
// prefetcher in the background.
func (c *Controller) prefetchLocked(sites []models.Site) {
	if c.prefetcher == nil || c.closed || c.settings.PrefetchLimit == 0 {
		return
	}

	ids := make([]string, 0, c.settings.PrefetchLimit)
	urls := make(map[string]string, c.settings.PrefetchLimit)
	for _, s := range sites {
		if len(ids) == c.settings.PrefetchLimit {
			break
		}
		if s.ImageURL == "" {
			continue
		}
		ids = append(ids, s.ID)
		urls[s.ID] = s.ImageURL
	}
	if len(ids) == 0 {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.prefetcher.Prefetch(c.ctx, ids, urls); err != nil {
			c.logger.Debug("image prefetch failed", "count", len(ids), "error", err)
		}
	}()
}
