package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/sites-backend-go/internal/models"
)

// OnViewportChanged schedules a bounded query for the viewport after the
// debounce delay. A newer call cancels the pending one; a cancelled task
// never commits anything, so only the last viewport is applied.
func (c *Controller) OnViewportChanged(bounds models.Viewport) error {
	if err := bounds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidViewport, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.pendingCancel != nil {
		c.pendingCancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.pendingCancel = cancel
	c.pendingGen++
	gen := c.pendingGen

	c.wg.Add(1)
	go c.runViewportQuery(ctx, gen, bounds)
	return nil
}

func (c *Controller) runViewportQuery(ctx context.Context, gen uint64, bounds models.Viewport) {
	defer c.wg.Done()

	timer := time.NewTimer(c.settings.Debounce)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	limit := c.limit.Current()
	epoch := c.modeEpoch
	c.mu.Unlock()

	start := c.now()
	sites, err := c.store.FetchInBounds(ctx, bounds, limit)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Superseded while the query ran. A completed query still tells the
	// limiter how the store performs, unless the mode changed meanwhile.
	if ctx.Err() != nil {
		if err == nil && epoch == c.modeEpoch && !c.closed {
			c.recordOutcomeLocked(elapsed, len(sites), true)
		}
		return
	}
	if c.pendingGen == gen {
		c.pendingCancel()
		c.pendingCancel = nil
	}
	c.applyOutcomeLocked(bounds, sites, elapsed, err)
}

// recordOutcomeLocked feeds one query into the limiter and escalates when a
// threshold is crossed
func (c *Controller) recordOutcomeLocked(elapsed time.Duration, fetched int, succeeded bool) {
	c.observer.ObserveQuery(elapsed, fetched, succeeded)

	before := c.limit.Current()
	if reason := c.limit.RecordOutcome(elapsed, fetched, succeeded); reason != "" {
		c.escalateLocked(reason)
	}
	if after := c.limit.Current(); after != before {
		c.observer.ObserveLimit(after)
		c.logger.Debug("viewport limit adjusted", "from", before, "to", after, "elapsed", elapsed)
	}
}

func (c *Controller) applyOutcomeLocked(bounds models.Viewport, sites []models.Site, elapsed time.Duration, err error) {
	succeeded := err == nil
	c.recordOutcomeLocked(elapsed, len(sites), succeeded)

	if !succeeded {
		c.logger.Warn("viewport query failed", "error", err,
			"consecutive_failures", c.limit.State().ConsecutiveFailures)
	}

	if !succeeded || len(sites) == 0 {
		c.showFallbackLocked(succeeded)
		return
	}

	if models.SameSiteSet(c.visible, sites) {
		return
	}
	c.visible = sites
	c.logger.Debug("visible sites replaced", "count", len(sites), "limit", c.limit.Current(),
		"min_lat", bounds.MinLat, "max_lat", bounds.MaxLat, "min_lon", bounds.MinLon, "max_lon", bounds.MaxLon)
	c.publishLocked(CauseViewport)
	c.prefetchLocked(sites)
}

// showFallbackLocked puts the sample bank on screen. With an empty bank a
// failed query keeps the previous visible set, while an empty result clears it.
func (c *Controller) showFallbackLocked(succeeded bool) {
	if c.bank.Len() == 0 {
		if succeeded && len(c.visible) > 0 {
			c.visible = nil
			c.publishLocked(CauseViewport)
		}
		return
	}

	c.observer.ObserveFallback()
	fallback := c.bank.Sites()
	if models.SameSiteSet(c.visible, fallback) {
		return
	}
	c.visible = fallback
	c.publishLocked(CauseFallback)
}
