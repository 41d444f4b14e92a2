package loader

import (
	"context"
	"time"
)

// RunWarmupOnce starts the background full fetch that replaces a sampled
// dataset with the complete one. It is a no-op while safe mode is on or when
// a warmup already started and has not failed. It reports whether a task was
// started.
func (c *Controller) RunWarmupOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.safeMode || c.warmup.hasRequested {
		return false
	}
	c.warmup.hasRequested = true

	c.wg.Add(1)
	go c.runWarmup(c.ctx)
	return true
}

// WarmupGuard returns the guard state
func (c *Controller) WarmupGuard() WarmupGuard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warmup
}

func (c *Controller) runWarmup(ctx context.Context) {
	defer c.wg.Done()

	if d := c.settings.WarmupDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.failWarmup(ctx.Err())
			return
		case <-timer.C:
		}
	}

	start := c.now()
	all, err := c.store.FetchAll(ctx)
	if err != nil {
		c.failWarmup(err)
		return
	}

	c.mu.Lock()
	c.sites = all
	c.totalCount = int64(len(all))
	c.isSampled = false
	// Safe mode may have been switched on while the fetch ran
	c.bank.Rebuild(all, c.settings.FallbackLimit.For(c.safeMode))
	c.observer.ObserveWarmup(true)
	c.publishLocked(CauseWarmup)
	fallback := c.bank.Len()
	c.mu.Unlock()

	c.logger.Info("full dataset warmup complete",
		"total", len(all),
		"fallback", fallback,
		"elapsed", c.now().Sub(start))
}

// failWarmup re-arms the guard so a later transition can retry. Visible data
// is not touched.
func (c *Controller) failWarmup(err error) {
	c.mu.Lock()
	c.warmup.hasRequested = false
	c.observer.ObserveWarmup(false)
	c.mu.Unlock()

	c.logger.Warn("full dataset warmup failed", "error", err)
}
