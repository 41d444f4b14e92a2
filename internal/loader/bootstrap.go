package loader

import (
	"context"
	"fmt"
)

// Bootstrap performs the initial load: the best ranked sites up to the
// bootstrap limit of the current mode plus the total count. On failure it
// returns an empty snapshot wrapped in ErrColdStart and leaves the state
// untouched; the caller decides when to try again. Once a bootstrap has
// succeeded, later calls return the current snapshot without fetching.
func (c *Controller) Bootstrap(ctx context.Context) (LoadSnapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return LoadSnapshot{}, ErrClosed
	}
	if c.bootstrapped {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Debug("bootstrap already complete", "total", snap.TotalCount, "sampled", snap.IsSampled)
		return snap, nil
	}
	if c.bootstrapping {
		c.mu.Unlock()
		return LoadSnapshot{}, ErrBootstrapInProgress
	}
	c.bootstrapping = true
	limit := c.settings.BootstrapLimit.For(c.safeMode)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.bootstrapping = false
		c.mu.Unlock()
	}()

	sites, err := c.store.FetchRanked(ctx, limit)
	if err != nil {
		return c.coldStart(fmt.Errorf("failed to fetch ranked sites: %w", err))
	}
	total, err := c.store.Count(ctx)
	if err != nil {
		return c.coldStart(fmt.Errorf("failed to count sites: %w", err))
	}

	c.mu.Lock()
	c.bootstrapped = true
	c.sites = sites
	c.visible = append(c.visible[:0:0], sites...)
	c.totalCount = total
	// Counts are read at different times, so this is advisory
	c.isSampled = total > int64(len(sites))
	c.bank.Rebuild(sites, c.settings.FallbackLimit.For(c.safeMode))
	snap := c.snapshotLocked()
	warm := c.isSampled && !c.safeMode
	c.observer.ObserveColdStart(true)
	c.publishLocked(CauseBootstrap)
	c.prefetchLocked(sites)
	c.mu.Unlock()

	c.logger.Info("bootstrap complete",
		"fetched", len(sites),
		"total", total,
		"sampled", snap.IsSampled,
		"fallback", len(snap.Fallback))

	if warm {
		c.RunWarmupOnce()
	}
	return snap, nil
}

func (c *Controller) coldStart(err error) (LoadSnapshot, error) {
	c.mu.Lock()
	c.observer.ObserveColdStart(false)
	c.mu.Unlock()

	c.logger.Error("bootstrap failed", "error", err)
	return LoadSnapshot{}, fmt.Errorf("%w: %w", ErrColdStart, err)
}
