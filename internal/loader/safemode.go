package loader

import "github.com/jengzang/sites-backend-go/internal/models"

// OnSafeModeChanged applies a safe-mode transition. Redundant transitions
// are accepted and leave the state as a single transition would.
//
// The limit bounds are recomputed for the new mode, the limit is clamped
// into them and both streak counters are cleared. Enabling shrinks the
// fallback sample, drops any pending viewport query and cuts the visible
// set down to the new limit. Disabling restores the normal-size sample and,
// while the dataset is still sampled, starts the warmup.
func (c *Controller) OnSafeModeChanged(enabled bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	changed := c.safeMode != enabled
	c.safeMode = enabled
	c.modeEpoch++
	c.limit.SetBounds(c.settings.LimitBoundsFor(enabled))

	if enabled {
		// A query in flight was sized for the old limit
		if c.pendingCancel != nil {
			c.pendingCancel()
			c.pendingCancel = nil
			c.pendingGen++
		}
		c.bank.Shrink(c.settings.FallbackLimit.Safe)
		if limit := c.limit.Current(); len(c.visible) > limit {
			c.visible = append([]models.Site(nil), c.visible[:limit]...)
		}
	} else {
		c.bank.Rebuild(c.sites, c.settings.FallbackLimit.Normal)
	}

	c.observer.ObserveSafeMode(enabled)
	c.observer.ObserveLimit(c.limit.Current())
	c.publishLocked(CauseSafeMode)

	warm := !enabled && c.isSampled
	state := c.limit.State()
	visible := len(c.visible)
	c.mu.Unlock()

	if changed {
		c.logger.Info("safe mode changed",
			"enabled", enabled,
			"limit", state.CurrentLimit,
			"visible", visible)
	}
	if warm {
		c.RunWarmupOnce()
	}
}

// SafeMode reports whether safe mode is active
func (c *Controller) SafeMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safeMode
}
