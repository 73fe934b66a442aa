package schedule

import (
	"context"
	"time"

	"github.com/lowfreq/meridian/internal/metrics"
)

// Reload hands the generator a new monitored set, typically after a config
// reload changed the target list. The rebuild happens on the generator
// goroutine; until the swap the old snapshot keeps serving reads. Safe to
// call repeatedly; only the most recent set is applied.
func (c *Cache) Reload(targets []Monitored) {
	c.pendingMu.Lock()
	c.pending = targets
	c.hasPending = true
	c.pendingMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// takePending claims the most recently queued monitored set, if any.
func (c *Cache) takePending() ([]Monitored, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if !c.hasPending {
		return nil, false
	}
	targets := c.pending
	c.pending = nil
	c.hasPending = false
	return targets, true
}

// performCutover rebuilds the whole schedule for a new monitored set.
//
// Strategy:
//  1. Set the grace flag (the old snapshot continues serving reads)
//  2. Build the new entries in the background
//  3. Atomic swap: replace targets, entries and coverage together
//  4. Clear the grace flag
func (c *Cache) performCutover(ctx context.Context) {
	targets, ok := c.takePending()
	if !ok {
		return
	}

	c.mu.RLock()
	oldCount := len(c.targets)
	c.mu.RUnlock()

	c.logger.Infow("schedule cutover starting",
		"old_targets", oldCount,
		"new_targets", len(targets),
	)

	c.inGracePeriod.Store(true)
	metrics.SetScheduleGracePeriodActive(true)

	start := time.Now()
	now := c.clock.Now()
	to := now.Add(c.cfg.Window)

	entries := c.build(ctx, targets, now, to)
	if ctx.Err() != nil {
		c.inGracePeriod.Store(false)
		metrics.SetScheduleGracePeriodActive(false)
		c.logger.Warnw("schedule cutover cancelled by context")
		return
	}

	c.replaceAll(targets, entries, to)
	c.cutovers.Add(1)

	c.inGracePeriod.Store(false)
	metrics.SetScheduleGracePeriodActive(false)
	metrics.ScheduleCutover()

	c.logger.Infow("schedule cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"entries_replaced", len(entries),
	)
}
