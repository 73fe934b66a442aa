package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/lowfreq/meridian/internal/metrics"
)

// Start runs the background maintenance loop. It performs an initial warmup
// filling [now, now+window], then on every refresh tick extends the leading
// edge and evicts elapsed passes, and rebuilds from scratch whenever Reload
// hands it a new monitored set.
//
// Blocks until ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	c.warmup(ctx)

	ticker := c.clock.NewTicker(c.cfg.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Infow("schedule generator stopped")
			return
		case <-c.notify:
			c.performCutover(ctx)
		case <-ticker.Chan():
			c.tick(ctx)
		}
	}
}

// warmup fills the schedule for [now, now+window].
func (c *Cache) warmup(ctx context.Context) {
	c.mu.RLock()
	targets := c.targets
	c.mu.RUnlock()

	now := c.clock.Now()
	to := now.Add(c.cfg.Window)

	c.logger.Infow("schedule warmup starting",
		"targets", len(targets),
		"from", now.UTC().Format(time.RFC3339),
		"to", to.UTC().Format(time.RFC3339),
	)

	start := time.Now()
	entries := c.build(ctx, targets, now, to)
	if ctx.Err() != nil {
		return
	}

	c.merge(entries, time.Time{}, to)
	c.warmed.Store(true)

	c.logger.Infow("schedule warmup complete",
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *Cache) tick(ctx context.Context) {
	c.extendLeadingEdge(ctx)
	c.evictExpired()
}

// extendLeadingEdge searches the span the window has rolled over since the
// last tick and folds the new transits in.
func (c *Cache) extendLeadingEdge(ctx context.Context) {
	c.mu.RLock()
	targets := c.targets
	from := c.coverage
	c.mu.RUnlock()

	to := c.clock.Now().Add(c.cfg.Window)
	if !to.After(from) {
		return
	}

	start := time.Now()
	entries := c.build(ctx, targets, from, to)
	if ctx.Err() != nil {
		return
	}
	c.merge(entries, from, to)

	c.logger.Debugw("schedule leading edge extended",
		"from", from.UTC().Format(time.RFC3339),
		"to", to.UTC().Format(time.RFC3339),
		"entries_added", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// build generates entries for every target over [from, to], fanning out on
// a bounded worker set. Targets that fail are logged and skipped; the rest
// of the schedule still builds.
func (c *Cache) build(ctx context.Context, targets []Monitored, from, to time.Time) []Entry {
	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var out []Entry

	for _, m := range targets {
		wg.Add(1)
		go func(m Monitored) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			entries, err := c.generateTarget(ctx, m, from, to)
			if err != nil {
				c.logger.Warnw("schedule generation failed",
					"target", m.Name,
					"error", err,
				)
				metrics.ScheduleBuildError()
				return
			}
			mu.Lock()
			out = append(out, entries...)
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	sortEntries(out)
	return out
}

// generateTarget finds every transit of one target inside [from, to] and
// brackets the observing window around each.
func (c *Cache) generateTarget(ctx context.Context, m Monitored, from, to time.Time) ([]Entry, error) {
	transits, err := m.Finder.MeridianTransits(from, to.Sub(from))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(transits))
	for _, tr := range transits {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		wins, err := m.Finder.ElevationWindows(tr.Time, []float64{m.MinElDeg}, windowSpan)
		if err != nil {
			return nil, err
		}
		w := wins[0]
		e := Entry{
			Target:       m.Name,
			Transit:      tr.Time,
			ElevationDeg: tr.ElevationDeg,
			ThresholdDeg: w.ThresholdDeg,
			Always:       w.Always,
			Never:        w.Never,
		}
		if !w.Never {
			e.Rise, e.Set = &w.Rise, &w.Set
		}
		entries = append(entries, e)
	}
	return entries, nil
}
