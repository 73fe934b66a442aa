package tle

import (
	"bytes"
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lowfreq/meridian/internal/logging"
)

// Refresher keeps the Store populated: it primes from the disk cache at
// startup, fetches immediately, then refreshes on a fixed interval. A failed
// refresh keeps the previous dataset in place.
type Refresher struct {
	fetcher  *Fetcher
	cache    *Cache
	store    *Store
	interval time.Duration
	clock    clockwork.Clock
	logger   *logging.Logger
}

// NewRefresher wires a fetcher, disk cache and store together.
func NewRefresher(fetcher *Fetcher, cache *Cache, store *Store, interval time.Duration, logger *logging.Logger) *Refresher {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Refresher{
		fetcher:  fetcher,
		cache:    cache,
		store:    store,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
}

// SetClock swaps the time source. Tests inject a fake for deterministic ticks.
func (r *Refresher) SetClock(c clockwork.Clock) {
	r.clock = c
}

// Run blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.warmStart()
	r.refresh(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.refresh(ctx)
		}
	}
}

// warmStart loads the newest disk snapshot so the scanner has a catalog to
// work from before the first network fetch lands.
func (r *Refresher) warmStart() {
	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		r.logger.Infow("no cached TLE snapshot", "error", err)
		return
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil || len(entries) == 0 {
		r.logger.Warnw("cached TLE snapshot unusable", "error", err)
		return
	}
	r.store.SetDataset("cache", ts, entries)
	r.logger.Infow("loaded TLE snapshot from disk", "entries", len(entries), "fetched_at", ts)
}

func (r *Refresher) refresh(ctx context.Context) {
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.logger.Warnw("TLE refresh failed, keeping current dataset", "error", err)
		return
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		r.logger.Warnw("TLE parse failed, keeping current dataset", "error", err)
		return
	}
	if len(entries) == 0 {
		r.logger.Warnw("TLE source returned no parseable entries, keeping current dataset", "url", r.fetcher.SourceURL())
		return
	}

	now := r.clock.Now()
	ds := r.store.SetDataset(r.fetcher.SourceURL(), now, entries)
	if err := r.cache.Write(data, now); err != nil {
		r.logger.Warnw("writing TLE disk snapshot", "error", err)
	}
	r.logger.Infow("TLE dataset refreshed",
		"entries", len(entries),
		"epoch_min", ds.EpochRange.Min,
		"epoch_max", ds.EpochRange.Max,
	)
}
