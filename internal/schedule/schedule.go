// Package schedule maintains a rolling cache of upcoming meridian transits
// for the monitored targets. A background generator fills the window
// [now, now+window] at startup, extends the leading edge on every refresh
// tick, evicts passes that have fully elapsed, and rebuilds behind a grace
// flag when the monitored set changes. Reads are served from the current
// snapshot at all times, including during a rebuild.
package schedule

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/search"
)

// windowSpan is the width of the elevation-window search run around each
// transit. One full day always contains the whole pass belonging to the
// transit at its center.
const windowSpan = 24 * time.Hour

// Config tunes the rolling schedule.
type Config struct {
	Window      time.Duration // horizon ahead of now kept filled (default: 24h)
	Refresh     time.Duration // leading edge extension interval (default: 1h)
	GracePeriod time.Duration // keep entries this long past their set time (default: 30s)
	Workers     int           // bounded fan-out for per-target generation (default: 4)
}

// Monitored is one target the schedule tracks: a ready-to-use finder plus
// the elevation floor its observing window is bracketed against.
type Monitored struct {
	Name     string
	Finder   *search.Finder
	MinElDeg float64
}

// Entry is one upcoming transit of a monitored target together with the
// observing window around it.
type Entry struct {
	Target       string     `json:"target"`
	Transit      time.Time  `json:"transit"`
	ElevationDeg float64    `json:"elevation_deg"`
	ThresholdDeg float64    `json:"threshold_deg"`
	Rise         *time.Time `json:"rise,omitempty"`
	Set          *time.Time `json:"set,omitempty"`
	Always       bool       `json:"always,omitempty"`
	Never        bool       `json:"never,omitempty"`
}

// expiry is the instant after which the entry is only of historical
// interest: the end of its observing window, or the transit itself when no
// window was found.
func (e Entry) expiry() time.Time {
	if e.Set != nil && e.Set.After(e.Transit) {
		return *e.Set
	}
	return e.Transit
}

// Cache is the rolling transit schedule. All mutation happens on the
// generator goroutine started by Start; readers take the read lock and may
// call from any goroutine.
type Cache struct {
	cfg    Config
	logger *logging.Logger
	clock  clockwork.Clock

	mu       sync.RWMutex
	targets  []Monitored
	entries  []Entry   // sorted by transit time, then target name
	coverage time.Time // leading edge already searched

	warmed        atomic.Bool
	inGracePeriod atomic.Bool
	evictions     atomic.Int64
	cutovers      atomic.Int64

	pendingMu  sync.Mutex
	pending    []Monitored
	hasPending bool
	notify     chan struct{}
}

// New builds a Cache over the given monitored targets. Zero config fields
// fall back to defaults.
func New(cfg Config, targets []Monitored, logger *logging.Logger) *Cache {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Hour
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	c := &Cache{
		cfg:     cfg,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		targets: targets,
		notify:  make(chan struct{}, 1),
	}
	logger.Infow("schedule cache configured",
		"targets", len(targets),
		"window_hours", cfg.Window.Hours(),
		"refresh_seconds", cfg.Refresh.Seconds(),
		"workers", cfg.Workers,
	)
	return c
}

// SetClock swaps the wall clock for tests. Call before Start.
func (c *Cache) SetClock(clock clockwork.Clock) { c.clock = clock }

// Ready reports whether the initial warmup has completed. Readiness probes
// gate on this so the daemon only takes traffic with a populated schedule.
func (c *Cache) Ready() bool { return c.warmed.Load() }

// Entries returns a copy of the full current snapshot, ordered by transit
// time.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Upcoming returns the entries whose pass has not fully elapsed, ordered by
// transit time.
func (c *Cache) Upcoming() []Entry {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Entry
	for _, e := range c.entries {
		if e.expiry().Before(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Next returns the next upcoming transit across all monitored targets.
func (c *Cache) Next() (Entry, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Transit.Before(now) {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// Stats is a snapshot of cache state for the diagnostics endpoint.
type Stats struct {
	Targets       int       `json:"targets"`
	Entries       int       `json:"entries"`
	Coverage      time.Time `json:"coverage"`
	Warmed        bool      `json:"warmed"`
	InGracePeriod bool      `json:"in_grace_period"`
	Evictions     int64     `json:"evictions"`
	Cutovers      int64     `json:"cutovers"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Targets:       len(c.targets),
		Entries:       len(c.entries),
		Coverage:      c.coverage,
		Warmed:        c.warmed.Load(),
		InGracePeriod: c.inGracePeriod.Load(),
		Evictions:     c.evictions.Load(),
		Cutovers:      c.cutovers.Load(),
	}
}

// merge folds newly generated entries into the snapshot and restores the
// sort order. Entries at or before the previous leading edge are dropped;
// the spans on either side of the edge both contain it.
func (c *Cache) merge(entries []Entry, prevCoverage, coverage time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if !prevCoverage.IsZero() && !e.Transit.After(prevCoverage) {
			continue
		}
		c.entries = append(c.entries, e)
	}
	sortEntries(c.entries)
	c.coverage = coverage
	metrics.SetScheduleEntries(len(c.entries))
}

// evictExpired removes entries whose pass ended more than the grace period
// ago.
func (c *Cache) evictExpired() int {
	cutoff := c.clock.Now().Add(-c.cfg.GracePeriod)
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.expiry().Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(c.entries) - len(kept)
	c.entries = kept

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.SetScheduleEntries(len(c.entries))
		c.logger.Debugw("schedule eviction", "entries_removed", removed)
	}
	return removed
}

// replaceAll swaps in a freshly built snapshot. Used by cutover.
func (c *Cache) replaceAll(targets []Monitored, entries []Entry, coverage time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = targets
	c.entries = entries
	c.coverage = coverage
	metrics.SetScheduleEntries(len(c.entries))
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Transit.Equal(entries[j].Transit) {
			return entries[i].Transit.Before(entries[j].Transit)
		}
		return entries[i].Target < entries[j].Target
	})
}
