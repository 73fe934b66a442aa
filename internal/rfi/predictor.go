package rfi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/tle"
)

// ErrNoDataset is returned by Predict before the first TLE set arrives.
var ErrNoDataset = errors.New("no TLE dataset loaded")

// Config tunes the interference scan.
type Config struct {
	MinElDeg      float64       // satellites below this elevation are ignored
	SeparationDeg float64       // alert radius around the target's sky path
	CoarseStep    time.Duration // pass-detection grid
	FineStep      time.Duration // conjunction-refinement grid
	Workers       int           // concurrent satellites
}

// Event is one interval during which a satellite tracks within the alert
// radius of the target.
type Event struct {
	NORADID          int       `json:"norad_id"`
	Name             string    `json:"name"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ClosestTime      time.Time `json:"closest_time"`
	MinSeparationDeg float64   `json:"min_separation_deg"`
	ElevationDeg     float64   `json:"elevation_deg"`
	RangeKm          float64   `json:"range_km"`
}

// TrackFunc supplies the target's sky direction for a batch of instants.
type TrackFunc func(times []time.Time) ([]astro.Horizontal, error)

// Predictor scans the active TLE set for conjunctions with a target track.
// SGP4 models are built once per dataset and reused across scans.
type Predictor struct {
	store   *tle.Store
	obs     Observer
	cfg     Config
	logger  *logging.Logger
	cache   atomic.Pointer[propCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// propCache holds initialized SGP4 models for one dataset. Immutable after
// construction; safe for concurrent reads.
type propCache struct {
	props     map[int]*propagator
	fetchedAt time.Time
}

// NewPredictor builds a Predictor for the given site.
func NewPredictor(store *tle.Store, site astro.Site, cfg Config, logger *logging.Logger) *Predictor {
	if cfg.MinElDeg == 0 {
		cfg.MinElDeg = 10
	}
	if cfg.SeparationDeg <= 0 {
		cfg.SeparationDeg = 5
	}
	if cfg.CoarseStep <= 0 {
		cfg.CoarseStep = 30 * time.Second
	}
	if cfg.FineStep <= 0 {
		cfg.FineStep = time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Predictor{
		store:  store,
		obs:    NewObserver(site),
		cfg:    cfg,
		logger: logger,
	}
}

// Predict scans [start, end] for satellites coming within the alert radius
// of the target track. Satellites fan out over a bounded worker set; events
// come back ordered by start time.
func (p *Predictor) Predict(ctx context.Context, start, end time.Time, track TrackFunc) ([]Event, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("scan window end %v not after start %v", end, start)
	}
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	props := p.cachedProps(ds)

	began := time.Now()
	coarse := grid(start, end, p.cfg.CoarseStep)
	coarseGMST := make([]float64, len(coarse))
	for i, t := range coarse {
		coarseGMST[i] = astro.GMST(t) * math.Pi / 180
	}

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var events []Event

	for _, entry := range ds.Satellites {
		prop, ok := props[entry.NORADID]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(e tle.Entry, prop *propagator) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			evs := p.scanSatellite(ctx, e, prop, coarse, coarseGMST, track)
			if len(evs) > 0 {
				mu.Lock()
				events = append(events, evs...)
				mu.Unlock()
			}
		}(entry, prop)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].NORADID < events[j].NORADID
	})

	metrics.ObserveRFIScan(time.Since(began), len(events))
	p.logger.Debugw("interference scan complete",
		"satellites", len(props),
		"events", len(events),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return events, nil
}

// cachedProps returns initialized SGP4 models for the dataset, rebuilding
// the cache when the dataset changes (double-checked locking).
func (p *Predictor) cachedProps(ds *tle.Dataset) map[int]*propagator {
	if c := p.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.props
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if c := p.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.props
	}

	props := make(map[int]*propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := props[entry.NORADID]; ok {
			continue
		}
		sp, err := newPropagator(entry.Line1, entry.Line2, entry.NORADID)
		if err != nil {
			p.logger.Warnw("sgp4 init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		props[entry.NORADID] = sp
	}

	p.logger.Infow("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	p.cache.Store(&propCache{props: props, fetchedAt: ds.FetchedAt})
	return props
}

// scanSatellite finds this satellite's passes on the coarse grid, then
// refines each pass on the fine grid. A pass lasts minutes, so the coarse
// grid cannot step over one; only the conjunction needs the fine grid.
func (p *Predictor) scanSatellite(ctx context.Context, entry tle.Entry, prop *propagator, coarse []time.Time, coarseGMST []float64, track TrackFunc) []Event {
	above := make([]bool, len(coarse))
	anyAbove := false
	for i, t := range coarse {
		if ctx.Err() != nil {
			return nil
		}
		x, y, z, err := prop.positionECEF(t, coarseGMST[i])
		if err != nil {
			continue
		}
		horiz, _ := p.obs.LookAngles(x, y, z)
		if horiz.ElDeg >= p.cfg.MinElDeg {
			above[i] = true
			anyAbove = true
		}
	}
	if !anyAbove {
		return nil
	}

	var events []Event
	i := 0
	for i < len(above) {
		if !above[i] {
			i++
			continue
		}
		j := i
		for j < len(above) && above[j] {
			j++
		}
		// Widen one coarse step past each edge so the rise and set of the
		// pass land inside the refinement window.
		wStart := coarse[max(i-1, 0)]
		wEnd := coarse[min(j, len(coarse)-1)]
		events = append(events, p.refinePass(ctx, entry, prop, wStart, wEnd, track)...)
		i = j
	}
	return events
}

// refinePass walks one pass at the fine step and collects the intervals
// where the satellite sits inside the alert radius.
func (p *Predictor) refinePass(ctx context.Context, entry tle.Entry, prop *propagator, start, end time.Time, track TrackFunc) []Event {
	fine := grid(start, end, p.cfg.FineStep)
	targetTrack, err := track(fine)
	if err != nil {
		p.logger.Warnw("target track lookup failed", "norad_id", entry.NORADID, "error", err)
		return nil
	}

	var events []Event
	var cur *Event
	for i, t := range fine {
		if ctx.Err() != nil {
			break
		}

		in := false
		var sep, rng float64
		var horiz astro.Horizontal
		x, y, z, err := prop.positionECEF(t, astro.GMST(t)*math.Pi/180)
		if err == nil {
			horiz, rng = p.obs.LookAngles(x, y, z)
			sep = astro.Separation(horiz, targetTrack[i])
			in = horiz.ElDeg >= p.cfg.MinElDeg && sep <= p.cfg.SeparationDeg
		}

		if in {
			if cur == nil {
				cur = &Event{
					NORADID:          entry.NORADID,
					Name:             entry.Name,
					Start:            t,
					ClosestTime:      t,
					MinSeparationDeg: sep,
					ElevationDeg:     horiz.ElDeg,
					RangeKm:          rng,
				}
			}
			cur.End = t
			if sep < cur.MinSeparationDeg {
				cur.MinSeparationDeg = sep
				cur.ClosestTime = t
				cur.ElevationDeg = horiz.ElDeg
				cur.RangeKm = rng
			}
		} else if cur != nil {
			events = append(events, *cur)
			cur = nil
		}
	}
	if cur != nil {
		events = append(events, *cur)
	}
	return events
}

// grid samples [start, end] inclusive at the given step, keeping end even
// when the last interval is partial.
func grid(start, end time.Time, step time.Duration) []time.Time {
	times := make([]time.Time, 0, int(end.Sub(start)/step)+2)
	for t := start; !t.After(end); t = t.Add(step) {
		times = append(times, t)
	}
	if times[len(times)-1].Before(end) {
		times = append(times, end)
	}
	return times
}
