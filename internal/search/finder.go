package search

import (
	"fmt"
	"math"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/target"
)

// Transit is one meridian crossing: the instant the target's hour angle
// wraps through zero, with the closed-form elevation at that instant.
type Transit struct {
	Time         time.Time
	ElevationDeg float64
}

// Window is the interval around a transit during which the target stays at
// or above one elevation threshold. Never marks a target that stays below
// the threshold across the whole search window (Rise and Set are zero);
// Always marks one that never drops below it (Rise and Set are the exact
// window endpoints).
type Window struct {
	ThresholdDeg float64
	Rise         time.Time
	Set          time.Time
	Always       bool
	Never        bool
}

// Sample is one point of an elevation profile.
type Sample struct {
	Time         time.Time
	ElevationDeg float64
}

// Finder runs the event searches for one target observed from one site.
// It is immutable and safe for concurrent use.
type Finder struct {
	site astro.Site
	tgt  target.Target
}

// New validates the site and target and builds a Finder.
func New(site astro.Site, tgt target.Target) (*Finder, error) {
	if tgt == nil {
		return nil, fmt.Errorf("%w: nil target", target.ErrInvalidTarget)
	}
	if math.IsNaN(site.LatDeg) || site.LatDeg < -90 || site.LatDeg > 90 {
		return nil, fmt.Errorf("%w: site latitude %v", target.ErrInvalidArgument, site.LatDeg)
	}
	if math.IsNaN(site.LonDeg) || math.IsInf(site.LonDeg, 0) {
		return nil, fmt.Errorf("%w: site longitude %v", target.ErrInvalidArgument, site.LonDeg)
	}
	return &Finder{site: site, tgt: tgt}, nil
}

// Site returns the observing location the finder was built with.
func (f *Finder) Site() astro.Site { return f.site }

// Target returns the target the finder was built with.
func (f *Finder) Target() target.Target { return f.tgt }

// HourAngles evaluates the target's local hour angle in degrees at each
// instant, using the target's precision mode for sidereal time and the
// unprecessed source position, which keeps the signal smooth across the
// window. Every value lies in [0, 360).
func (f *Finder) HourAngles(times []time.Time) ([]float64, error) {
	pos, err := f.tgt.Positions(times, false)
	if err != nil {
		return nil, err
	}
	p := f.tgt.Precision()
	out := make([]float64, len(times))
	for i, t := range times {
		lst := p.Sidereal(t, f.site.LonDeg)
		out[i] = astro.HourAngle(lst, pos[i].RADeg)
	}
	return out, nil
}

// Elevations evaluates the target's elevation in degrees at each instant.
func (f *Finder) Elevations(times []time.Time) ([]float64, error) {
	pos, err := f.tgt.Positions(times, false)
	if err != nil {
		return nil, err
	}
	p := f.tgt.Precision()
	out := make([]float64, len(times))
	for i, t := range times {
		lst := p.Sidereal(t, f.site.LonDeg)
		ha := astro.HourAngle(lst, pos[i].RADeg)
		out[i] = astro.Elevation(ha, pos[i].DecDeg, f.site.LatDeg)
	}
	return out, nil
}

// Horizontal returns the target's topocentric azimuth and elevation at one
// instant.
func (f *Finder) Horizontal(t time.Time) (astro.Horizontal, error) {
	pos, err := f.tgt.Positions([]time.Time{t}, false)
	if err != nil {
		return astro.Horizontal{}, err
	}
	p := f.tgt.Precision()
	ha := astro.HourAngle(p.Sidereal(t, f.site.LonDeg), pos[0].RADeg)
	return astro.Horizontal{
		AzDeg: astro.Azimuth(ha, pos[0].DecDeg, f.site.LatDeg),
		ElDeg: astro.Elevation(ha, pos[0].DecDeg, f.site.LatDeg),
	}, nil
}

// Horizontals evaluates the target's topocentric azimuth and elevation at
// each instant.
func (f *Finder) Horizontals(times []time.Time) ([]astro.Horizontal, error) {
	pos, err := f.tgt.Positions(times, false)
	if err != nil {
		return nil, err
	}
	p := f.tgt.Precision()
	out := make([]astro.Horizontal, len(times))
	for i, t := range times {
		ha := astro.HourAngle(p.Sidereal(t, f.site.LonDeg), pos[i].RADeg)
		out[i] = astro.Horizontal{
			AzDeg: astro.Azimuth(ha, pos[i].DecDeg, f.site.LatDeg),
			ElDeg: astro.Elevation(ha, pos[i].DecDeg, f.site.LatDeg),
		}
	}
	return out, nil
}

// MeridianTransits locates every meridian transit inside [start, start+dur].
//
// The hour angle increases near-linearly and wraps from just under 360° back
// past 0° exactly at a transit, so the boundary marker is a downward jump
// between adjacent samples, not a sign change. The window is widened by the
// search margin on both sides to bracket transits at the very edges; after
// refinement only candidates inside the original window are kept.
func (f *Finder) MeridianTransits(start time.Time, dur time.Duration) ([]Transit, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("%w: zero start time", target.ErrInvalidArgument)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("%w: non-positive search duration %v", target.ErrInvalidArgument, dur)
	}
	t0 := time.Now()
	defer func() { metrics.ObserveSearch("transit", time.Since(t0)) }()

	lo := start.Add(-searchMargin)
	hi := start.Add(dur).Add(searchMargin)

	wrap := func(a, b float64) bool { return b-a < 0 }
	events, err := refine(f.HourAngles, wrap, lo, hi, transitSteps)
	if err != nil {
		return nil, err
	}

	end := start.Add(dur)
	var out []Transit
	for _, ev := range events {
		if ev.Before(start) || ev.After(end) {
			continue
		}
		el, err := f.TransitElevationAt(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, Transit{Time: ev, ElevationDeg: el})
	}
	return out, nil
}

// TransitElevationAt returns the elevation at a meridian transit instant.
// At transit the hour angle is zero and the general formula collapses to
// the closed form 90° − |lat − dec|; no search is involved.
func (f *Finder) TransitElevationAt(t time.Time) (float64, error) {
	if t.IsZero() {
		return 0, fmt.Errorf("%w: zero transit time", target.ErrInvalidArgument)
	}
	pos, err := f.tgt.Positions([]time.Time{t}, false)
	if err != nil {
		return 0, err
	}
	return astro.TransitElevation(f.site.LatDeg, pos[0].DecDeg), nil
}

// ElevationWindows brackets, for each requested threshold, the interval
// around the given transit during which the target is at or above that
// threshold. The search window is dur wide, centered on the transit. One
// coarse elevation scan is shared by all thresholds; each coarse crossing is
// refined independently through the finer resolutions, and the rise/set pair
// bracketing the transit is reported.
func (f *Finder) ElevationWindows(center time.Time, thresholds []float64, dur time.Duration) ([]Window, error) {
	if center.IsZero() {
		return nil, fmt.Errorf("%w: zero transit time", target.ErrInvalidArgument)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("%w: non-positive window duration %v", target.ErrInvalidArgument, dur)
	}
	for _, v := range thresholds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite elevation threshold", target.ErrInvalidArgument)
		}
	}
	t0 := time.Now()
	defer func() { metrics.ObserveSearch("elevation", time.Since(t0)) }()

	lo := center.Add(-dur / 2)
	hi := center.Add(dur / 2)

	times := sampleTimes(lo, hi, elevationSteps[0])
	vals, err := f.Elevations(times)
	if err != nil {
		return nil, err
	}

	out := make([]Window, len(thresholds))
	for i, v := range thresholds {
		w, err := f.windowForThreshold(times, vals, v, lo, hi, center)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// windowForThreshold classifies one threshold against the shared coarse scan
// and refines its crossings.
func (f *Finder) windowForThreshold(times []time.Time, vals []float64, v float64, lo, hi, center time.Time) (Window, error) {
	w := Window{ThresholdDeg: v}

	above, below := false, false
	for _, e := range vals {
		if e >= v {
			above = true
		} else {
			below = true
		}
	}
	switch {
	case !above:
		w.Never = true
		return w, nil
	case !below:
		w.Always = true
		w.Rise, w.Set = lo, hi
		return w, nil
	}

	crosses := func(a, b float64) bool {
		return (a <= v && b >= v) || (a >= v && b <= v)
	}

	// Coarse crossings, classified by direction before refinement.
	var ups, downs []bracket
	for i := 0; i+1 < len(times); i++ {
		a, b := vals[i], vals[i+1]
		if !crosses(a, b) {
			continue
		}
		if b >= a {
			ups = append(ups, bracket{times[i], times[i+1]})
		} else {
			downs = append(downs, bracket{times[i], times[i+1]})
		}
	}

	finer := elevationSteps[1:]
	upBr, err := refineBrackets(f.Elevations, crosses, ups, finer)
	if err != nil {
		return Window{}, err
	}
	downBr, err := refineBrackets(f.Elevations, crosses, downs, finer)
	if err != nil {
		return Window{}, err
	}
	upTimes := eventTimes(upBr, elevationSteps[2])
	downTimes := eventTimes(downBr, elevationSteps[2])

	w.Rise = pickRise(upTimes, center, lo, vals[0] >= v)
	w.Set = pickSet(downTimes, center, hi, vals[len(vals)-1] >= v)
	return w, nil
}

// pickRise selects the up-crossing bracketing the transit: the latest one at
// or before center. A target already above threshold at the window start
// rises at the window start itself.
func pickRise(ups []time.Time, center, lo time.Time, aboveAtStart bool) time.Time {
	var rise time.Time
	for _, t := range ups {
		if !t.After(center) && (rise.IsZero() || t.After(rise)) {
			rise = t
		}
	}
	if !rise.IsZero() {
		return rise
	}
	if aboveAtStart {
		return lo
	}
	if len(ups) > 0 {
		return ups[0]
	}
	return lo
}

// pickSet selects the down-crossing bracketing the transit: the earliest one
// at or after center. A target still above threshold at the window end sets
// at the window end itself.
func pickSet(downs []time.Time, center, hi time.Time, aboveAtEnd bool) time.Time {
	var set time.Time
	for _, t := range downs {
		if !t.Before(center) && (set.IsZero() || t.Before(set)) {
			set = t
		}
	}
	if !set.IsZero() {
		return set
	}
	if aboveAtEnd {
		return hi
	}
	if len(downs) > 0 {
		return downs[len(downs)-1]
	}
	return hi
}

// Profile samples elevation on a fixed grid symmetric around a transit. The
// sample count is forced odd so the transit instant is exactly the center
// sample; no searching is involved.
func (f *Finder) Profile(center time.Time, dur, step time.Duration) ([]Sample, error) {
	if center.IsZero() {
		return nil, fmt.Errorf("%w: zero transit time", target.ErrInvalidArgument)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("%w: non-positive profile duration %v", target.ErrInvalidArgument, dur)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: non-positive profile step %v", target.ErrInvalidArgument, step)
	}
	t0 := time.Now()
	defer func() { metrics.ObserveSearch("profile", time.Since(t0)) }()

	half := int(dur / 2 / step)
	times := make([]time.Time, 0, 2*half+1)
	for i := -half; i <= half; i++ {
		times = append(times, center.Add(time.Duration(i)*step))
	}
	els, err := f.Elevations(times)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, len(times))
	for i := range times {
		out[i] = Sample{Time: times[i], ElevationDeg: els[i]}
	}
	return out, nil
}
