// Package search implements the multi-resolution temporal root finder: a
// slowly varying angular signal (hour angle or elevation) is sampled over a
// window at a coarse step, each sample interval a boundary detector fires on
// is re-sampled at the next finer step, and after three passes the event
// instant is read off the finest bracketing interval.
//
// The core is synchronous and carries no cancellation: its cost is bounded
// and statically predictable from the window width and the step schedule, so
// callers needing deadlines impose them outside.
package search

import (
	"fmt"
	"time"
)

// Steps is a coarse-to-fine sampling schedule. Exactly three resolutions are
// used; the values are chosen slightly off round numbers so sample grids do
// not alias against whole-minute or whole-hour signal features.
type Steps [3]time.Duration

var (
	// transitSteps brackets hour-angle wraps down to one second.
	transitSteps = Steps{1799 * time.Second, 59 * time.Second, time.Second}

	// elevationSteps brackets threshold crossings down to a minute, which
	// matches how slowly elevation moves near a crossing.
	elevationSteps = Steps{3601 * time.Second, 599 * time.Second, 59 * time.Second}
)

// searchMargin widens a transit search window on both sides so events right
// at the requested boundary are still bracketed; candidates outside the
// original window are dropped after refinement.
const searchMargin = 3601 * time.Second

// Series evaluates the scalar search signal at a batch of instants, one
// value per input time.
type Series func(times []time.Time) ([]float64, error)

// Marker reports whether an event lies between two adjacent samples.
type Marker func(a, b float64) bool

// bracket is one sample interval known to contain an event.
type bracket struct {
	lo, hi time.Time
}

// refine runs the full coarse-to-fine search over [lo, hi] and returns the
// event instants, each centered in its finest bracket.
func refine(series Series, marker Marker, lo, hi time.Time, steps Steps) ([]time.Time, error) {
	brackets, err := scan(series, marker, bracket{lo, hi}, steps[0])
	if err != nil {
		return nil, err
	}
	brackets, err = refineBrackets(series, marker, brackets, steps[1:])
	if err != nil {
		return nil, err
	}
	return eventTimes(brackets, steps[len(steps)-1]), nil
}

// refineBrackets narrows already-located brackets through the remaining
// steps. Each input bracket is refined independently; a bracket whose event
// is lost at a finer resolution (the marker never fires again) drops out.
func refineBrackets(series Series, marker Marker, brackets []bracket, steps []time.Duration) ([]bracket, error) {
	for _, step := range steps {
		var next []bracket
		for _, b := range brackets {
			found, err := scan(series, marker, b, step)
			if err != nil {
				return nil, err
			}
			next = append(next, found...)
		}
		brackets = next
		if len(brackets) == 0 {
			break
		}
	}
	return brackets, nil
}

// scan samples one bracket at the given step and returns every adjacent
// sample pair the marker fires on.
func scan(series Series, marker Marker, b bracket, step time.Duration) ([]bracket, error) {
	times := sampleTimes(b.lo, b.hi, step)
	if len(times) < 2 {
		return nil, nil
	}
	vals, err := series(times)
	if err != nil {
		return nil, err
	}
	if len(vals) != len(times) {
		return nil, fmt.Errorf("series returned %d values for %d times", len(vals), len(times))
	}
	var out []bracket
	for i := 0; i+1 < len(times); i++ {
		if marker(vals[i], vals[i+1]) {
			out = append(out, bracket{lo: times[i], hi: times[i+1]})
		}
	}
	return out, nil
}

// sampleTimes returns lo, lo+step, ... up to hi. When the span is not a
// whole number of steps, hi itself is appended so the trailing partial
// interval is still scanned.
func sampleTimes(lo, hi time.Time, step time.Duration) []time.Time {
	if !lo.Before(hi) {
		return []time.Time{lo}
	}
	out := make([]time.Time, 0, int(hi.Sub(lo)/step)+2)
	for t := lo; !t.After(hi); t = t.Add(step) {
		out = append(out, t)
	}
	if out[len(out)-1].Before(hi) {
		out = append(out, hi)
	}
	return out
}

// eventTimes reads the event instant off each finest bracket: the lower edge
// plus half the finest step, centering the estimate in the interval.
func eventTimes(brackets []bracket, fine time.Duration) []time.Time {
	if len(brackets) == 0 {
		return nil
	}
	out := make([]time.Time, len(brackets))
	for i, b := range brackets {
		out[i] = b.lo.Add(fine / 2)
	}
	return out
}
