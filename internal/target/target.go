// Package target abstracts "where is the thing I am pointing at" for the
// event searches: a Target yields apparent equatorial positions for a batch
// of instants, regardless of whether it is a fixed catalog coordinate or a
// moving solar-system body.
package target

import (
	"fmt"
	"math"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
)

// Target is the position contract the transit and elevation searches operate
// on. Positions returns one equatorial coordinate per input time. With
// precess=true all returned coordinates are transformed to the mean equinox
// of the first input time; the whole batch shares that single equinox, a
// deliberate cheap approximation rather than per-instant precession.
//
// Implementations are immutable after construction and safe for concurrent
// searches.
type Target interface {
	Name() string
	Precision() Precision
	Positions(times []time.Time, precess bool) ([]astro.Equatorial, error)
}

// PositionService supplies geocentric positions of one solar-system body in
// the mean J2000 frame, one per input time.
type PositionService interface {
	Geocentric(times []time.Time) ([]astro.Equatorial, error)
}

// Catalog is a fixed sidereal source with a mean-J2000 coordinate.
type Catalog struct {
	name      string
	coord     astro.Equatorial
	precision Precision
}

// NewCatalog validates and builds a fixed-coordinate target. The coordinate
// is taken as mean J2000; right ascension is normalized into [0, 360),
// declination must lie in [-90, 90] and both must be finite.
func NewCatalog(name string, raDeg, decDeg float64, p Precision) (*Catalog, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: precision %d", ErrInvalidArgument, int(p))
	}
	if math.IsNaN(raDeg) || math.IsInf(raDeg, 0) || math.IsNaN(decDeg) || math.IsInf(decDeg, 0) {
		return nil, fmt.Errorf("%w: non-finite coordinate (ra=%v dec=%v)", ErrInvalidTarget, raDeg, decDeg)
	}
	if decDeg < -90 || decDeg > 90 {
		return nil, fmt.Errorf("%w: declination %v outside [-90, 90]", ErrInvalidTarget, decDeg)
	}
	if name == "" {
		name = fmt.Sprintf("ra%.4f dec%+.4f", astro.Normalize360(raDeg), decDeg)
	}
	return &Catalog{
		name:      name,
		coord:     astro.Equatorial{RADeg: astro.Normalize360(raDeg), DecDeg: decDeg},
		precision: p,
	}, nil
}

func (c *Catalog) Name() string         { return c.name }
func (c *Catalog) Precision() Precision { return c.precision }

// Coordinate returns the fixed J2000 position.
func (c *Catalog) Coordinate() astro.Equatorial { return c.coord }

// Positions broadcasts the fixed coordinate over the batch, optionally
// precessed once to the equinox of the first instant.
func (c *Catalog) Positions(times []time.Time, precess bool) ([]astro.Equatorial, error) {
	out := make([]astro.Equatorial, len(times))
	if len(times) == 0 {
		return out, nil
	}
	eq := c.coord
	if precess {
		eq = astro.PrecessFromJ2000(eq, times[0])
	}
	for i := range out {
		out[i] = eq
	}
	return out, nil
}

// Ephemeris is a solar-system body whose position is looked up per instant
// through a PositionService.
type Ephemeris struct {
	name      string
	service   PositionService
	precision Precision
}

// NewEphemeris builds a moving target backed by the given position service.
func NewEphemeris(name string, svc PositionService, p Precision) (*Ephemeris, error) {
	if !p.valid() {
		return nil, fmt.Errorf("%w: precision %d", ErrInvalidArgument, int(p))
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: nil position service for %q", ErrInvalidTarget, name)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty body name", ErrInvalidTarget)
	}
	return &Ephemeris{name: name, service: svc, precision: p}, nil
}

func (e *Ephemeris) Name() string         { return e.name }
func (e *Ephemeris) Precision() Precision { return e.precision }

// Positions looks up the body per instant, applying the same single-equinox
// rule as Catalog when precess is requested.
func (e *Ephemeris) Positions(times []time.Time, precess bool) ([]astro.Equatorial, error) {
	out, err := e.service.Geocentric(times)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", e.name, err)
	}
	if len(out) != len(times) {
		return nil, fmt.Errorf("looking up %s: got %d positions for %d times", e.name, len(out), len(times))
	}
	if precess && len(times) > 0 {
		for i := range out {
			out[i] = astro.PrecessFromJ2000(out[i], times[0])
		}
	}
	return out, nil
}
