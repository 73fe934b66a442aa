// Package ephemeris computes geocentric positions of solar-system bodies from
// compact analytic series: a low-precision solar series, a truncated lunar
// longitude/latitude series, and Keplerian mean elements for the major
// planets. Accuracy is a few arcminutes over roughly 1800–2050, which is well
// inside the tolerance of the transit and elevation searches built on top.
//
// All positions are returned in the mean equatorial frame of J2000.0; series
// that naturally produce equinox-of-date coordinates are precessed back
// before being handed out.
package ephemeris

import (
	"fmt"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/target"
)

// Body identifies a solar-system body with a built-in position model.
type Body int

const (
	Sun Body = iota
	Moon
	Mercury
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
)

var bodyNames = map[Body]string{
	Sun:     "sun",
	Moon:    "moon",
	Mercury: "mercury",
	Venus:   "venus",
	Mars:    "mars",
	Jupiter: "jupiter",
	Saturn:  "saturn",
	Uranus:  "uranus",
	Neptune: "neptune",
}

func (b Body) String() string {
	if n, ok := bodyNames[b]; ok {
		return n
	}
	return fmt.Sprintf("body(%d)", int(b))
}

// ParseBody resolves a case-insensitive body name. Unknown names fail with
// target.ErrInvalidTarget.
func ParseBody(name string) (Body, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for b, bn := range bodyNames {
		if bn == n {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown body %q", target.ErrInvalidTarget, name)
}

// Bodies lists the supported body names in a stable order.
func Bodies() []string {
	names := make([]string, 0, len(bodyNames))
	for b := Sun; b <= Neptune; b++ {
		names = append(names, bodyNames[b])
	}
	return names
}

type cacheKey struct {
	body Body
	nano int64
}

// Provider computes body positions with an LRU memo keyed by (body, instant).
// The searches re-sample overlapping windows at three resolutions, so repeat
// lookups are common. Safe for concurrent use.
type Provider struct {
	cache *lru.Cache[cacheKey, astro.Equatorial]
}

// NewProvider creates a Provider with the given cache capacity (entries).
func NewProvider(cacheSize int) (*Provider, error) {
	if cacheSize <= 0 {
		cacheSize = 16384
	}
	c, err := lru.New[cacheKey, astro.Equatorial](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating position cache: %w", err)
	}
	return &Provider{cache: c}, nil
}

// Positions returns the geocentric J2000 position of the body at each
// instant, one result per input time.
func (p *Provider) Positions(b Body, times []time.Time) ([]astro.Equatorial, error) {
	if _, ok := bodyNames[b]; !ok {
		return nil, fmt.Errorf("%w: unknown body %d", target.ErrInvalidTarget, int(b))
	}
	out := make([]astro.Equatorial, len(times))
	for i, t := range times {
		key := cacheKey{body: b, nano: t.UnixNano()}
		if eq, ok := p.cache.Get(key); ok {
			metrics.EphemerisCacheHit()
			out[i] = eq
			continue
		}
		metrics.EphemerisCacheMiss()
		eq := positionAt(b, t)
		p.cache.Add(key, eq)
		out[i] = eq
	}
	return out, nil
}

// Source returns a body-bound view of the provider satisfying
// target.PositionService.
func (p *Provider) Source(b Body) *Source {
	return &Source{body: b, provider: p}
}

// Source is a Provider fixed to one body.
type Source struct {
	body     Body
	provider *Provider
}

// Geocentric implements target.PositionService.
func (s *Source) Geocentric(times []time.Time) ([]astro.Equatorial, error) {
	return s.provider.Positions(s.body, times)
}

// positionAt dispatches to the per-body model. Sun and Moon series produce
// equinox-of-date coordinates and are precessed back to J2000; the planetary
// elements are J2000-referenced already.
func positionAt(b Body, t time.Time) astro.Equatorial {
	switch b {
	case Sun:
		return astro.PrecessToJ2000(sunPosition(t), t)
	case Moon:
		return astro.PrecessToJ2000(moonPosition(t), t)
	default:
		return planetPosition(b, t)
	}
}

// eclipticToEquatorial converts ecliptic longitude/latitude to RA/Dec for
// the given obliquity, all in degrees.
func eclipticToEquatorial(lonDeg, latDeg, epsDeg float64) astro.Equatorial {
	sinDec := astro.SinD(latDeg)*astro.CosD(epsDeg) +
		astro.CosD(latDeg)*astro.SinD(epsDeg)*astro.SinD(lonDeg)
	ra := atan2Deg(
		astro.SinD(lonDeg)*astro.CosD(epsDeg)-astro.TanD(latDeg)*astro.SinD(epsDeg),
		astro.CosD(lonDeg),
	)
	return astro.Equatorial{RADeg: astro.Normalize360(ra), DecDeg: asinDeg(sinDec)}
}

func atan2Deg(y, x float64) float64 {
	return math.Atan2(y, x) * 180 / math.Pi
}

func asinDeg(v float64) float64 {
	return math.Asin(math.Max(-1, math.Min(1, v))) * 180 / math.Pi
}
