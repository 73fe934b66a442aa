// Package astro implements the time-scale, sidereal-time, reference-frame and
// horizontal-coordinate computations the event finder is built on.
//
// All public angles are in degrees. Hour angle and sidereal time are kept in
// [0, 360); declination and elevation in [-90, 90]. Conversions use UTC as an
// approximation of UT1/TT, which is consistent with the precision class of the
// algorithms implemented here (seconds of time, fractions of a degree).
package astro

import "math"

// Equatorial is a position on the celestial sphere, in degrees.
type Equatorial struct {
	RADeg  float64
	DecDeg float64
}

// Horizontal is a topocentric direction, in degrees. Azimuth is measured from
// north through east.
type Horizontal struct {
	AzDeg float64
	ElDeg float64
}

// Site is a fixed geographic observing location. Longitude is positive east.
type Site struct {
	LatDeg  float64
	LonDeg  float64
	HeightM float64
}

// SinD returns the sine of an angle given in degrees.
func SinD(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }

// CosD returns the cosine of an angle given in degrees.
func CosD(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

// TanD returns the tangent of an angle given in degrees.
func TanD(deg float64) float64 { return math.Tan(deg * math.Pi / 180) }

// Normalize360 reduces an angle in degrees to [0, 360).
func Normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Normalize24 reduces a value in hours to [0, 24).
func Normalize24(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}
