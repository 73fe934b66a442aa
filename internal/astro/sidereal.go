package astro

import (
	"math"
	"time"
)

// GMST calculates Greenwich Mean Sidereal Time in degrees for a given UTC time.
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
func GMST(t time.Time) float64 {
	tUT1 := JulianCenturies(t)

	// GMST in seconds of time.
	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	// Normalize to [0, 86400) seconds of time, then convert to degrees.
	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 240.0
}

// LowSidereal returns local mean sidereal time in degrees using the
// closed-form linear approximation
//
//	GMST_h = 18.697374558 + 24.06570982441908 × (JD − 2451545.0)
//
// reduced modulo 24 hours, plus the east longitude converted to hours. Good
// to a few seconds of time over several centuries, with no frame machinery.
func LowSidereal(t time.Time, lonDeg float64) float64 {
	gstH := 18.697374558 + 24.06570982441908*DaysSinceJ2000(t)
	lstH := Normalize24(Normalize24(gstH) + lonDeg/15.0)
	return lstH * 15.0
}

// MeanSidereal returns local mean sidereal time in degrees from the IAU-82
// GMST model and the site's east longitude.
func MeanSidereal(t time.Time, lonDeg float64) float64 {
	return Normalize360(GMST(t) + lonDeg)
}

// ApparentSidereal returns local apparent sidereal time in degrees: mean
// sidereal time corrected by the equation of the equinoxes.
func ApparentSidereal(t time.Time, lonDeg float64) float64 {
	return Normalize360(MeanSidereal(t, lonDeg) + EquationOfEquinoxes(t))
}

// HourAngle derives the local hour angle in degrees from a local sidereal
// time and a right ascension, both in degrees. The difference is brought into
// [0, 360) by a single ±360° correction; inputs are expected to be already
// normalized so one correction always suffices.
func HourAngle(lstDeg, raDeg float64) float64 {
	ha := lstDeg - raDeg
	if ha < 0 {
		ha += 360
	} else if ha >= 360 {
		ha -= 360
	}
	return ha
}
