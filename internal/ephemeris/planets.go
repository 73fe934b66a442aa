package ephemeris

import (
	"math"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
)

// elements holds J2000 Keplerian mean elements and their per-century rates
// (JPL approximate-position tables, valid 1800–2050): semi-major axis in AU,
// eccentricity, inclination, mean longitude, longitude of perihelion and
// longitude of the ascending node in degrees.
type elements struct {
	a, aDot     float64
	e, eDot     float64
	i, iDot     float64
	l, lDot     float64
	pi, piDot   float64
	om, omDot   float64
}

// emBary is the Earth-Moon barycenter; it supplies the observer end of every
// geocentric planet vector and is not an observable body itself.
var emBary = elements{
	1.00000261, 0.00000562, 0.01671123, -0.00004392, -0.00001531, -0.01294668,
	100.46457166, 35999.37244981, 102.93768193, 0.32327364, 0.0, 0.0,
}

var planetElements = map[Body]elements{
	Mercury: {0.38709927, 0.00000037, 0.20563593, 0.00001906, 7.00497902, -0.00594749,
		252.25032350, 149472.67411175, 77.45779628, 0.16047689, 48.33076593, -0.12534081},
	Venus: {0.72333566, 0.00000390, 0.00677672, -0.00004107, 3.39467605, -0.00078890,
		181.97909950, 58517.81538729, 131.60246718, 0.00268329, 76.67984255, -0.27769418},
	Mars: {1.52371034, 0.00001847, 0.09339410, 0.00007882, 1.84969142, -0.00813131,
		-4.55343205, 19140.30268499, -23.94362959, 0.44441088, 49.55953891, -0.29257343},
	Jupiter: {5.20288700, -0.00011607, 0.04838624, -0.00013253, 1.30439695, -0.00183714,
		34.39644051, 3034.74612775, 14.72847983, 0.21252668, 100.47390909, 0.20469106},
	Saturn: {9.53667594, -0.00125060, 0.05386179, -0.00050991, 2.48599187, 0.00193609,
		49.95424423, 1222.49362201, 92.59887831, -0.41897216, 113.66242448, -0.28867794},
	Uranus: {19.18916464, -0.00196176, 0.04725744, -0.00004397, 0.77263783, -0.00242939,
		313.23810451, 428.48202785, 170.95427630, 0.40805281, 74.01692503, 0.04240589},
	Neptune: {30.06992276, 0.00026291, 0.00859048, 0.00005105, 1.77004347, 0.00035372,
		-55.12002969, 218.45945325, 44.96476227, -0.32241464, 131.78422574, -0.00508664},
}

// j2000Obliquity is the mean obliquity at J2000.0 in degrees; the elements
// are referenced to the J2000 ecliptic, so the equatorial output frame is
// mean J2000 directly.
const j2000Obliquity = 23.43928

// planetPosition returns the planet's geocentric RA/Dec in the mean J2000
// frame: heliocentric position from the mean elements minus the Earth-Moon
// barycenter position, rotated from the ecliptic to the equator.
func planetPosition(b Body, t time.Time) astro.Equatorial {
	T := astro.JulianCenturies(t)

	px, py, pz := heliocentric(planetElements[b], T)
	ex, ey, ez := heliocentric(emBary, T)

	// Geocentric ecliptic vector.
	x, y, z := px-ex, py-ey, pz-ez

	// Ecliptic to equatorial.
	xe := x
	ye := y*astro.CosD(j2000Obliquity) - z*astro.SinD(j2000Obliquity)
	ze := y*astro.SinD(j2000Obliquity) + z*astro.CosD(j2000Obliquity)

	r := math.Sqrt(xe*xe + ye*ye + ze*ze)
	return astro.Equatorial{
		RADeg:  astro.Normalize360(atan2Deg(ye, xe)),
		DecDeg: asinDeg(ze / r),
	}
}

// heliocentric computes the body's heliocentric ecliptic position in AU at T
// Julian centuries from J2000.
func heliocentric(el elements, T float64) (x, y, z float64) {
	a := el.a + el.aDot*T
	e := el.e + el.eDot*T
	inc := el.i + el.iDot*T
	l := el.l + el.lDot*T
	lonPeri := el.pi + el.piDot*T
	lonNode := el.om + el.omDot*T

	argPeri := lonPeri - lonNode
	m := astro.Normalize360(l-lonPeri) // mean anomaly

	ea := solveKepler(m, e)

	// Position in the orbital plane, perihelion along +x.
	xp := a * (astro.CosD(ea) - e)
	yp := a * math.Sqrt(1-e*e) * astro.SinD(ea)

	cw, sw := astro.CosD(argPeri), astro.SinD(argPeri)
	co, so := astro.CosD(lonNode), astro.SinD(lonNode)
	ci, si := astro.CosD(inc), astro.SinD(inc)

	x = (cw*co-sw*so*ci)*xp + (-sw*co-cw*so*ci)*yp
	y = (cw*so+sw*co*ci)*xp + (-sw*so+cw*co*ci)*yp
	z = sw*si*xp + cw*si*yp
	return x, y, z
}

// solveKepler solves M = E − e·sin E for the eccentric anomaly by Newton
// iteration, all angles in degrees. Converges in a handful of steps for
// planetary eccentricities; the iteration cap only guards against NaN input.
func solveKepler(mDeg, e float64) float64 {
	eDeg := e * 180 / math.Pi
	ea := mDeg + eDeg*astro.SinD(mDeg)
	for i := 0; i < 100; i++ {
		dm := mDeg - (ea - eDeg*astro.SinD(ea))
		de := dm / (1 - e*astro.CosD(ea))
		ea += de
		if math.Abs(de) < 1e-8 {
			break
		}
	}
	return ea
}
