package ephemeris

import (
	"time"

	"github.com/lowfreq/meridian/internal/astro"
)

// sunPosition returns the Sun's geocentric RA/Dec, equinox of date, from the
// standard low-precision solar model (mean anomaly + equation of center),
// good to arcminute level:
//
//	g = 357.529 + 0.98560028·d      mean anomaly
//	q = 280.459 + 0.98564736·d      mean longitude
//	λ = q + 1.915·sin g + 0.020·sin 2g
//	ε = 23.439 − 0.00000036·d
func sunPosition(t time.Time) astro.Equatorial {
	d := astro.DaysSinceJ2000(t)

	g := astro.Normalize360(357.529 + 0.98560028*d)
	q := astro.Normalize360(280.459 + 0.98564736*d)
	lon := q + 1.915*astro.SinD(g) + 0.020*astro.SinD(2*g)
	eps := 23.439 - 0.00000036*d

	return eclipticToEquatorial(lon, 0, eps)
}
