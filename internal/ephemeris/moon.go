package ephemeris

import (
	"time"

	"github.com/lowfreq/meridian/internal/astro"
)

// moonPosition returns the Moon's geocentric RA/Dec, equinox of date, from a
// truncated periodic series over the five fundamental lunar arguments. The
// dominant terms kept here (six in longitude, four in latitude) give a few
// arcminutes of accuracy, enough for scheduling decisions though not for
// occultation work.
func moonPosition(t time.Time) astro.Equatorial {
	d := astro.DaysSinceJ2000(t)

	lp := astro.Normalize360(218.3164477 + 13.17639648*d) // mean longitude
	m := astro.Normalize360(357.5291092 + 0.98560028*d)   // solar mean anomaly
	mm := astro.Normalize360(134.9633964 + 13.06499295*d) // lunar mean anomaly
	el := astro.Normalize360(297.8501921 + 12.19074912*d) // elongation from the Sun
	f := astro.Normalize360(93.2720950 + 13.22935024*d)   // argument of latitude

	lon := lp +
		6.289*astro.SinD(mm) +
		1.274*astro.SinD(2*el-mm) +
		0.658*astro.SinD(2*el) +
		0.214*astro.SinD(2*mm) -
		0.186*astro.SinD(m) -
		0.114*astro.SinD(2*f)

	lat := 5.128*astro.SinD(f) +
		0.280*astro.SinD(mm+f) +
		0.277*astro.SinD(mm-f) +
		0.173*astro.SinD(2*el-f)

	eps := 23.439 - 0.00000036*d

	return eclipticToEquatorial(lon, lat, eps)
}
