// Package rfi predicts satellite interference with scheduled observations:
// it propagates every satellite in the active TLE set across an observation
// window and reports the intervals where one tracks within a configured
// angular radius of the target's sky path.
package rfi

import (
	"math"

	"github.com/lowfreq/meridian/internal/astro"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Observer is a ground station with its ECEF position precomputed once so it
// can be reused across many satellite lookups.
type Observer struct {
	latRad, lonRad float64
	x, y, z        float64 // ECEF meters
}

// NewObserver places the site on the WGS-84 ellipsoid.
func NewObserver(site astro.Site) Observer {
	lat := site.LatDeg * math.Pi / 180
	lon := site.LonDeg * math.Pi / 180

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		latRad: lat,
		lonRad: lon,
		x:      (n + site.HeightM) * cosLat * cosLon,
		y:      (n + site.HeightM) * cosLat * sinLon,
		z:      (n*(1-wgs84E2) + site.HeightM) * sinLat,
	}
}

// LookAngles rotates the observer-to-satellite vector into the SEZ frame
// (Vallado section 4.4) and returns the sky direction plus range in km.
// Input is the satellite ECEF position in meters. Azimuth runs from north
// through east; north is -South in SEZ, so az = atan2(east, -south).
func (o Observer) LookAngles(satX, satY, satZ float64) (astro.Horizontal, float64) {
	rx := satX - o.x
	ry := satY - o.y
	rz := satZ - o.z

	sinLat, cosLat := math.Sincos(o.latRad)
	sinLon, cosLon := math.Sincos(o.lonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	el := math.Asin(zenith/rng) * 180 / math.Pi
	az := math.Atan2(east, -south) * 180 / math.Pi
	if az < 0 {
		az += 360
	}

	return astro.Horizontal{AzDeg: az, ElDeg: el}, rng / 1000
}
