package astro

import "math"

// Elevation converts hour angle and declination to elevation above the
// horizon for an observer at the given latitude, all in degrees, via the
// spherical-triangle identity
//
//	sin(el) = sin(dec)·sin(lat) + cos(dec)·cos(lat)·cos(HA)
func Elevation(haDeg, decDeg, latDeg float64) float64 {
	sinEl := SinD(decDeg)*SinD(latDeg) + CosD(decDeg)*CosD(latDeg)*CosD(haDeg)
	sinEl = math.Max(-1, math.Min(1, sinEl))
	return math.Asin(sinEl) * 180 / math.Pi
}

// Azimuth converts hour angle and declination to azimuth (degrees from north
// through east) for an observer at the given latitude. The arc cosine of
//
//	cos(az) = (sin(dec) − sin(el)·sin(lat)) / (cos(el)·cos(lat))
//
// is two-fold ambiguous; the sign of sin(HA) resolves it: a target west of
// the meridian lies in the western half of the sky. Returns 0 at the zenith,
// where azimuth is undefined.
func Azimuth(haDeg, decDeg, latDeg float64) float64 {
	el := Elevation(haDeg, decDeg, latDeg)
	den := CosD(el) * CosD(latDeg)
	if den == 0 {
		return 0
	}
	cosAz := (SinD(decDeg) - SinD(el)*SinD(latDeg)) / den
	cosAz = math.Max(-1, math.Min(1, cosAz))
	az := math.Acos(cosAz) * 180 / math.Pi
	if SinD(haDeg) > 0 {
		az = 360 - az
	}
	return Normalize360(az)
}

// TransitElevation is the elevation at meridian transit, where the hour angle
// is zero and the general formula collapses to 90° − |lat − dec|.
func TransitElevation(latDeg, decDeg float64) float64 {
	return 90 - math.Abs(latDeg-decDeg)
}

// Separation returns the great-circle angle in degrees between two sky
// directions given in horizontal coordinates.
func Separation(a, b Horizontal) float64 {
	cosSep := SinD(a.ElDeg)*SinD(b.ElDeg) + CosD(a.ElDeg)*CosD(b.ElDeg)*CosD(a.AzDeg-b.AzDeg)
	cosSep = math.Max(-1, math.Min(1, cosSep))
	return math.Acos(cosSep) * 180 / math.Pi
}
