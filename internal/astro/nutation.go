package astro

import "time"

// Nutation returns the nutation in longitude Δψ and in obliquity Δε, both in
// degrees, from the four dominant terms of the IAU-1980 series (Meeus,
// "Astronomical Algorithms", ch. 22, low-accuracy form). Accurate to about
// 0.5″ in Δψ and 0.1″ in Δε.
func Nutation(t time.Time) (dpsiDeg, depsDeg float64) {
	T := JulianCenturies(t)

	// Longitude of the ascending node of the Moon's mean orbit.
	omega := 125.04452 - 1934.136261*T
	// Mean longitudes of the Sun and of the Moon.
	ls := 280.4665 + 36000.7698*T
	lm := 218.3165 + 481267.8813*T

	dpsiArc := -17.20*SinD(omega) - 1.32*SinD(2*ls) - 0.23*SinD(2*lm) + 0.21*SinD(2*omega)
	depsArc := 9.20*CosD(omega) + 0.57*CosD(2*ls) + 0.10*CosD(2*lm) - 0.09*CosD(2*omega)

	return dpsiArc / 3600.0, depsArc / 3600.0
}

// MeanObliquity returns the mean obliquity of the ecliptic in degrees
// (IAU-1976 polynomial, Meeus eq. 22.2).
func MeanObliquity(t time.Time) float64 {
	T := JulianCenturies(t)
	return 23.0 + 26.0/60.0 + 21.448/3600.0 -
		(46.8150*T+0.00059*T*T-0.001813*T*T*T)/3600.0
}

// TrueObliquity returns the true obliquity of the ecliptic in degrees,
// the mean obliquity corrected by the nutation in obliquity.
func TrueObliquity(t time.Time) float64 {
	_, deps := Nutation(t)
	return MeanObliquity(t) + deps
}

// EquationOfEquinoxes returns the correction from mean to apparent sidereal
// time, Δψ·cos ε, in degrees.
func EquationOfEquinoxes(t time.Time) float64 {
	dpsi, _ := Nutation(t)
	return dpsi * CosD(TrueObliquity(t))
}
