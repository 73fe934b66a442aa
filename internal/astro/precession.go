package astro

import (
	"math"
	"time"
)

// mat3 is a 3×3 rotation matrix in row-major order.
type mat3 [3][3]float64

func (m mat3) mul(n mat3) mat3 {
	var r mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return r
}

func (m mat3) transpose() mat3 {
	var r mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

func (m mat3) apply(v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// rotZ is a right-handed rotation about the z axis by deg degrees.
func rotZ(deg float64) mat3 {
	s, c := SinD(deg), CosD(deg)
	return mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// rotY is a right-handed rotation about the y axis by deg degrees.
func rotY(deg float64) mat3 {
	s, c := SinD(deg), CosD(deg)
	return mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func unitVector(eq Equatorial) [3]float64 {
	cd := CosD(eq.DecDeg)
	return [3]float64{cd * CosD(eq.RADeg), cd * SinD(eq.RADeg), SinD(eq.DecDeg)}
}

func fromUnitVector(v [3]float64) Equatorial {
	ra := Normalize360(math.Atan2(v[1], v[0]) * 180 / math.Pi)
	dec := math.Asin(math.Max(-1, math.Min(1, v[2]))) * 180 / math.Pi
	return Equatorial{RADeg: ra, DecDeg: dec}
}

// precessionFromJ2000 builds the rotation taking mean-J2000.0 equatorial
// coordinates to the mean equinox of the given epoch, using the IAU-1976
// precession angles ζ, z, θ (Meeus, "Astronomical Algorithms", eq. 21.2):
//
//	ζ = 2306.2181t + 0.30188t² + 0.017998t³   [arcsec]
//	z = 2306.2181t + 1.09468t² + 0.018203t³
//	θ = 2004.3109t − 0.42665t² − 0.041833t³
//
// with t in Julian centuries from J2000.0. The matrix is Rz(z)·Ry(−θ)·Rz(ζ).
func precessionFromJ2000(epoch time.Time) mat3 {
	t := JulianCenturies(epoch)
	t2 := t * t
	t3 := t2 * t

	zeta := (2306.2181*t + 0.30188*t2 + 0.017998*t3) / 3600.0
	z := (2306.2181*t + 1.09468*t2 + 0.018203*t3) / 3600.0
	theta := (2004.3109*t - 0.42665*t2 - 0.041833*t3) / 3600.0

	return rotZ(z).mul(rotY(-theta)).mul(rotZ(zeta))
}

// Precess transforms an equatorial coordinate from the mean equinox of
// `from` to the mean equinox of `to`. Rotation matrices keep the transform
// exactly invertible: Precess(Precess(eq, a, b), b, a) returns eq up to
// floating-point noise.
func Precess(eq Equatorial, from, to time.Time) Equatorial {
	if from.Equal(to) {
		return eq
	}
	m := precessionFromJ2000(to).mul(precessionFromJ2000(from).transpose())
	return fromUnitVector(m.apply(unitVector(eq)))
}

// PrecessFromJ2000 transforms a mean-J2000.0 coordinate to the mean equinox
// of the given epoch.
func PrecessFromJ2000(eq Equatorial, to time.Time) Equatorial {
	return fromUnitVector(precessionFromJ2000(to).apply(unitVector(eq)))
}

// PrecessToJ2000 transforms a coordinate referred to the mean equinox of the
// given epoch back to mean J2000.0.
func PrecessToJ2000(eq Equatorial, from time.Time) Equatorial {
	return fromUnitVector(precessionFromJ2000(from).transpose().apply(unitVector(eq)))
}
