package target

import (
	"fmt"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
)

// Precision selects the sidereal-time algorithm a target's hour angle is
// derived with. It is fixed at construction; invalid values are rejected
// there, never at use time.
type Precision int

const (
	// PrecisionLow uses the closed-form linear sidereal approximation.
	PrecisionLow Precision = iota
	// PrecisionMean uses the IAU-82 mean sidereal time.
	PrecisionMean
	// PrecisionApparent adds the equation of the equinoxes on top of mean.
	PrecisionApparent
)

var precisionNames = map[Precision]string{
	PrecisionLow:      "low",
	PrecisionMean:     "mean",
	PrecisionApparent: "apparent",
}

func (p Precision) String() string {
	if n, ok := precisionNames[p]; ok {
		return n
	}
	return fmt.Sprintf("precision(%d)", int(p))
}

func (p Precision) valid() bool {
	_, ok := precisionNames[p]
	return ok
}

// ParsePrecision resolves one of "low", "mean", "apparent".
func ParsePrecision(s string) (Precision, error) {
	for p, n := range precisionNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown precision %q (want low, mean or apparent)", ErrInvalidArgument, s)
}

// Sidereal evaluates local sidereal time in degrees at the given instant and
// east longitude using this precision's algorithm.
func (p Precision) Sidereal(t time.Time, lonDeg float64) float64 {
	switch p {
	case PrecisionMean:
		return astro.MeanSidereal(t, lonDeg)
	case PrecisionApparent:
		return astro.ApparentSidereal(t, lonDeg)
	default:
		return astro.LowSidereal(t, lonDeg)
	}
}
