package rfi

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// propagator wraps one satellite's SGP4 model. go-satellite calls log.Fatal
// on malformed input, so lines are validated before handing them over, and
// since Propagate hides the model's error codes, failures are detected by
// NaN and magnitude checks on the output.
type propagator struct {
	sat     satellite.Satellite
	noradID int
}

func newPropagator(line1, line2 string, noradID int) (*propagator, error) {
	if err := validateLines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &propagator{sat: sat, noradID: noradID}, nil
}

func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line 1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line 2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line 1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line 2 must start with '2', got %q", line2[0])
	}
	return nil
}

// positionECEF propagates to t and rotates the TEME output about the pole by
// the given GMST angle in radians. Polar motion and the equation of the
// equinoxes are ignored; the error is tens of meters. Returns ECEF meters.
func (p *propagator) positionECEF(t time.Time, gmstRad float64) (x, y, z float64, err error) {
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return 0, 0, 0, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	// Position magnitude for anything orbiting Earth sits between ~6200 km
	// and ~50000 km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200 || mag > 50000 {
		return 0, 0, 0, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable magnitude %.1f km", p.noradID, mag)
	}

	sinG, cosG := math.Sincos(gmstRad)
	x = (pos.X*cosG + pos.Y*sinG) * 1000
	y = (-pos.X*sinG + pos.Y*cosG) * 1000
	z = pos.Z * 1000
	return x, y, z, nil
}
