package rfi

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidateLines(t *testing.T) {
	good1 := issEntry.Line1
	good2 := issEntry.Line2

	if err := validateLines(good1, good2); err != nil {
		t.Fatalf("valid lines rejected: %v", err)
	}
	if err := validateLines(good1[:68], good2); err == nil {
		t.Error("expected error for short line 1")
	}
	if err := validateLines(good1, good2+"X"); err == nil {
		t.Error("expected error for long line 2")
	}
	if err := validateLines("9"+good1[1:], good2); err == nil {
		t.Error("expected error for wrong line 1 prefix")
	}
	if err := validateLines(good1, "9"+good2[1:]); err == nil {
		t.Error("expected error for wrong line 2 prefix")
	}
}

func TestNewPropagator_BadLines(t *testing.T) {
	_, err := newPropagator("1 bogus", "2 bogus", 1)
	if err == nil {
		t.Fatal("expected error for malformed lines")
	}
	if !strings.Contains(err.Error(), "NORAD 1") {
		t.Errorf("error should name the satellite: %v", err)
	}
}

func TestPositionECEF_Magnitude(t *testing.T) {
	prop, err := newPropagator(issEntry.Line1, issEntry.Line2, issEntry.NORADID)
	if err != nil {
		t.Fatal(err)
	}

	// Near its epoch the ISS sits 6700-6900 km from the geocenter.
	at := issEntry.Epoch.Add(10 * time.Minute)
	x, y, z, err := prop.positionECEF(at, 0)
	if err != nil {
		t.Fatal(err)
	}
	mag := math.Sqrt(x*x+y*y+z*z) / 1000
	if mag < 6500 || mag > 7100 {
		t.Errorf("position magnitude = %.1f km, want LEO range", mag)
	}
}

func TestPositionECEF_GMSTRotatesAboutPole(t *testing.T) {
	prop, err := newPropagator(issEntry.Line1, issEntry.Line2, issEntry.NORADID)
	if err != nil {
		t.Fatal(err)
	}

	at := issEntry.Epoch.Add(10 * time.Minute)
	_, _, z0, err := prop.positionECEF(at, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _, z1, err := prop.positionECEF(at, math.Pi/3)
	if err != nil {
		t.Fatal(err)
	}

	// Rotating by GMST spins the equatorial plane; the polar component
	// cannot move.
	if math.Abs(z0-z1) > 1e-6 {
		t.Errorf("z changed under GMST rotation: %.6f vs %.6f", z0, z1)
	}
}
