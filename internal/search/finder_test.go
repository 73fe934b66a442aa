package search

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/ephemeris"
	"github.com/lowfreq/meridian/internal/target"
)

// The station site and Taurus A, the fixed bright source used across these
// tests. Its declination is well south of the site latitude, so it transits
// at 90 − |lat − dec| ≈ 64.64° and spends hours below any mid-sky threshold.
var (
	testSite = astro.Site{LatDeg: 47.376511, LonDeg: 2.192400, HeightM: 150}

	tauARA  = 83.633083
	tauADec = 22.0145

	searchStart = time.Date(2020, 9, 9, 0, 0, 0, 0, time.UTC)
)

func tauAFinder(t *testing.T, p target.Precision) *Finder {
	t.Helper()
	tgt, err := target.NewCatalog("Tau A", tauARA, tauADec, p)
	require.NoError(t, err)
	f, err := New(testSite, tgt)
	require.NoError(t, err)
	return f
}

func TestMeridianTransits_SingleTransitIn24h(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)

	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 1, "a fixed source transits exactly once per 24 h window")

	tr := transits[0]
	assert.False(t, tr.Time.Before(searchStart))
	assert.False(t, tr.Time.After(searchStart.Add(24*time.Hour)))

	// Elevation at transit follows the closed form.
	want := 90 - (testSite.LatDeg - tauADec)
	assert.InDelta(t, want, tr.ElevationDeg, 1e-9)
	assert.InDelta(t, 64.638, tr.ElevationDeg, 1e-3)

	// The hour angle at the reported instant is within the fine-step
	// tolerance of the wrap.
	has, err := f.HourAngles([]time.Time{tr.Time})
	require.NoError(t, err)
	ha := has[0]
	assert.Less(t, math.Min(ha, 360-ha), 0.05, "hour angle at transit = %v", ha)
}

func TestMeridianTransits_SiderealDaySpacing(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)

	transits, err := f.MeridianTransits(searchStart, 48*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 2, "a 48 h window holds exactly two transits")

	spacing := transits[1].Time.Sub(transits[0].Time)
	siderealDay := 23*time.Hour + 56*time.Minute + 4*time.Second
	assert.LessOrEqual(t, (spacing - siderealDay).Abs(), 3*time.Second,
		"transits %v apart, want one sidereal day", spacing)
}

func TestMeridianTransits_PrecisionModesAgree(t *testing.T) {
	// The three sidereal algorithms differ by well under a second of time
	// in this era; each must find the same single transit.
	var times []time.Time
	for _, p := range []target.Precision{target.PrecisionLow, target.PrecisionMean, target.PrecisionApparent} {
		f := tauAFinder(t, p)
		transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
		require.NoError(t, err)
		require.Len(t, transits, 1, "precision %v", p)
		times = append(times, transits[0].Time)
	}
	for _, tt := range times[1:] {
		assert.LessOrEqual(t, tt.Sub(times[0]).Abs(), 5*time.Second)
	}
}

func TestMeridianTransits_ZenithTarget(t *testing.T) {
	// A declination equal to the site latitude culminates at the zenith.
	tgt, err := target.NewCatalog("overhead", 150, testSite.LatDeg, target.PrecisionMean)
	require.NoError(t, err)
	f, err := New(testSite, tgt)
	require.NoError(t, err)

	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 1)
	assert.InDelta(t, 90.0, transits[0].ElevationDeg, 1e-9)
}

func TestTransitElevation_MatchesSampledElevation(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)

	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 1)

	closed, err := f.TransitElevationAt(transits[0].Time)
	require.NoError(t, err)
	sampled, err := f.Elevations([]time.Time{transits[0].Time})
	require.NoError(t, err)
	assert.InDelta(t, closed, sampled[0], 1e-3)
}

func TestElevationWindows_RiseAndSet(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)
	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 1)
	center := transits[0].Time

	windows, err := f.ElevationWindows(center, []float64{0, 40}, 20*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	for _, w := range windows {
		assert.False(t, w.Never, "threshold %v", w.ThresholdDeg)
		assert.False(t, w.Always, "threshold %v", w.ThresholdDeg)
		assert.True(t, w.Rise.Before(center), "rise %v before transit %v", w.Rise, center)
		assert.True(t, w.Set.After(center), "set %v after transit %v", w.Set, center)

		// The signal sits at the threshold at both refined edges, within
		// the elevation the source moves during half a fine step.
		els, err := f.Elevations([]time.Time{w.Rise, w.Set})
		require.NoError(t, err)
		assert.InDelta(t, w.ThresholdDeg, els[0], 0.3, "elevation at rise")
		assert.InDelta(t, w.ThresholdDeg, els[1], 0.3, "elevation at set")
	}

	// The higher threshold's window nests strictly inside the lower one's.
	assert.True(t, windows[0].Rise.Before(windows[1].Rise))
	assert.True(t, windows[1].Set.Before(windows[0].Set))
}

func TestElevationWindows_AlwaysAbove(t *testing.T) {
	// Querying far below the target's minimum elevation: the bracket is the
	// exact pair of window endpoints.
	f := tauAFinder(t, target.PrecisionApparent)
	center := searchStart.Add(6 * time.Hour)
	dur := 12 * time.Hour

	windows, err := f.ElevationWindows(center, []float64{-85}, dur)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.True(t, w.Always)
	assert.False(t, w.Never)
	assert.True(t, w.Rise.Equal(center.Add(-dur/2)), "rise %v, want exact window start", w.Rise)
	assert.True(t, w.Set.Equal(center.Add(dur/2)), "set %v, want exact window end", w.Set)
}

func TestElevationWindows_NeverAbove(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)
	center := searchStart.Add(6 * time.Hour)

	windows, err := f.ElevationWindows(center, []float64{80}, 12*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.True(t, w.Never)
	assert.False(t, w.Always)
	assert.True(t, w.Rise.IsZero())
	assert.True(t, w.Set.IsZero())
}

func TestProfile_CenteredOddGrid(t *testing.T) {
	f := tauAFinder(t, target.PrecisionApparent)
	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	center := transits[0].Time

	samples, err := f.Profile(center, 2*time.Hour, time.Minute)
	require.NoError(t, err)
	require.Len(t, samples, 121)

	mid := len(samples) / 2
	assert.True(t, samples[mid].Time.Equal(center), "center sample is the transit instant")

	// The transit is the elevation maximum of the profile, and feeding the
	// profile's transit back into the closed form reproduces it.
	maxEl, maxIdx := math.Inf(-1), -1
	for i, s := range samples {
		if s.ElevationDeg > maxEl {
			maxEl, maxIdx = s.ElevationDeg, i
		}
	}
	assert.Equal(t, mid, maxIdx)

	closed, err := f.TransitElevationAt(center)
	require.NoError(t, err)
	assert.InDelta(t, closed, maxEl, 1e-3)
}

func TestProfile_OddCountForUnevenSpan(t *testing.T) {
	f := tauAFinder(t, target.PrecisionMean)
	samples, err := f.Profile(searchStart.Add(6*time.Hour), 2*time.Hour, 7*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, len(samples)%2, "sample count must be odd, got %d", len(samples))
	assert.Len(t, samples, 17)
}

func TestHourAngles_RangeInvariant(t *testing.T) {
	f := tauAFinder(t, target.PrecisionLow)
	var times []time.Time
	for i := 0; i < 96; i++ {
		times = append(times, searchStart.Add(time.Duration(i)*30*time.Minute))
	}
	has, err := f.HourAngles(times)
	require.NoError(t, err)
	for i, ha := range has {
		assert.GreaterOrEqual(t, ha, 0.0, "sample %d", i)
		assert.Less(t, ha, 360.0, "sample %d", i)
	}
}

func TestMeridianTransits_SunTarget(t *testing.T) {
	provider, err := ephemeris.NewProvider(0)
	require.NoError(t, err)
	body, err := ephemeris.ParseBody("sun")
	require.NoError(t, err)
	tgt, err := target.NewEphemeris("sun", provider.Source(body), target.PrecisionApparent)
	require.NoError(t, err)
	f, err := New(testSite, tgt)
	require.NoError(t, err)

	transits, err := f.MeridianTransits(searchStart, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, transits, 1, "the Sun transits once per day")

	// Local apparent noon at 2.19° E in early September falls a little
	// before 11:51 UTC (longitude offset plus equation of time).
	tr := transits[0].Time
	assert.True(t, tr.After(searchStart.Add(11*time.Hour+30*time.Minute)), "sun transit at %v", tr)
	assert.True(t, tr.Before(searchStart.Add(12*time.Hour+10*time.Minute)), "sun transit at %v", tr)
}

type failingService struct{ err error }

func (s failingService) Geocentric(times []time.Time) ([]astro.Equatorial, error) {
	return nil, s.err
}

func TestMeridianTransits_ServiceErrorPropagates(t *testing.T) {
	boom := errors.New("ephemeris offline")
	tgt, err := target.NewEphemeris("mars", failingService{err: boom}, target.PrecisionMean)
	require.NoError(t, err)
	f, err := New(testSite, tgt)
	require.NoError(t, err)

	_, err = f.MeridianTransits(searchStart, 24*time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestFinder_Validation(t *testing.T) {
	f := tauAFinder(t, target.PrecisionMean)

	cases := []struct {
		name string
		call func() error
	}{
		{"zero start", func() error { _, err := f.MeridianTransits(time.Time{}, time.Hour); return err }},
		{"negative duration", func() error { _, err := f.MeridianTransits(searchStart, -time.Hour); return err }},
		{"zero duration", func() error { _, err := f.MeridianTransits(searchStart, 0); return err }},
		{"NaN threshold", func() error {
			_, err := f.ElevationWindows(searchStart, []float64{math.NaN()}, time.Hour)
			return err
		}},
		{"zero window center", func() error {
			_, err := f.ElevationWindows(time.Time{}, []float64{0}, time.Hour)
			return err
		}},
		{"zero profile step", func() error { _, err := f.Profile(searchStart, time.Hour, 0); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, target.ErrInvalidArgument)
		})
	}

	t.Run("nil target", func(t *testing.T) {
		_, err := New(testSite, nil)
		assert.ErrorIs(t, err, target.ErrInvalidTarget)
	})
	t.Run("bad latitude", func(t *testing.T) {
		tgt, err := target.NewCatalog("x", 10, 10, target.PrecisionLow)
		require.NoError(t, err)
		_, err = New(astro.Site{LatDeg: 123}, tgt)
		assert.ErrorIs(t, err, target.ErrInvalidArgument)
	})
}

func Example() {
	tgt, _ := target.NewCatalog("Tau A", 83.633083, 22.0145, target.PrecisionApparent)
	f, _ := New(astro.Site{LatDeg: 47.376511, LonDeg: 2.192400}, tgt)
	transits, _ := f.MeridianTransits(time.Date(2020, 9, 9, 0, 0, 0, 0, time.UTC), 24*time.Hour)
	for _, tr := range transits {
		fmt.Printf("elevation at transit: %.3f\n", tr.ElevationDeg)
	}
	// Output:
	// elevation at transit: 64.638
}
