package target

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfreq/meridian/internal/astro"
)

var testTimes = []time.Time{
	time.Date(2020, 9, 9, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 9, 9, 8, 0, 0, 0, time.UTC),
	time.Date(2020, 9, 9, 16, 0, 0, 0, time.UTC),
}

func TestNewCatalog_Validation(t *testing.T) {
	cases := []struct {
		name    string
		ra, dec float64
		p       Precision
		wantErr error
	}{
		{"NaN RA", math.NaN(), 10, PrecisionLow, ErrInvalidTarget},
		{"Inf Dec", 10, math.Inf(1), PrecisionLow, ErrInvalidTarget},
		{"Dec above pole", 10, 90.5, PrecisionLow, ErrInvalidTarget},
		{"Dec below pole", 10, -91, PrecisionLow, ErrInvalidTarget},
		{"bad precision", 10, 10, Precision(42), ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog("x", tc.ra, tc.dec, tc.p)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewCatalog_NormalizesRA(t *testing.T) {
	c, err := NewCatalog("x", -10, 45, PrecisionMean)
	require.NoError(t, err)
	assert.InDelta(t, 350.0, c.Coordinate().RADeg, 1e-9)

	c, err = NewCatalog("", 83.633083, 22.0145, PrecisionMean)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Name(), "a nameless catalog target gets a generated name")
}

func TestCatalog_PositionsBroadcast(t *testing.T) {
	c, err := NewCatalog("Tau A", 83.633083, 22.0145, PrecisionApparent)
	require.NoError(t, err)

	pos, err := c.Positions(testTimes, false)
	require.NoError(t, err)
	require.Len(t, pos, len(testTimes))
	for _, p := range pos {
		assert.Equal(t, c.Coordinate(), p)
	}

	empty, err := c.Positions(nil, false)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalog_SingleEquinoxPrecession(t *testing.T) {
	c, err := NewCatalog("Tau A", 83.633083, 22.0145, PrecisionApparent)
	require.NoError(t, err)

	pos, err := c.Positions(testTimes, true)
	require.NoError(t, err)
	require.Len(t, pos, len(testTimes))

	// All positions share the equinox of the first instant: the array is
	// constant even though the instants span sixteen hours.
	for _, p := range pos[1:] {
		assert.Equal(t, pos[0], p)
	}

	// And the shared value is the coordinate precessed to that instant.
	want := astro.PrecessFromJ2000(c.Coordinate(), testTimes[0])
	assert.InDelta(t, want.RADeg, pos[0].RADeg, 1e-12)
	assert.InDelta(t, want.DecDeg, pos[0].DecDeg, 1e-12)
	assert.NotEqual(t, c.Coordinate(), pos[0], "20 years of precession must move the coordinate")
}

// gridService returns a distinct position per instant, standing in for a
// moving solar-system body.
type gridService struct{}

func (gridService) Geocentric(times []time.Time) ([]astro.Equatorial, error) {
	out := make([]astro.Equatorial, len(times))
	for i := range times {
		out[i] = astro.Equatorial{RADeg: float64(10 * i), DecDeg: float64(i)}
	}
	return out, nil
}

// shortService violates the one-position-per-time contract.
type shortService struct{}

func (shortService) Geocentric(times []time.Time) ([]astro.Equatorial, error) {
	return make([]astro.Equatorial, 0), nil
}

func TestNewEphemeris_Validation(t *testing.T) {
	_, err := NewEphemeris("mars", nil, PrecisionMean)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = NewEphemeris("", gridService{}, PrecisionMean)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = NewEphemeris("mars", gridService{}, Precision(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEphemeris_PositionsDelegate(t *testing.T) {
	e, err := NewEphemeris("mars", gridService{}, PrecisionMean)
	require.NoError(t, err)

	pos, err := e.Positions(testTimes, false)
	require.NoError(t, err)
	require.Len(t, pos, 3)
	assert.Equal(t, astro.Equatorial{RADeg: 20, DecDeg: 2}, pos[2])
}

func TestEphemeris_SingleEquinoxPrecession(t *testing.T) {
	e, err := NewEphemeris("mars", gridService{}, PrecisionMean)
	require.NoError(t, err)

	pos, err := e.Positions(testTimes, true)
	require.NoError(t, err)

	raw, _ := gridService{}.Geocentric(testTimes)
	for i := range pos {
		want := astro.PrecessFromJ2000(raw[i], testTimes[0])
		assert.InDelta(t, want.RADeg, pos[i].RADeg, 1e-12, "position %d", i)
		assert.InDelta(t, want.DecDeg, pos[i].DecDeg, 1e-12, "position %d", i)
	}
}

func TestEphemeris_ShortServiceRejected(t *testing.T) {
	e, err := NewEphemeris("mars", shortService{}, PrecisionMean)
	require.NoError(t, err)

	_, err = e.Positions(testTimes, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positions")
}

func TestEphemeris_ServiceErrorWrapped(t *testing.T) {
	boom := errors.New("no ephemeris")
	e, err := NewEphemeris("venus", errService{boom}, PrecisionMean)
	require.NoError(t, err)

	_, err = e.Positions(testTimes, false)
	assert.ErrorIs(t, err, boom)
}

type errService struct{ err error }

func (s errService) Geocentric([]time.Time) ([]astro.Equatorial, error) { return nil, s.err }

func TestParsePrecision(t *testing.T) {
	for _, name := range []string{"low", "mean", "apparent"} {
		p, err := ParsePrecision(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}

	_, err := ParsePrecision("turbo")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPrecision_SiderealDispatch(t *testing.T) {
	tt := time.Date(2020, 9, 9, 3, 0, 0, 0, time.UTC)
	lon := 2.1924

	assert.Equal(t, astro.LowSidereal(tt, lon), PrecisionLow.Sidereal(tt, lon))
	assert.Equal(t, astro.MeanSidereal(tt, lon), PrecisionMean.Sidereal(tt, lon))
	assert.Equal(t, astro.ApparentSidereal(tt, lon), PrecisionApparent.Sidereal(tt, lon))
}
