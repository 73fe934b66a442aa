package astro

import (
	"math"
	"testing"
	"time"
)

func TestJulianDate_J2000Epoch(t *testing.T) {
	// J2000.0 is defined as JD 2451545.0 = 2000-01-01 12:00.
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-9 {
		t.Errorf("JD(J2000) = %.9f, want 2451545.0", jd)
	}
}

func TestJulianDate_KnownDates(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want float64
	}{
		// Sputnik 1 launch epoch, Meeus ch. 7 worked example.
		{"1957-10-04.81", time.Date(1957, 10, 4, 19, 26, 24, 0, time.UTC), 2436116.31},
		{"1987-04-10.0", time.Date(1987, 4, 10, 0, 0, 0, 0, time.UTC), 2446895.5},
		{"2020-09-09.0", time.Date(2020, 9, 9, 0, 0, 0, 0, time.UTC), 2459101.5},
	}
	for _, c := range cases {
		got := JulianDate(c.t)
		if math.Abs(got-c.want) > 1e-6 {
			t.Errorf("JD(%s) = %.6f, want %.6f", c.name, got, c.want)
		}
	}
}

func TestJulianDate_HandlesNonUTCInput(t *testing.T) {
	utc := time.Date(2020, 9, 9, 0, 0, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("CEST", 2*3600))
	if d := JulianDate(utc) - JulianDate(offset); d != 0 {
		t.Errorf("JD differs by %.9f between UTC and zoned rendering of the same instant", d)
	}
}

func TestDaysSinceJ2000(t *testing.T) {
	d := DaysSinceJ2000(time.Date(2000, 1, 2, 12, 0, 0, 0, time.UTC))
	if math.Abs(d-1.0) > 1e-9 {
		t.Errorf("one day after epoch = %.9f days, want 1.0", d)
	}
}

func TestJulianCenturies(t *testing.T) {
	// 36525 days after J2000.0 is exactly one Julian century.
	epoch := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	T := JulianCenturies(epoch.Add(36525 * 24 * time.Hour))
	if math.Abs(T-1.0) > 1e-9 {
		t.Errorf("T = %.12f, want 1.0", T)
	}
}
