// Command meridian finds meridian transits and observing windows for one
// target from the command line.
//
// For every transit inside the search window it prints one record:
//
//	transit-time elevation rise-low set-low rise-high set-high
//
// with "null" in place of a bracket the target never crosses. With -profile
// it prints "time elevation" samples centered on each transit instead.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/ephemeris"
	"github.com/lowfreq/meridian/internal/search"
	"github.com/lowfreq/meridian/internal/target"
)

func main() {
	var (
		startStr  = flag.String("start", "", "search start as RFC 3339 (default: now)")
		duration  = flag.Duration("duration", 24*time.Hour, "search window length; also the window/profile width around each transit")
		raStr     = flag.String("ra", "", "target right ascension in degrees (J2000, requires -dec)")
		decStr    = flag.String("dec", "", "target declination in degrees (J2000, requires -ra)")
		body      = flag.String("body", "", "solar-system body name (instead of -ra/-dec)")
		minEl     = flag.Float64("min-el", 10, "lower elevation threshold in degrees")
		maxEl     = flag.Float64("max-el", 80, "upper elevation threshold in degrees")
		profile   = flag.Bool("profile", false, "print elevation samples around each transit instead of windows")
		step      = flag.Duration("step", 10*time.Minute, "profile sample spacing")
		precision = flag.String("precision", "apparent", "sidereal precision: low, mean or apparent")
		lat       = flag.Float64("lat", 47.376511, "site latitude in degrees")
		lon       = flag.Float64("lon", 2.192400, "site longitude in degrees, east positive")
	)
	flag.Parse()

	if err := run(os.Stdout, options{
		start:     *startStr,
		duration:  *duration,
		ra:        *raStr,
		dec:       *decStr,
		body:      *body,
		minEl:     *minEl,
		maxEl:     *maxEl,
		profile:   *profile,
		step:      *step,
		precision: *precision,
		site:      astro.Site{LatDeg: *lat, LonDeg: *lon},
	}); err != nil {
		fmt.Fprintln(os.Stderr, "meridian:", err)
		os.Exit(1)
	}
}

type options struct {
	start     string
	duration  time.Duration
	ra, dec   string
	body      string
	minEl     float64
	maxEl     float64
	profile   bool
	step      time.Duration
	precision string
	site      astro.Site
}

func run(out io.Writer, opts options) error {
	start := time.Now().UTC()
	if opts.start != "" {
		t, err := time.Parse(time.RFC3339, opts.start)
		if err != nil {
			return fmt.Errorf("%w: start %q is not an RFC 3339 time", target.ErrInvalidArgument, opts.start)
		}
		start = t
	}

	tgt, err := resolveTarget(opts)
	if err != nil {
		return err
	}
	f, err := search.New(opts.site, tgt)
	if err != nil {
		return err
	}

	transits, err := f.MeridianTransits(start, opts.duration)
	if err != nil {
		return err
	}

	for _, tr := range transits {
		if opts.profile {
			samples, err := f.Profile(tr.Time, opts.duration, opts.step)
			if err != nil {
				return err
			}
			for _, s := range samples {
				fmt.Fprintf(out, "%s %.4f\n", s.Time.UTC().Format(time.RFC3339), s.ElevationDeg)
			}
			continue
		}

		wins, err := f.ElevationWindows(tr.Time, []float64{opts.minEl, opts.maxEl}, opts.duration)
		if err != nil {
			return err
		}
		fields := []string{
			tr.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(tr.ElevationDeg, 'f', 4, 64),
		}
		for _, w := range wins {
			if w.Never {
				fields = append(fields, "null", "null")
				continue
			}
			fields = append(fields,
				w.Rise.UTC().Format(time.RFC3339),
				w.Set.UTC().Format(time.RFC3339),
			)
		}
		fmt.Fprintln(out, strings.Join(fields, " "))
	}
	return nil
}

// resolveTarget builds the target from the flag set: -ra/-dec select a
// catalog source, -body an ephemeris one. Exactly one of the two forms must
// be given.
func resolveTarget(opts options) (target.Target, error) {
	hasCoord := opts.ra != "" || opts.dec != ""
	if hasCoord == (opts.body != "") {
		return nil, fmt.Errorf("%w: exactly one of -ra/-dec or -body must be given", target.ErrAmbiguousTarget)
	}

	prec, err := target.ParsePrecision(opts.precision)
	if err != nil {
		return nil, err
	}

	if opts.body != "" {
		b, err := ephemeris.ParseBody(opts.body)
		if err != nil {
			return nil, err
		}
		provider, err := ephemeris.NewProvider(4096)
		if err != nil {
			return nil, err
		}
		return target.NewEphemeris(b.String(), provider.Source(b), prec)
	}

	if opts.ra == "" || opts.dec == "" {
		return nil, fmt.Errorf("%w: -ra and -dec must be given together", target.ErrAmbiguousTarget)
	}
	ra, err := strconv.ParseFloat(opts.ra, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: ra %q is not a number", target.ErrInvalidArgument, opts.ra)
	}
	dec, err := strconv.ParseFloat(opts.dec, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: dec %q is not a number", target.ErrInvalidArgument, opts.dec)
	}
	return target.NewCatalog(fmt.Sprintf("ra=%s dec=%s", opts.ra, opts.dec), ra, dec, prec)
}
