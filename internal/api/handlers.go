package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lowfreq/meridian/internal/config"
	"github.com/lowfreq/meridian/internal/ephemeris"
	"github.com/lowfreq/meridian/internal/httputil"
	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/rfi"
	"github.com/lowfreq/meridian/internal/schedule"
	"github.com/lowfreq/meridian/internal/search"
	"github.com/lowfreq/meridian/internal/target"
)

const (
	// maxWindowSec caps transit and window searches at seven days so a
	// single request cannot pin a CPU.
	maxWindowSec = 7 * 86400

	// maxProfilePositions caps duration/step for profile requests.
	maxProfilePositions = 10000

	// maxPassWindowSec caps the satellite scan, which walks the whole
	// TLE set.
	maxPassWindowSec = 86400

	defaultWindowSec  = 86400
	defaultStepSec    = 600
	defaultPassSec    = 3600
	defaultThresholds = "10,30"
)

// resolveFinder builds a search finder from the request's target
// parameters: ra+dec select a catalog source, body an ephemeris one.
// Exactly one of the two forms must be present.
func resolveFinder(q url.Values, deps Deps) (*search.Finder, error) {
	tgt, err := resolveTarget(q, deps.Ephemeris)
	if err != nil {
		return nil, err
	}
	return search.New(deps.Site, tgt)
}

func resolveTarget(q url.Values, eph *ephemeris.Provider) (target.Target, error) {
	ra, dec, body := q.Get("ra"), q.Get("dec"), q.Get("body")
	hasCoord := ra != "" || dec != ""
	if hasCoord == (body != "") {
		return nil, fmt.Errorf("%w: exactly one of ra/dec or body must be given", target.ErrAmbiguousTarget)
	}

	prec := target.PrecisionApparent
	if s := q.Get("precision"); s != "" {
		p, err := target.ParsePrecision(s)
		if err != nil {
			return nil, err
		}
		prec = p
	}

	if body != "" {
		b, err := ephemeris.ParseBody(body)
		if err != nil {
			return nil, err
		}
		return target.NewEphemeris(b.String(), eph.Source(b), prec)
	}

	if ra == "" || dec == "" {
		return nil, fmt.Errorf("%w: ra and dec must be given together", target.ErrAmbiguousTarget)
	}
	raDeg, err := parseFloat("ra", ra)
	if err != nil {
		return nil, err
	}
	decDeg, err := parseFloat("dec", dec)
	if err != nil {
		return nil, err
	}
	return target.NewCatalog(fmt.Sprintf("ra=%s dec=%s", ra, dec), raDeg, decDeg, prec)
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", target.ErrInvalidArgument, name, s)
	}
	return v, nil
}

// parseTime reads an RFC 3339 query value, falling back to def when absent.
func parseTime(q url.Values, name string, def time.Time) (time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not an RFC 3339 time", target.ErrInvalidArgument, name, s)
	}
	return t, nil
}

// parseSeconds reads an integer-seconds query value.
func parseSeconds(q url.Values, name string, def int) (time.Duration, error) {
	s := q.Get(name)
	if s == "" {
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a positive whole number of seconds", target.ErrInvalidArgument, name, s)
	}
	return time.Duration(n) * time.Second, nil
}

func parseThresholds(s string) ([]float64, error) {
	out := make([]float64, 0, 2)
	for _, part := range strings.Split(s, ",") {
		v, err := parseFloat("threshold", strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// writeDomainError maps validation failures to 400 and everything else to
// an opaque 500.
func writeDomainError(logger *logging.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, target.ErrInvalidArgument),
		errors.Is(err, target.ErrInvalidTarget),
		errors.Is(err, target.ErrAmbiguousTarget):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		logger.Errorw("request failed", "component", "api", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}

type transitJSON struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"`
}

type transitsResponse struct {
	Target    string        `json:"target"`
	Precision string        `json:"precision"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Transits  []transitJSON `json:"transits"`
}

func transitsHandler(logger *logging.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := resolveFinder(q, deps)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		start, err := parseTime(q, "start", time.Now().UTC())
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		dur, err := parseSeconds(q, "duration", defaultWindowSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if dur > maxWindowSec*time.Second {
			httputil.JSON(w, http.StatusBadRequest, map[string]any{
				"error":          fmt.Sprintf("search window %v exceeds the maximum", dur),
				"max_window_sec": maxWindowSec,
			})
			return
		}

		transits, err := f.MeridianTransits(start, dur)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		out := make([]transitJSON, len(transits))
		for i, tr := range transits {
			out[i] = transitJSON{Time: tr.Time, ElevationDeg: tr.ElevationDeg}
		}
		httputil.JSON(w, http.StatusOK, transitsResponse{
			Target:    f.Target().Name(),
			Precision: f.Target().Precision().String(),
			Start:     start,
			End:       start.Add(dur),
			Transits:  out,
		})
	}
}

type windowJSON struct {
	ThresholdDeg float64    `json:"threshold_deg"`
	Rise         *time.Time `json:"rise,omitempty"`
	Set          *time.Time `json:"set,omitempty"`
	Always       bool       `json:"always,omitempty"`
	Never        bool       `json:"never,omitempty"`
}

type windowsResponse struct {
	Target    string       `json:"target"`
	Precision string       `json:"precision"`
	Transit   time.Time    `json:"transit"`
	Windows   []windowJSON `json:"windows"`
}

func windowsHandler(logger *logging.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := resolveFinder(q, deps)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		transit, err := parseTime(q, "transit", time.Time{})
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if transit.IsZero() {
			writeDomainError(logger, w, fmt.Errorf("%w: transit is required", target.ErrInvalidArgument))
			return
		}
		raw := q.Get("thresholds")
		if raw == "" {
			raw = defaultThresholds
		}
		thresholds, err := parseThresholds(raw)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		dur, err := parseSeconds(q, "duration", defaultWindowSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if dur > maxWindowSec*time.Second {
			httputil.JSON(w, http.StatusBadRequest, map[string]any{
				"error":          fmt.Sprintf("search window %v exceeds the maximum", dur),
				"max_window_sec": maxWindowSec,
			})
			return
		}

		wins, err := f.ElevationWindows(transit, thresholds, dur)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		out := make([]windowJSON, len(wins))
		for i, win := range wins {
			out[i] = windowJSON{ThresholdDeg: win.ThresholdDeg, Always: win.Always, Never: win.Never}
			if !win.Never {
				out[i].Rise, out[i].Set = &win.Rise, &win.Set
			}
		}
		httputil.JSON(w, http.StatusOK, windowsResponse{
			Target:    f.Target().Name(),
			Precision: f.Target().Precision().String(),
			Transit:   transit,
			Windows:   out,
		})
	}
}

type sampleJSON struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"`
}

type profileResponse struct {
	Target    string       `json:"target"`
	Precision string       `json:"precision"`
	Transit   time.Time    `json:"transit"`
	StepSec   int          `json:"step_sec"`
	Samples   []sampleJSON `json:"samples"`
}

func profileHandler(logger *logging.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := resolveFinder(q, deps)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		transit, err := parseTime(q, "transit", time.Time{})
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if transit.IsZero() {
			writeDomainError(logger, w, fmt.Errorf("%w: transit is required", target.ErrInvalidArgument))
			return
		}
		dur, err := parseSeconds(q, "duration", defaultWindowSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		step, err := parseSeconds(q, "step", defaultStepSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if dur/step > maxProfilePositions {
			httputil.JSON(w, http.StatusBadRequest, map[string]any{
				"error":         fmt.Sprintf("profile of %v at %v step is too dense", dur, step),
				"max_positions": maxProfilePositions,
			})
			return
		}

		samples, err := f.Profile(transit, dur, step)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		out := make([]sampleJSON, len(samples))
		for i, s := range samples {
			out[i] = sampleJSON{Time: s.Time, ElevationDeg: s.ElevationDeg}
		}
		httputil.JSON(w, http.StatusOK, profileResponse{
			Target:    f.Target().Name(),
			Precision: f.Target().Precision().String(),
			Transit:   transit,
			StepSec:   int(step.Seconds()),
			Samples:   out,
		})
	}
}

type scheduleResponse struct {
	Stats   schedule.Stats   `json:"stats"`
	Entries []schedule.Entry `json:"entries"`
}

func scheduleHandler(cache *schedule.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := cache.Upcoming()
		if entries == nil {
			entries = []schedule.Entry{}
		}
		httputil.JSON(w, http.StatusOK, scheduleResponse{
			Stats:   cache.Stats(),
			Entries: entries,
		})
	}
}

type passesResponse struct {
	Target string      `json:"target"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Events []rfi.Event `json:"events"`
}

func passesHandler(logger *logging.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := resolveFinder(q, deps)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		start, err := parseTime(q, "start", time.Now().UTC())
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		dur, err := parseSeconds(q, "duration", defaultPassSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if dur > maxPassWindowSec*time.Second {
			httputil.JSON(w, http.StatusBadRequest, map[string]any{
				"error":          fmt.Sprintf("scan window %v exceeds the maximum", dur),
				"max_window_sec": maxPassWindowSec,
			})
			return
		}

		events, err := deps.RFI.Predict(r.Context(), start, start.Add(dur), f.Horizontals)
		if errors.Is(err, rfi.ErrNoDataset) {
			httputil.Error(w, http.StatusServiceUnavailable, "TLE data not loaded yet")
			return
		}
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		if events == nil {
			events = []rfi.Event{}
		}
		httputil.JSON(w, http.StatusOK, passesResponse{
			Target: f.Target().Name(),
			Start:  start,
			End:    start.Add(dur),
			Events: events,
		})
	}
}

func bodiesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]any{"bodies": ephemeris.Bodies()})
	}
}

func streamHandler(logger *logging.Logger, deps Deps, cfg config.StreamConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := resolveFinder(q, deps)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		interval, err := parseSeconds(q, "interval", cfg.IntervalSec)
		if err != nil {
			writeDomainError(logger, w, err)
			return
		}
		deps.Stream.Serve(w, r, f, interval)
	}
}
