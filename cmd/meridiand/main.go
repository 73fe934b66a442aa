// Command meridiand serves transit planning for a fixed observing site:
// the JSON API, the rolling transit schedule, satellite interference
// prediction and the live pointing stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/lowfreq/meridian/internal/api"
	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/config"
	"github.com/lowfreq/meridian/internal/ephemeris"
	"github.com/lowfreq/meridian/internal/health"
	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/rfi"
	"github.com/lowfreq/meridian/internal/schedule"
	"github.com/lowfreq/meridian/internal/search"
	"github.com/lowfreq/meridian/internal/stream"
	"github.com/lowfreq/meridian/internal/target"
	"github.com/lowfreq/meridian/internal/tle"
	"github.com/lowfreq/meridian/web"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "meridiand:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "meridiand:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*cfg, *configPath, logger); err != nil {
		logger.Errorw("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, configPath string, logger *logging.Logger) error {
	site := astro.Site{LatDeg: cfg.Site.LatDeg, LonDeg: cfg.Site.LonDeg, HeightM: cfg.Site.HeightM}
	logger.Infow("site configured",
		"name", cfg.Site.Name,
		"lat_deg", site.LatDeg,
		"lon_deg", site.LonDeg,
	)

	eph, err := ephemeris.NewProvider(cfg.Ephemeris.CacheSize)
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var probes []health.Probe

	// TLE refresh loop and, on top of it, the interference predictor.
	var predictor *rfi.Predictor
	if cfg.TLE.Enabled {
		store := tle.NewStore()
		fetcher := tle.NewFetcher(cfg.TLE.URL, time.Duration(cfg.TLE.FetchTimeout)*time.Second, cfg.TLE.MaxFetchTries, logger)
		diskCache := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxCacheFiles)
		refresher := tle.NewRefresher(fetcher, diskCache, store, time.Duration(cfg.TLE.RefreshSec)*time.Second, logger)
		go refresher.Run(ctx)

		// Background goroutine to update the TLE age gauge.
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if age := store.AgeSeconds(); age >= 0 {
						metrics.SetTLEAgeSeconds(age)
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		if cfg.RFI.Enabled {
			predictor = rfi.NewPredictor(store, site, rfi.Config{
				MinElDeg:      cfg.RFI.MinElDeg,
				SeparationDeg: cfg.RFI.SeparationDeg,
				CoarseStep:    time.Duration(cfg.RFI.CoarseStepSec) * time.Second,
				FineStep:      time.Duration(cfg.RFI.FineStepSec) * time.Second,
			}, logger)
			probes = append(probes, health.Probe{Name: "tle", Ready: func() bool { return store.Get() != nil }})
		}
	}

	// Rolling transit schedule for the configured targets.
	var cache *schedule.Cache
	if cfg.Schedule.Enabled {
		monitored, err := buildMonitored(cfg, site, eph)
		if err != nil {
			return err
		}
		cache = schedule.New(schedule.Config{
			Window:      time.Duration(cfg.Schedule.WindowSec) * time.Second,
			Refresh:     time.Duration(cfg.Schedule.RefreshSec) * time.Second,
			GracePeriod: time.Duration(cfg.Schedule.GracePeriodSec) * time.Second,
			Workers:     cfg.Schedule.Workers,
		}, monitored, logger)
		go cache.Start(ctx)
		probes = append(probes, health.Probe{Name: "schedule", Ready: cache.Ready})

		if configPath != "" {
			go reloadLoop(ctx, cfg, configPath, site, eph, cache, logger)
		}
	}

	srv := api.NewServer(cfg, api.Deps{
		Site:      site,
		Ephemeris: eph,
		Schedule:  cache,
		RFI:       predictor,
		Stream:    stream.NewHandler(cfg.Stream, cfg.Server.TrustProxy, logger),
		Health:    health.New(probes...),
		Web:       web.Content,
	}, logger)

	go func() {
		logger.Infow("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"schedule_enabled", cfg.Schedule.Enabled,
			"tle_enabled", cfg.TLE.Enabled,
			"rfi_enabled", cfg.RFI.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Infow("server stopped")
	return nil
}

// reloadLoop re-reads the config on SIGHUP and triggers a schedule cutover
// when the monitored-target list changed. Everything else in the file needs
// a restart.
func reloadLoop(ctx context.Context, cfg config.Config, configPath string, site astro.Site, eph *ephemeris.Provider, cache *schedule.Cache, logger *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	current := cfg.Schedule.Targets
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := config.Load(configPath)
			if err != nil {
				logger.Warnw("config reload failed", "error", err)
				continue
			}
			if slices.Equal(next.Schedule.Targets, current) {
				logger.Infow("config reloaded, schedule targets unchanged")
				continue
			}
			reloaded := cfg
			reloaded.Schedule.Targets = next.Schedule.Targets
			monitored, err := buildMonitored(reloaded, site, eph)
			if err != nil {
				logger.Warnw("config reload failed", "error", err)
				continue
			}
			logger.Infow("config reloaded, schedule targets changed",
				"old_targets", len(current),
				"new_targets", len(monitored),
			)
			cache.Reload(monitored)
			current = next.Schedule.Targets
		}
	}
}

// buildMonitored resolves the configured schedule targets into finders.
func buildMonitored(cfg config.Config, site astro.Site, eph *ephemeris.Provider) ([]schedule.Monitored, error) {
	out := make([]schedule.Monitored, 0, len(cfg.Schedule.Targets))
	for _, spec := range cfg.Schedule.Targets {
		prec, err := target.ParsePrecision(spec.Precision)
		if err != nil {
			return nil, fmt.Errorf("schedule target %q: %w", spec.Name, err)
		}

		var tgt target.Target
		if spec.Body != "" {
			b, err := ephemeris.ParseBody(spec.Body)
			if err != nil {
				return nil, fmt.Errorf("schedule target %q: %w", spec.Name, err)
			}
			tgt, err = target.NewEphemeris(spec.Name, eph.Source(b), prec)
			if err != nil {
				return nil, fmt.Errorf("schedule target %q: %w", spec.Name, err)
			}
		} else {
			tgt, err = target.NewCatalog(spec.Name, spec.RADeg, spec.DecDeg, prec)
			if err != nil {
				return nil, fmt.Errorf("schedule target %q: %w", spec.Name, err)
			}
		}

		f, err := search.New(site, tgt)
		if err != nil {
			return nil, fmt.Errorf("schedule target %q: %w", spec.Name, err)
		}
		out = append(out, schedule.Monitored{Name: spec.Name, Finder: f, MinElDeg: spec.MinElDeg})
	}
	return out, nil
}
