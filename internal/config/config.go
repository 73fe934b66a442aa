// Package config loads the daemon configuration from a YAML or JSON file,
// applies MERIDIAN_* environment overrides and validates the result.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	Site      SiteConfig      `yaml:"site" json:"site"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Stream    StreamConfig    `yaml:"stream" json:"stream"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	TLE       TLEConfig       `yaml:"tle" json:"tle"`
	RFI       RFIConfig       `yaml:"rfi" json:"rfi"`
	Ephemeris EphemerisConfig `yaml:"ephemeris" json:"ephemeris"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SiteConfig locates the observing station.
type SiteConfig struct {
	Name    string  `yaml:"name" json:"name"`
	LatDeg  float64 `yaml:"lat_deg" json:"lat_deg"`
	LonDeg  float64 `yaml:"lon_deg" json:"lon_deg"`
	HeightM float64 `yaml:"height_m" json:"height_m"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr" json:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec" json:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" json:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_sec" json:"shutdown_sec"`
	// TrustProxy enables X-Forwarded-For/X-Real-IP client IP extraction.
	// Only set behind a trusted reverse proxy.
	TrustProxy bool `yaml:"trust_proxy" json:"trust_proxy"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token" json:"token"`
}

type StreamConfig struct {
	MaxClients       int `yaml:"max_clients" json:"max_clients"`
	IntervalSec      int `yaml:"interval_sec" json:"interval_sec"`
	RatePerMin       int `yaml:"rate_per_min" json:"rate_per_min"`
	Burst            int `yaml:"burst" json:"burst"`
	KeepaliveSec     int `yaml:"keepalive_sec" json:"keepalive_sec"`
	WriteDeadlineSec int `yaml:"write_deadline_sec" json:"write_deadline_sec"`
}

// TargetSpec names one tracked source for the rolling schedule. Either Body
// is set, or the pair RADeg/DecDeg is taken as a fixed J2000 coordinate.
type TargetSpec struct {
	Name      string  `yaml:"name" json:"name"`
	Body      string  `yaml:"body" json:"body"`
	RADeg     float64 `yaml:"ra_deg" json:"ra_deg"`
	DecDeg    float64 `yaml:"dec_deg" json:"dec_deg"`
	MinElDeg  float64 `yaml:"min_el_deg" json:"min_el_deg"`
	Precision string  `yaml:"precision" json:"precision"`
}

type ScheduleConfig struct {
	Enabled        bool         `yaml:"enabled" json:"enabled"`
	WindowSec      int          `yaml:"window_sec" json:"window_sec"`
	RefreshSec     int          `yaml:"refresh_sec" json:"refresh_sec"`
	GracePeriodSec int          `yaml:"grace_period_sec" json:"grace_period_sec"`
	Workers        int          `yaml:"workers" json:"workers"`
	MinElDeg       float64      `yaml:"min_el_deg" json:"min_el_deg"`
	Targets        []TargetSpec `yaml:"targets" json:"targets"`
}

type TLEConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	URL           string `yaml:"url" json:"url"`
	CacheDir      string `yaml:"cache_dir" json:"cache_dir"`
	MaxCacheFiles int    `yaml:"max_cache_files" json:"max_cache_files"`
	RefreshSec    int    `yaml:"refresh_sec" json:"refresh_sec"`
	FetchTimeout  int    `yaml:"fetch_timeout_sec" json:"fetch_timeout_sec"`
	MaxFetchTries int    `yaml:"max_fetch_tries" json:"max_fetch_tries"`
}

type RFIConfig struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	MinElDeg      float64 `yaml:"min_el_deg" json:"min_el_deg"`
	SeparationDeg float64 `yaml:"separation_deg" json:"separation_deg"`
	CoarseStepSec int     `yaml:"coarse_step_sec" json:"coarse_step_sec"`
	FineStepSec   int     `yaml:"fine_step_sec" json:"fine_step_sec"`
}

type EphemerisConfig struct {
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// SetDefaults fills in defaults for everything left unset. The default site
// is the Nançay station the daemon was built for.
func (c *Config) SetDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "nancay"
	}
	if c.Site.LatDeg == 0 && c.Site.LonDeg == 0 {
		c.Site.LatDeg = 47.376511
		c.Site.LonDeg = 2.192400
		c.Site.HeightM = 150
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Server.ShutdownSec == 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Stream.MaxClients == 0 {
		c.Stream.MaxClients = 100
	}
	if c.Stream.IntervalSec == 0 {
		c.Stream.IntervalSec = 1
	}
	if c.Stream.RatePerMin == 0 {
		c.Stream.RatePerMin = 60
	}
	if c.Stream.Burst == 0 {
		c.Stream.Burst = 10
	}
	if c.Stream.KeepaliveSec == 0 {
		c.Stream.KeepaliveSec = 15
	}
	if c.Stream.WriteDeadlineSec == 0 {
		c.Stream.WriteDeadlineSec = 5
	}
	if c.Schedule.WindowSec == 0 {
		c.Schedule.WindowSec = 86400
	}
	if c.Schedule.RefreshSec == 0 {
		c.Schedule.RefreshSec = 3600
	}
	if c.Schedule.GracePeriodSec == 0 {
		c.Schedule.GracePeriodSec = 30
	}
	if c.Schedule.Workers == 0 {
		c.Schedule.Workers = 4
	}
	if c.Schedule.MinElDeg == 0 {
		c.Schedule.MinElDeg = 10
	}
	if c.TLE.URL == "" {
		c.TLE.URL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle"
	}
	if c.TLE.CacheDir == "" {
		c.TLE.CacheDir = "tle-cache"
	}
	if c.TLE.MaxCacheFiles == 0 {
		c.TLE.MaxCacheFiles = 5
	}
	if c.TLE.RefreshSec == 0 {
		c.TLE.RefreshSec = 6 * 3600
	}
	if c.TLE.FetchTimeout == 0 {
		c.TLE.FetchTimeout = 30
	}
	if c.TLE.MaxFetchTries == 0 {
		c.TLE.MaxFetchTries = 5
	}
	if c.RFI.MinElDeg == 0 {
		c.RFI.MinElDeg = 10
	}
	if c.RFI.SeparationDeg == 0 {
		c.RFI.SeparationDeg = 5
	}
	if c.RFI.CoarseStepSec == 0 {
		c.RFI.CoarseStepSec = 30
	}
	if c.RFI.FineStepSec == 0 {
		c.RFI.FineStepSec = 1
	}
	if c.Ephemeris.CacheSize == 0 {
		c.Ephemeris.CacheSize = 16384
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Schedule.Targets {
		t := &c.Schedule.Targets[i]
		if t.MinElDeg == 0 {
			t.MinElDeg = c.Schedule.MinElDeg
		}
		if t.Precision == "" {
			t.Precision = "apparent"
		}
	}
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	if c.Site.LatDeg < -90 || c.Site.LatDeg > 90 {
		return fmt.Errorf("site.lat_deg %v outside [-90, 90]", c.Site.LatDeg)
	}
	if c.Site.LonDeg < -180 || c.Site.LonDeg > 180 {
		return fmt.Errorf("site.lon_deg %v outside [-180, 180]", c.Site.LonDeg)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return fmt.Errorf("auth.token is required when auth is enabled")
	}
	if c.Stream.MaxClients < 1 {
		return fmt.Errorf("stream.max_clients must be at least 1")
	}
	if c.Stream.IntervalSec < 1 {
		return fmt.Errorf("stream.interval_sec must be at least 1")
	}
	if c.Schedule.WindowSec < 600 {
		return fmt.Errorf("schedule.window_sec must be at least 600")
	}
	if c.Schedule.RefreshSec < 60 {
		return fmt.Errorf("schedule.refresh_sec must be at least 60")
	}
	if c.Schedule.Workers < 1 {
		return fmt.Errorf("schedule.workers must be at least 1")
	}
	for i, t := range c.Schedule.Targets {
		if t.Name == "" {
			return fmt.Errorf("schedule.targets[%d]: name is required", i)
		}
		if t.Body != "" && (t.RADeg != 0 || t.DecDeg != 0) {
			return fmt.Errorf("schedule.targets[%d] %q: body and ra/dec are mutually exclusive", i, t.Name)
		}
		if t.MinElDeg < 0 || t.MinElDeg >= 90 {
			return fmt.Errorf("schedule.targets[%d] %q: min_el_deg %v outside [0, 90)", i, t.Name, t.MinElDeg)
		}
	}
	if c.TLE.Enabled && c.TLE.URL == "" {
		return fmt.Errorf("tle.url is required when tle is enabled")
	}
	if c.RFI.Enabled && !c.TLE.Enabled {
		return fmt.Errorf("rfi requires tle to be enabled")
	}
	if c.RFI.CoarseStepSec < c.RFI.FineStepSec {
		return fmt.Errorf("rfi.coarse_step_sec must be at least rfi.fine_step_sec")
	}
	if c.Ephemeris.CacheSize < 1 {
		return fmt.Errorf("ephemeris.cache_size must be at least 1")
	}
	return nil
}

// LoadFromEnv applies MERIDIAN_* environment overrides on top of the file
// values. Overrides beat the file; the file beats the defaults.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MERIDIAN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MERIDIAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MERIDIAN_SITE_LAT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MERIDIAN_SITE_LAT must be a number: %w", err)
		}
		c.Site.LatDeg = f
	}
	if v := os.Getenv("MERIDIAN_SITE_LON"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MERIDIAN_SITE_LON must be a number: %w", err)
		}
		c.Site.LonDeg = f
	}
	if v := os.Getenv("MERIDIAN_AUTH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MERIDIAN_AUTH_ENABLED must be a boolean: %w", err)
		}
		c.Auth.Enabled = b
	}
	if v := os.Getenv("MERIDIAN_AUTH_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("MERIDIAN_TLE_URL"); v != "" {
		c.TLE.URL = v
	}
	if v := os.Getenv("MERIDIAN_TLE_CACHE_DIR"); v != "" {
		c.TLE.CacheDir = v
	}
	if v := os.Getenv("MERIDIAN_STREAM_MAX_CLIENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("MERIDIAN_STREAM_MAX_CLIENTS must be a positive integer")
		}
		c.Stream.MaxClients = n
	}
	if v := os.Getenv("MERIDIAN_SCHEDULE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("MERIDIAN_SCHEDULE_WORKERS must be a positive integer")
		}
		c.Schedule.Workers = n
	}
	return nil
}

// Load reads the file at path (YAML or JSON by extension), overlays the
// environment and validates. An empty path yields the pure default config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .json)", ext)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
