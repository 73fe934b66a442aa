package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_YAML(t *testing.T) {
	yamlContent := `
site:
  name: test-site
  lat_deg: 48.8584
  lon_deg: 2.2945
  height_m: 35
server:
  addr: ":9000"
auth:
  enabled: true
  token: sekrit
schedule:
  enabled: true
  targets:
    - name: "Tau A"
      ra_deg: 83.633083
      dec_deg: 22.0145
    - name: sun
      body: sun
      min_el_deg: 20
`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if cfg.Site.Name != "test-site" {
		t.Errorf("expected site name 'test-site', got %s", cfg.Site.Name)
	}
	if cfg.Site.LatDeg != 48.8584 {
		t.Errorf("expected lat 48.8584, got %v", cfg.Site.LatDeg)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected addr ':9000', got %s", cfg.Server.Addr)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Token != "sekrit" {
		t.Errorf("unexpected auth config: %+v", cfg.Auth)
	}
	if len(cfg.Schedule.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Schedule.Targets))
	}
	if cfg.Schedule.Targets[0].RADeg != 83.633083 {
		t.Errorf("unexpected target RA: %v", cfg.Schedule.Targets[0].RADeg)
	}
	// Target defaults are inherited from the schedule section.
	if cfg.Schedule.Targets[0].MinElDeg != 10 {
		t.Errorf("expected inherited min_el_deg 10, got %v", cfg.Schedule.Targets[0].MinElDeg)
	}
	if cfg.Schedule.Targets[0].Precision != "apparent" {
		t.Errorf("expected default precision 'apparent', got %s", cfg.Schedule.Targets[0].Precision)
	}
	if cfg.Schedule.Targets[1].MinElDeg != 20 {
		t.Errorf("expected explicit min_el_deg 20, got %v", cfg.Schedule.Targets[1].MinElDeg)
	}
}

func TestLoad_JSON(t *testing.T) {
	jsonContent := `{
		"site": {"name": "json-site", "lat_deg": -30.7, "lon_deg": 21.4},
		"logging": {"level": "debug"}
	}`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configFile, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}

	if cfg.Site.Name != "json-site" {
		t.Errorf("expected site name 'json-site', got %s", cfg.Site.Name)
	}
	if cfg.Site.LatDeg != -30.7 {
		t.Errorf("expected lat -30.7, got %v", cfg.Site.LatDeg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configFile, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Site.Name != "nancay" {
		t.Errorf("expected default site 'nancay', got %s", cfg.Site.Name)
	}
	if cfg.Site.LatDeg != 47.376511 || cfg.Site.LonDeg != 2.192400 {
		t.Errorf("unexpected default site coordinates: %+v", cfg.Site)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr ':8080', got %s", cfg.Server.Addr)
	}
	if cfg.Schedule.WindowSec != 86400 {
		t.Errorf("expected default window 86400, got %d", cfg.Schedule.WindowSec)
	}
	if cfg.Ephemeris.CacheSize != 16384 {
		t.Errorf("expected default cache size 16384, got %d", cfg.Ephemeris.CacheSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"latitude out of range", func(c *Config) { c.Site.LatDeg = 91 }, true},
		{"longitude out of range", func(c *Config) { c.Site.LonDeg = -200 }, true},
		{"auth without token", func(c *Config) { c.Auth.Enabled = true }, true},
		{"window too small", func(c *Config) { c.Schedule.WindowSec = 60 }, true},
		{"target without name", func(c *Config) {
			c.Schedule.Targets = []TargetSpec{{Body: "sun", MinElDeg: 10, Precision: "mean"}}
		}, true},
		{"target with body and coordinates", func(c *Config) {
			c.Schedule.Targets = []TargetSpec{{Name: "x", Body: "sun", RADeg: 10, MinElDeg: 10, Precision: "mean"}}
		}, true},
		{"rfi without tle", func(c *Config) { c.RFI.Enabled = true }, true},
		{"rfi with tle", func(c *Config) { c.RFI.Enabled = true; c.TLE.Enabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MERIDIAN_ADDR", ":7070")
	t.Setenv("MERIDIAN_SITE_LAT", "-23.02")
	t.Setenv("MERIDIAN_AUTH_ENABLED", "true")
	t.Setenv("MERIDIAN_AUTH_TOKEN", "hunter2")
	t.Setenv("MERIDIAN_LOG_LEVEL", "warn")

	var cfg Config
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected addr from env, got %s", cfg.Server.Addr)
	}
	if cfg.Site.LatDeg != -23.02 {
		t.Errorf("expected latitude from env, got %v", cfg.Site.LatDeg)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Token != "hunter2" {
		t.Errorf("unexpected auth from env: %+v", cfg.Auth)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level from env, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromEnv_BadNumber(t *testing.T) {
	t.Setenv("MERIDIAN_SITE_LAT", "north-ish")

	var cfg Config
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric MERIDIAN_SITE_LAT")
	}
}
