package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "HTTP_TIMEOUT", "FETCH_INTERVAL", "STORE_MAX_HISTORY", "STORE_MAX_AGE",
		"DATA_DIR", "WATCH_CITIES", "CITIES_FILE", "DIGITRAFFIC_BASE_URL", "FMI_BASE_URL", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.DataDir != "./saves" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.HTTPTimeout != 15*time.Second || cfg.FetchInterval != 15*time.Minute || cfg.StoreMaxAge != 24*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.StoreMaxHistory != 96 {
		t.Fatalf("expected 96, got %d", cfg.StoreMaxHistory)
	}
	if cfg.LogLevel != log.InfoLevel {
		t.Fatalf("expected info level, got %s", cfg.LogLevel)
	}
	if len(cfg.Watched) != 5 || cfg.Watched[0] != "TAMPERE" {
		t.Fatalf("expected every default city watched, got %v", cfg.Watched)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("WATCH_CITIES", "oulu, Turku")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchInterval != 5*time.Minute {
		t.Fatalf("expected 5m, got %s", cfg.FetchInterval)
	}
	if len(cfg.Watched) != 2 || cfg.Watched[0] != "OULU" || cfg.Watched[1] != "TURKU" {
		t.Fatalf("unexpected watched cities %v", cfg.Watched)
	}
	if cfg.LogLevel != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.LogLevel)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"FETCH_INTERVAL", "soon"},
		{"HTTP_TIMEOUT", "15"},
		{"LOG_LEVEL", "chatty"},
		{"WATCH_CITIES", "Stockholm"},
		{"CITIES_FILE", "does-not-exist.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadCities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	data := `cities:
  - name: Kuopio
    lat: 62.89
    lon: 27.68
    weatherBBox: {minLon: 27.5, minLat: 62.8, maxLon: 27.8, maxLat: 63.0}
    roadBBox: "27.6,62.85,27.75,62.95"
    cameraId: C08501
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cities, err := LoadCities(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := cities.Lookup("kuopio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CameraID != "C08501" || c.RoadBBox.MaxLat != 62.95 {
		t.Fatalf("unexpected city %+v", c)
	}

	if err := os.WriteFile(path, []byte("cities:\n  - name: Vaasa\n    roadBBox: \"21.7,63.2\"\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadCities(path); err == nil {
		t.Fatal("expected error for malformed bbox string")
	}

	if err := os.WriteFile(path, []byte("cities: []\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadCities(path); err == nil {
		t.Fatal("expected error for empty registry")
	}
}
