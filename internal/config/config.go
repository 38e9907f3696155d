package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/road-watch/internal/watch"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds every upstream request.
	HTTPTimeout time.Duration

	// FetchInterval controls how often we refresh each city.
	FetchInterval time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of snapshots per city (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	// DataDir holds favourites, timelines and camera images.
	DataDir string

	// Cities is the full registry; Watched are the ones the scheduler refreshes.
	Cities  *watch.Cities
	Watched []string

	DigitrafficBaseURL string
	FMIBaseURL         string

	LogLevel log.Level
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Info("no .env file loaded")
	}
	cfg := &AppConfig{}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.DataDir = getenvDefault("DATA_DIR", "./saves")
	cfg.DigitrafficBaseURL = os.Getenv("DIGITRAFFIC_BASE_URL")
	cfg.FMIBaseURL = os.Getenv("FMI_BASE_URL")

	cfg.LogLevel, err = log.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if path := os.Getenv("CITIES_FILE"); path != "" {
		cfg.Cities, err = LoadCities(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg.Cities = watch.DefaultCities()
	}

	cfg.Watched, err = watchedCities(cfg.Cities, os.Getenv("WATCH_CITIES"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

type citiesFile struct {
	Cities []watch.City `yaml:"cities"`
}

// LoadCities reads a YAML city registry:
//
//	cities:
//	  - name: Tampere
//	    lat: 61.49911
//	    lon: 23.78712
//	    weatherBBox: {minLon: 23.57, minLat: 61.40, maxLon: 23.63, maxLat: 61.42}
//	    roadBBox: "23.65,61.43,23.86,61.52"
//	    cameraId: C04507
func LoadCities(path string) (*watch.Cities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CITIES_FILE: %w", err)
	}
	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse CITIES_FILE %s: %w", path, err)
	}
	cities, err := watch.NewCities(f.Cities)
	if err != nil {
		return nil, fmt.Errorf("CITIES_FILE %s: %w", path, err)
	}
	return cities, nil
}

// watchedCities resolves a comma separated list against the registry.
// An empty list selects every city.
func watchedCities(cities *watch.Cities, list string) ([]string, error) {
	var names []string
	if strings.TrimSpace(list) == "" {
		for _, c := range cities.All() {
			names = append(names, c.Key())
		}
		return names, nil
	}
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		city, err := cities.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_CITIES: %w", err)
		}
		names = append(names, city.Key())
	}
	return names, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
