package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/pipeline"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultInterval       = 15 * time.Minute
	defaultMaxParallel    = 3
	defaultPort           = 8080
)

// Config holds runtime configuration for the ingester and the REST API.
type Config struct {
	DatabaseURL string

	UpstreamBaseURL string
	UpstreamToken   string
	RequestTimeout  time.Duration

	IngestInterval time.Duration
	MaxParallel    int
	DryRun         bool

	GeofenceEnabled bool
	Geofence        catalog.Geofence
	GeofencePolicy  pipeline.GeofencePolicy

	CatalogPath string

	Port        int
	BearerToken string
	LogLevel    string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		RequestTimeout: defaultRequestTimeout,
		IngestInterval: defaultInterval,
		MaxParallel:    defaultMaxParallel,
		Geofence:       catalog.DefaultGeofence(),
		GeofencePolicy: pipeline.GeofenceDiscard,
		Port:           defaultPort,
		LogLevel:       "info",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.UpstreamBaseURL = strings.TrimSpace(os.Getenv("SENSORS_API_BASE_URL"))
	cfg.UpstreamToken = strings.TrimSpace(os.Getenv("SENSORS_API_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("INGEST_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid INGEST_INTERVAL: %w", err)
		}
		cfg.IngestInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_FETCHES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid MAX_CONCURRENT_FETCHES: %s", v)
		}
		cfg.MaxParallel = n
	}

	cfg.DryRun = boolEnv("DRY_RUN")
	cfg.GeofenceEnabled = boolEnv("GEOFENCE_ENABLED")

	if err := loadGeofence(&cfg); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("GEOFENCE_POLICY")); v != "" {
		switch pipeline.GeofencePolicy(v) {
		case pipeline.GeofenceDiscard, pipeline.GeofenceKeep:
			cfg.GeofencePolicy = pipeline.GeofencePolicy(v)
		default:
			return cfg, fmt.Errorf("invalid GEOFENCE_POLICY: %s (want discard or keep)", v)
		}
	}

	cfg.CatalogPath = strings.TrimSpace(os.Getenv("CATALOG_PATH"))

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", v)
		}
		cfg.Port = port
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

func loadGeofence(cfg *Config) error {
	pairs := []struct {
		key    string
		target *float64
	}{
		{"GEOFENCE_CENTER_LAT", &cfg.Geofence.Lat},
		{"GEOFENCE_CENTER_LON", &cfg.Geofence.Lon},
		{"GEOFENCE_LAT_TOLERANCE", &cfg.Geofence.LatTolerance},
		{"GEOFENCE_LON_TOLERANCE", &cfg.Geofence.LonTolerance},
	}
	for _, p := range pairs {
		if v := strings.TrimSpace(os.Getenv(p.key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", p.key, err)
			}
			*p.target = f
		}
	}
	return nil
}

func boolEnv(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}

// Catalog loads the configured catalog file, or the built-in default
// when no path is set.
func (c Config) Catalog() (catalog.Catalog, error) {
	if c.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(c.CatalogPath)
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
