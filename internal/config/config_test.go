package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strathmoreaq/airwatch/internal/pipeline"
)

func TestLoad(t *testing.T) {
	t.Run("requires database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/airwatch")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 15*time.Minute, cfg.IngestInterval)
		assert.Equal(t, 3, cfg.MaxParallel)
		assert.Equal(t, pipeline.GeofenceDiscard, cfg.GeofencePolicy)
		assert.False(t, cfg.GeofenceEnabled)
		assert.False(t, cfg.DryRun)
		assert.Equal(t, ":8080", cfg.ListenAddr())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/airwatch")
		t.Setenv("INGEST_INTERVAL", "5m")
		t.Setenv("MAX_CONCURRENT_FETCHES", "8")
		t.Setenv("GEOFENCE_ENABLED", "true")
		t.Setenv("GEOFENCE_POLICY", "keep")
		t.Setenv("GEOFENCE_CENTER_LAT", "-1.25")
		t.Setenv("DRY_RUN", "1")
		t.Setenv("PORT", "9090")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.IngestInterval)
		assert.Equal(t, 8, cfg.MaxParallel)
		assert.True(t, cfg.GeofenceEnabled)
		assert.Equal(t, pipeline.GeofenceKeep, cfg.GeofencePolicy)
		assert.Equal(t, -1.25, cfg.Geofence.Lat)
		assert.True(t, cfg.DryRun)
		assert.Equal(t, ":9090", cfg.ListenAddr())
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/airwatch")
		t.Setenv("INGEST_INTERVAL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("invalid geofence policy", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/airwatch")
		t.Setenv("GEOFENCE_POLICY", "maybe")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestCatalogSelection(t *testing.T) {
	t.Run("default catalog when no path set", func(t *testing.T) {
		cfg := Config{}
		cat, err := cfg.Catalog()
		require.NoError(t, err)
		assert.Equal(t, 5, cat.Len())
	})

	t.Run("missing catalog file", func(t *testing.T) {
		cfg := Config{CatalogPath: "/nonexistent/catalog.json"}
		_, err := cfg.Catalog()
		assert.Error(t, err)
	})
}
