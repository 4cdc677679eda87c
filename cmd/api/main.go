package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/config"
	"github.com/strathmoreaq/airwatch/internal/db"
	"github.com/strathmoreaq/airwatch/internal/httpapi"
	"github.com/strathmoreaq/airwatch/internal/pipeline"
	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection error: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema error: %v", err)
	}

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("catalog error: %v", err)
	}

	client := sensorsafrica.NewClient(
		cfg.UpstreamBaseURL,
		cfg.UpstreamToken,
		&http.Client{Timeout: cfg.RequestTimeout},
		log,
	)
	norm := pipeline.NewNormalizer(catalog.DefaultValueTypes(), log)
	res := pipeline.NewResolver(cat, catalog.DefaultAliases(), cfg.Geofence, cfg.GeofenceEnabled, cfg.GeofencePolicy, log)
	coord := pipeline.NewCoordinator(store, client, norm, res, cfg.DryRun, log)
	driver := pipeline.NewDriver(cat, coord, cfg.MaxParallel, log)

	srv := httpapi.New(cfg, store, driver)
	log.WithField("addr", cfg.ListenAddr()).Info("REST API listening")

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
