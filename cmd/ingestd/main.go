package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/config"
	"github.com/strathmoreaq/airwatch/internal/db"
	"github.com/strathmoreaq/airwatch/internal/pipeline"
	"github.com/strathmoreaq/airwatch/internal/scheduler"
	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion cycle and exit")
	snapshot := flag.Bool("snapshot", false, "use the snapshot endpoint instead of incremental fetch")
	flag.Parse()

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

	if *once {
		var outcome pipeline.CycleOutcome
		if *snapshot {
			outcome = driver.RunSnapshot(ctx)
		} else {
			outcome = driver.RunCycle(ctx)
		}
		for _, se := range outcome.Errors {
			log.WithField("sensor_id", se.SensorID).Error(se.Message)
		}
		if outcome.AllFailed() {
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(cfg.IngestInterval, func(ctx context.Context) {
		if *snapshot {
			driver.RunSnapshot(ctx)
		} else {
			driver.RunCycle(ctx)
		}
	}, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler error: %v", err)
	}
	defer sched.Stop()

	log.WithField("interval", cfg.IngestInterval).Info("ingester running")
	<-ctx.Done()
}
