package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/models"
)

// Driver orchestrates one ingestion cycle across the whole catalog:
// fetch and normalize per sensor with bounded parallelism, then merge
// once every sensor has reported (the merge is a barrier), then persist.
// There are no retries inside a cycle; a failed sensor is skipped and
// reported, and the unchanged watermark makes the next cycle pick it up.
type Driver struct {
	catalog     catalog.Catalog
	coord       *Coordinator
	maxParallel int
	log         logrus.FieldLogger
}

// NewDriver builds a driver. maxParallel bounds concurrent upstream
// fetches; values below 1 mean sequential processing.
func NewDriver(cat catalog.Catalog, coord *Coordinator, maxParallel int, log logrus.FieldLogger) *Driver {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{
		catalog:     cat,
		coord:       coord,
		maxParallel: maxParallel,
		log:         log.WithField("component", "driver"),
	}
}

// RunCycle performs one incremental ingestion pass over every catalog
// entry and reports the per-sensor outcome.
func (d *Driver) RunCycle(ctx context.Context) CycleOutcome {
	return d.run(ctx, func(ctx context.Context, entry catalog.Entry) ([]models.Observation, error) {
		return d.coord.FetchNew(ctx, entry)
	})
}

// RunSnapshot performs one snapshot ("now") pass over every catalog
// entry. Dedupe relies entirely on the pre-write existence check since
// the snapshot endpoint cannot be time-filtered.
func (d *Driver) RunSnapshot(ctx context.Context) CycleOutcome {
	return d.run(ctx, func(ctx context.Context, entry catalog.Entry) ([]models.Observation, error) {
		return d.coord.FetchSnapshot(ctx, entry.SensorID)
	})
}

func (d *Driver) run(ctx context.Context, fetch func(context.Context, catalog.Entry) ([]models.Observation, error)) CycleOutcome {
	started := time.Now()
	entries := d.catalog.Entries()
	outcome := CycleOutcome{Sensors: len(entries)}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		observations []models.Observation
	)
	sem := make(chan struct{}, d.maxParallel)

	for _, entry := range entries {
		entry := entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			obs, err := fetch(ctx, entry)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.WithField("sensor_id", entry.SensorID).Warnf("sensor fetch failed: %v", err)
				outcome.Errors = append(outcome.Errors, SensorError{SensorID: entry.SensorID, Message: err.Error()})
				return
			}
			observations = append(observations, obs...)
			outcome.Fetched += len(obs)
		}()
	}

	// Merge must not start until every sensor has reported.
	wg.Wait()

	readings := MergeObservations(observations)

	persisted, duplicates, err := d.coord.Persist(ctx, readings)
	outcome.Persisted = persisted
	outcome.Duplicates = duplicates
	if err != nil {
		outcome.Errors = append(outcome.Errors, SensorError{Message: err.Error()})
	}

	d.log.WithFields(logrus.Fields{
		"sensors":    outcome.Sensors,
		"fetched":    outcome.Fetched,
		"persisted":  outcome.Persisted,
		"duplicates": outcome.Duplicates,
		"errors":     len(outcome.Errors),
		"elapsed":    time.Since(started).Round(time.Millisecond),
	}).Info("ingestion cycle complete")

	return outcome
}
