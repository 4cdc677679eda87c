// Package pipeline implements the ingestion core: normalizing raw
// upstream payloads, resolving stations, merging multi-sensor readings
// by time bucket, and writing them to the store without duplicates.
package pipeline

import (
	"context"
	"time"

	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

// Store is the persistence contract the pipeline writes through.
type Store interface {
	GetOrCreateStation(ctx context.Context, name, location string) (int64, error)
	ReadingExists(ctx context.Context, stationID int64, ts time.Time) (bool, error)
	CreateReading(ctx context.Context, row ReadingRow) error
	LatestReadingTimestamp(ctx context.Context, stationID int64) (*time.Time, error)
}

// UpstreamClient is the slice of the sensors.africa client the pipeline
// needs.
type UpstreamClient interface {
	Measurements(ctx context.Context, sensorID int, since *time.Time) ([]sensorsafrica.Item, error)
	Now(ctx context.Context, sensorID int) ([]sensorsafrica.Item, error)
}

// ReadingRow is the fully-populated record handed to the store. The
// storage schema requires every numeric column, so fields the sensors
// never reported are zero-filled here, at the write boundary, and
// nowhere earlier. AQI is never set: upstream does not supply it.
type ReadingRow struct {
	StationID   int64
	Timestamp   time.Time
	PM1         float64
	PM25        float64
	PM10        float64
	Temperature float64
	Humidity    float64
}

// SensorError records an upstream failure for a single sensor. One
// failed sensor never aborts the cycle for the others.
type SensorError struct {
	SensorID int    `json:"sensor_id"`
	Message  string `json:"error"`
}

// CycleOutcome summarizes one ingestion pass over the catalog.
type CycleOutcome struct {
	Sensors    int           `json:"sensors"`
	Fetched    int           `json:"fetched"`
	Persisted  int           `json:"persisted"`
	Duplicates int           `json:"duplicates"`
	Errors     []SensorError `json:"errors,omitempty"`
}

// AllFailed reports whether no sensor produced data and every sensor
// errored, which is the only case the ingest binary exits non-zero for.
func (o CycleOutcome) AllFailed() bool {
	return o.Sensors > 0 && len(o.Errors) == o.Sensors
}
