package pipeline

import (
	"sort"
	"time"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/models"
)

// bucketKey groups observations by station and minute-truncated time.
// Truncation (not rounding) keeps bucketing deterministic and monotonic.
type bucketKey struct {
	station string
	minute  time.Time
}

type bucket struct {
	first  models.Observation
	fields map[string]float64
}

// MergeObservations combines the cycle's observations into canonical
// readings, one per (station, minute). Within a bucket later values
// overwrite earlier ones field by field, so a particulate-only payload
// and a climate-only payload for the same station and minute collapse
// into a single complete record regardless of arrival order. Arrival
// order from concurrent fetches is arbitrary, so observations are
// ordered by raw timestamp first: the emitted record carries the
// earliest raw timestamp in the bucket (never the truncated key) and
// the latest value per field. Only canonical fields survive the merge;
// preserved unknown fields are carried along in observations but never
// emitted.
func MergeObservations(observations []models.Observation) []models.Reading {
	sorted := make([]models.Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].SensorID < sorted[j].SensorID
	})

	buckets := make(map[bucketKey]*bucket)
	order := make([]bucketKey, 0)

	for _, obs := range sorted {
		key := bucketKey{station: obs.Station, minute: obs.Timestamp.UTC().Truncate(time.Minute)}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{first: obs, fields: make(map[string]float64)}
			buckets[key] = b
			order = append(order, key)
		}
		for name, value := range obs.Fields {
			b.fields[name] = value
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].station != order[j].station {
			return order[i].station < order[j].station
		}
		return order[i].minute.Before(order[j].minute)
	})

	readings := make([]models.Reading, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		reading := models.Reading{
			Station:   b.first.Station,
			Location:  b.first.Location,
			Timestamp: b.first.Timestamp,
		}
		reading.PM1 = fieldValue(b.fields, catalog.FieldPM1)
		reading.PM25 = fieldValue(b.fields, catalog.FieldPM25)
		reading.PM10 = fieldValue(b.fields, catalog.FieldPM10)
		reading.Temperature = fieldValue(b.fields, catalog.FieldTemperature)
		reading.Humidity = fieldValue(b.fields, catalog.FieldHumidity)
		readings = append(readings, reading)
	}
	return readings
}

func fieldValue(fields map[string]float64, name string) *float64 {
	if v, ok := fields[name]; ok {
		value := v
		return &value
	}
	return nil
}
