package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strathmoreaq/airwatch/internal/pipeline"
)

// Store wraps database access for stations and readings.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Station is a persisted station record.
type Station struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reading is a persisted reading record. AQI stays NULL until the
// separate AQI process fills it in.
type Reading struct {
	ID          int64     `json:"id"`
	StationID   int64     `json:"station_id"`
	Station     string    `json:"station,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	PM1         float64   `json:"pm1"`
	PM25        float64   `json:"pm25"`
	PM10        float64   `json:"pm10"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	AQI         *float64  `json:"aqi,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Statements run one at a time: pgx's extended protocol rejects
// multi-statement strings.
var ensureSchemaSQL = []string{
	`CREATE SCHEMA IF NOT EXISTS airwatch`,
	`CREATE TABLE IF NOT EXISTS airwatch.stations (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    location   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS airwatch.readings (
    id          BIGSERIAL PRIMARY KEY,
    station_id  BIGINT NOT NULL REFERENCES airwatch.stations(id) ON DELETE CASCADE,
    ts          TIMESTAMPTZ NOT NULL,
    pm1         DOUBLE PRECISION NOT NULL,
    pm25        DOUBLE PRECISION NOT NULL,
    pm10        DOUBLE PRECISION NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    humidity    DOUBLE PRECISION NOT NULL,
    aqi         DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (station_id, ts)
)`,
	`CREATE INDEX IF NOT EXISTS readings_station_ts_idx
    ON airwatch.readings (station_id, ts DESC)`,
}

// EnsureSchema creates the schema and tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range ensureSchemaSQL {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreateStation returns the id for a station name, creating the
// record with the default location on first sight. Stations are never
// deleted by the ingester.
func (s *Store) GetOrCreateStation(ctx context.Context, name, location string) (int64, error) {
	const insertSQL = `
INSERT INTO airwatch.stations (name, location)
VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING
RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, insertSQL, name, location).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = s.pool.QueryRow(ctx, `SELECT id FROM airwatch.stations WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReadingExists reports whether a reading already exists for the
// (station, timestamp) pair.
func (s *Store) ReadingExists(ctx context.Context, stationID int64, ts time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM airwatch.readings WHERE station_id = $1 AND ts = $2)`,
		stationID, ts).Scan(&exists)
	return exists, err
}

// CreateReading inserts one reading. A unique-constraint conflict means
// another writer got there first; that is a benign duplicate, not an
// error, so the insert is a no-op in that case.
func (s *Store) CreateReading(ctx context.Context, row pipeline.ReadingRow) error {
	const insertSQL = `
INSERT INTO airwatch.readings (station_id, ts, pm1, pm25, pm10, temperature, humidity, aqi)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
ON CONFLICT (station_id, ts) DO NOTHING`

	_, err := s.pool.Exec(ctx, insertSQL,
		row.StationID, row.Timestamp, row.PM1, row.PM25, row.PM10, row.Temperature, row.Humidity)
	return err
}

// LatestReadingTimestamp returns the watermark for a station, or nil
// when the station has no readings yet.
func (s *Store) LatestReadingTimestamp(ctx context.Context, stationID int64) (*time.Time, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT ts FROM airwatch.readings WHERE station_id = $1 ORDER BY ts DESC LIMIT 1`,
		stationID).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

const listStationsSQL = `
SELECT id, name, location, created_at
FROM airwatch.stations
ORDER BY name`

// ListStations returns all stations ordered by name.
func (s *Store) ListStations(ctx context.Context) ([]Station, error) {
	rows, err := s.pool.Query(ctx, listStationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]Station, 0)
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Location, &st.CreatedAt); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// GetStation returns one station by id.
func (s *Store) GetStation(ctx context.Context, id int64) (*Station, error) {
	var st Station
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, location, created_at FROM airwatch.stations WHERE id = $1`,
		id).Scan(&st.ID, &st.Name, &st.Location, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListReadings returns readings for a station, newest first, optionally
// bounded by a time range.
func (s *Store) ListReadings(ctx context.Context, stationID int64, limit int, start, end *time.Time) ([]Reading, error) {
	query := `
SELECT r.id, r.station_id, s.name, r.ts, r.pm1, r.pm25, r.pm10, r.temperature, r.humidity, r.aqi, r.created_at
FROM airwatch.readings r
JOIN airwatch.stations s ON s.id = r.station_id
WHERE r.station_id = $1`
	args := []any{stationID}

	if start != nil {
		args = append(args, *start)
		query += ` AND r.ts >= $` + strconv.Itoa(len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += ` AND r.ts <= $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY r.ts DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

const latestReadingsSQL = `
SELECT DISTINCT ON (r.station_id)
    r.id, r.station_id, s.name, r.ts, r.pm1, r.pm25, r.pm10, r.temperature, r.humidity, r.aqi, r.created_at
FROM airwatch.readings r
JOIN airwatch.stations s ON s.id = r.station_id
ORDER BY r.station_id, r.ts DESC`

// LatestReadings returns the most recent reading per station.
func (s *Store) LatestReadings(ctx context.Context) ([]Reading, error) {
	rows, err := s.pool.Query(ctx, latestReadingsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

const exportReadingsSQL = `
SELECT r.id, r.station_id, s.name, r.ts, r.pm1, r.pm25, r.pm10, r.temperature, r.humidity, r.aqi, r.created_at
FROM airwatch.readings r
JOIN airwatch.stations s ON s.id = r.station_id
ORDER BY s.name, r.ts`

// ExportReadings returns every reading joined with its station name,
// ordered for CSV export.
func (s *Store) ExportReadings(ctx context.Context) ([]Reading, error) {
	rows, err := s.pool.Query(ctx, exportReadingsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func scanReadings(rows pgx.Rows) ([]Reading, error) {
	readings := make([]Reading, 0)
	for rows.Next() {
		var r Reading
		if err := rows.Scan(
			&r.ID,
			&r.StationID,
			&r.Station,
			&r.Timestamp,
			&r.PM1,
			&r.PM25,
			&r.PM10,
			&r.Temperature,
			&r.Humidity,
			&r.AQI,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
