package httpapi

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strathmoreaq/airwatch/internal/db"
)

const (
	defaultReadingLimit = 200
	maxReadingLimit     = 5000
	queryTimeout        = 10 * time.Second
	ingestTimeout       = 2 * time.Minute
)

// handleListStations returns all stations.
// GET /api/v1/stations
func (s *Server) handleListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stations, err := s.store.ListStations(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{"count": len(stations)},
	})
}

// handleGetStation returns one station.
// GET /api/v1/stations/:id
func (s *Server) handleGetStation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	station, err := s.store.GetStation(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": station})
}

// handleListReadings returns readings for a station, newest first.
// GET /api/v1/stations/:id/readings?limit=&start=&end=
func (s *Server) handleListReadings(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station id"})
		return
	}

	limit := defaultReadingLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxReadingLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	start, err := timeParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start timestamp"})
		return
	}
	end, err := timeParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end timestamp"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	readings, err := s.store.ListReadings(ctx, id, limit, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": readings,
		"meta": gin.H{"count": len(readings)},
	})
}

// handleLatestReadings returns the most recent reading per station.
// GET /api/v1/readings/latest
func (s *Server) handleLatestReadings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	readings, err := s.store.LatestReadings(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": readings,
		"meta": gin.H{"count": len(readings)},
	})
}

// handleExportReadings streams every reading as CSV.
// GET /api/v1/readings/export
func (s *Server) handleExportReadings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	readings, err := s.store.ExportReadings(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="readings.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"station", "timestamp", "pm1", "pm25", "pm10", "temperature", "humidity", "aqi"})
	for _, r := range readings {
		aqi := ""
		if r.AQI != nil {
			aqi = strconv.FormatFloat(*r.AQI, 'f', -1, 64)
		}
		_ = w.Write([]string{
			r.Station,
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.PM1, 'f', -1, 64),
			strconv.FormatFloat(r.PM25, 'f', -1, 64),
			strconv.FormatFloat(r.PM10, 'f', -1, 64),
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strconv.FormatFloat(r.Humidity, 'f', -1, 64),
			aqi,
		})
	}
	w.Flush()
}

// handleRunIngest runs one incremental ingestion cycle.
// POST /api/v1/ingest/run
func (s *Server) handleRunIngest(c *gin.Context) {
	s.runIngestion(c, func(ctx context.Context) any {
		return s.ingester.RunCycle(ctx)
	})
}

// handleRunSnapshot runs one snapshot ingestion pass.
// POST /api/v1/ingest/snapshot
func (s *Server) handleRunSnapshot(c *gin.Context) {
	s.runIngestion(c, func(ctx context.Context) any {
		return s.ingester.RunSnapshot(ctx)
	})
}

func (s *Server) runIngestion(c *gin.Context, run func(context.Context) any) {
	if s.ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion not available"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{"data": run(ctx)})
}

func timeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	ts = ts.UTC()
	return &ts, nil
}
