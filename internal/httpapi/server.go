package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strathmoreaq/airwatch/internal/config"
	"github.com/strathmoreaq/airwatch/internal/db"
	"github.com/strathmoreaq/airwatch/internal/pipeline"
)

// Store is the read/query surface the API needs from the database.
type Store interface {
	ListStations(ctx context.Context) ([]db.Station, error)
	GetStation(ctx context.Context, id int64) (*db.Station, error)
	ListReadings(ctx context.Context, stationID int64, limit int, start, end *time.Time) ([]db.Reading, error)
	LatestReadings(ctx context.Context) ([]db.Reading, error)
	ExportReadings(ctx context.Context) ([]db.Reading, error)
}

// Ingester triggers ingestion cycles on demand.
type Ingester interface {
	RunCycle(ctx context.Context) pipeline.CycleOutcome
	RunSnapshot(ctx context.Context) pipeline.CycleOutcome
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      config.Config
	store    Store
	ingester Ingester
	engine   *gin.Engine
}

// New constructs a server with routes and middleware. The ingester may
// be nil, in which case the trigger endpoints respond 503.
func New(cfg config.Config, store Store, ingester Ingester) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, store: store, ingester: ingester, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	v1.GET("/stations", s.handleListStations)
	v1.GET("/stations/:id", s.handleGetStation)
	v1.GET("/stations/:id/readings", s.handleListReadings)
	v1.GET("/readings/latest", s.handleLatestReadings)
	v1.GET("/readings/export", s.handleExportReadings)
	v1.POST("/ingest/run", s.handleRunIngest)
	v1.POST("/ingest/snapshot", s.handleRunSnapshot)
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
