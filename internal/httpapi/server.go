package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/backfill"
	"github.com/aeris-project/aeris/internal/owm"
	"github.com/aeris-project/aeris/internal/pipeline"
	"github.com/aeris-project/aeris/internal/scheduler"
	"github.com/aeris-project/aeris/internal/store"
	"github.com/aeris-project/aeris/internal/weather"
)

// WeatherReader is the store surface the read endpoints use.
type WeatherReader interface {
	Latest(ctx context.Context, city string) (*weather.Measurement, error)
	History(ctx context.Context, city string, days int) ([]*weather.Measurement, error)
	Summarize(ctx context.Context, city string, days int) (*store.Summary, error)
	Stats(ctx context.Context) (*store.DatabaseStats, error)
}

// LiveFetcher is the fallback for cities with no stored data yet.
type LiveFetcher interface {
	Current(ctx context.Context, city string) (*weather.Measurement, error)
	UsageStats() owm.UsageStats
}

// Runner triggers manual pipeline runs.
type Runner interface {
	RunUpdate(ctx context.Context) (*pipeline.RunResult, error)
	RunBackfill(ctx context.Context) (*pipeline.RunResult, error)
	Cities() []string
}

// JobReporter exposes scheduler state.
type JobReporter interface {
	Status() scheduler.Status
}

// BackfillReporter exposes coverage state.
type BackfillReporter interface {
	Status(ctx context.Context, cityNames []string, expectedDays int) (*backfill.Verdict, error)
}

// Config carries the server settings.
type Config struct {
	ListenAddr   string
	BearerToken  string
	DefaultDays  int
	ExpectedDays int
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      Config
	reader   WeatherReader
	fetcher  LiveFetcher
	runner   Runner
	jobs     JobReporter
	tracker  BackfillReporter
	engine   *gin.Engine
	log      zerolog.Logger
}

// New constructs a server with routes and middleware.
func New(cfg Config, reader WeatherReader, fetcher LiveFetcher, runner Runner, jobs JobReporter, tracker BackfillReporter, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	server := &Server{
		cfg:     cfg,
		reader:  reader,
		fetcher: fetcher,
		runner:  runner,
		jobs:    jobs,
		tracker: tracker,
		engine:  engine,
		log:     log,
	}
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
		Addr:    s.cfg.ListenAddr,
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
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	v1.GET("/weather/current/:city", s.handleCurrent)
	v1.GET("/weather/history/:city", s.handleHistory)
	v1.GET("/weather/summary/:city", s.handleSummary)
	v1.GET("/cities", s.handleCities)

	v1.POST("/admin/update", s.handleManualUpdate)
	v1.GET("/admin/status", s.handleSystemStatus)
	v1.GET("/admin/backfill-status", s.handleBackfillStatus)
	v1.GET("/admin/jobs", s.handleJobs)
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
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "aeris API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}
