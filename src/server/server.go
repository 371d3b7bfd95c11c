// Package server exposes the weather module over HTTP
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/weather"
)

// Weather is what the HTTP API serves
type Weather interface {
	Forecast(ctx context.Context, lat, lon float64) (*weather.ForecastReport, error)
	Alerts(ctx context.Context, area string) (*weather.AlertReport, error)
	GetForecast(ctx context.Context, lat, lon float64) (string, error)
	GetAlerts(ctx context.Context, area string) (string, error)
}

// Config holds server settings
type Config struct {
	Listen string
	// Requests per minute per client IP, 0 disables limiting
	RateLimit int
	Version   string
	Commit    string
	BuildDate string
	// Upstream NWS base URL, reported by /api/v1/version
	Upstream string
}

// Server is the HTTP API
type Server struct {
	config  Config
	weather Weather
	logger  *logging.Logger
	engine  *gin.Engine
	started time.Time
}

// New builds the router
func New(config Config, w Weather, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		config:  config,
		weather: w,
		logger:  logger.With("http"),
		started: time.Now(),
	}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(RequestID())
	r.Use(AccessLogger(s.logger))
	r.Use(gin.Recovery())
	// promhttp negotiates its own compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", HeaderXRequestID},
		ExposeHeaders: []string{"Content-Length", HeaderXRequestID},
		MaxAge:        24 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	if s.config.RateLimit > 0 {
		api.Use(RateLimit(s.config.RateLimit, time.Minute))
	}
	api.GET("/forecast", s.handleForecast)
	api.GET("/alerts/:area", s.handleAlerts)
	api.GET("/version", s.handleVersion)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on http://%s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
