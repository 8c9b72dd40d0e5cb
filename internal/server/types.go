package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// estimator defines the methods needed by the server from a pipeline.
type estimator interface {
	Run(ctx context.Context, req estimate.Request) (*estimate.Result, error)
	Info() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    estimator
	corsOrigin  string
	maxBodyKB   int64
	timeoutSec  int
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	MaxBodyKB  int64
	TimeoutSec int
	Estimation estimate.Config
	RateLimit  RateLimitConfig
	Logger     *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type InfoResponse struct {
	Version   string         `json:"version"`
	GitCommit string         `json:"git_commit"`
	Relations []string       `json:"relations"`
	Pipeline  map[string]any `json:"pipeline"`
}

type EstimateResponse struct {
	Success   bool             `json:"success"`
	RequestID string           `json:"request_id,omitempty"`
	Result    *estimate.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NewServer creates a new estimation server instance.
func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pl, err := estimate.NewBuilder().
		WithConfig(config.Estimation).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:   pl,
		corsOrigin: config.CORSOrigin,
		maxBodyKB:  config.MaxBodyKB,
		timeoutSec: config.TimeoutSec,
		logger:     logger,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	s.pipeline = nil
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/info", s.corsMiddleware(s.infoHandler))

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return s.corsMiddleware(s.requestIDMiddleware(s.rateLimitMiddleware(h)))
	}
	mux.HandleFunc("/v1/estimate", api(s.estimateHandler("")))
	mux.HandleFunc("/v1/fundamental", api(s.estimateHandler(estimate.KindFundamental)))
	mux.HandleFunc("/v1/essential", api(s.estimateHandler(estimate.KindEssential)))
	mux.HandleFunc("/v1/homography", api(s.estimateHandler(estimate.KindHomography)))
	mux.HandleFunc("/v1/trifocal", api(s.estimateHandler(estimate.KindTrifocal)))
	mux.HandleFunc("/ws/estimate", s.requestIDMiddleware(s.estimateWebSocketHandler))
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
