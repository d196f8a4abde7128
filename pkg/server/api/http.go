// Package api provides the HTTP and WebSocket endpoints of the price node.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
)

// SnapshotBuilder runs one aggregation pass.
type SnapshotBuilder interface {
	Build() *snapshot.Snapshot
}

// HealthReporter is implemented by every rate source.
type HealthReporter interface {
	Name() string
	IsHealthy() bool
	LastUpdate() time.Time
}

// Options configures the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSCert      string
	TLSKey       string
	Version      string

	// WebSocketPath mounts the snapshot stream when WebSocket is set.
	WebSocketPath string
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string

	RateLimit      bool
	RequestsPerSec float64
	Burst          int
}

// Server represents the HTTP API server.
type Server struct {
	opts    Options
	builder SnapshotBuilder
	health  []HealthReporter
	ws      *WebSocketServer
	router  *mux.Router
	server  *http.Server
	logger  *logging.Logger

	limiter     *RateLimiter
	ctx         context.Context
	stopCleanup context.CancelFunc
}

// NewServer creates the HTTP API server and registers its routes.
func NewServer(opts Options, builder SnapshotBuilder, health []HealthReporter, ws *WebSocketServer, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	s := &Server{
		opts:    opts,
		builder: builder,
		health:  health,
		ws:      ws,
		logger:  logger.With("component", "api"),
	}
	s.ctx, s.stopCleanup = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(s.logger))
	r.Use(MetricsMiddleware)
	if s.opts.RateLimit {
		s.limiter = NewRateLimiter(s.opts.RequestsPerSec, s.opts.Burst, s.logger)
		r.Use(s.limiter.Handler)
	}

	r.HandleFunc("/getAllMarketPrices", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/v1/prices", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.opts.MetricsPath != "" {
		r.Handle(s.opts.MetricsPath, metrics.Handler()).Methods(http.MethodGet)
	}
	if s.ws != nil && s.opts.WebSocketPath != "" {
		r.Handle(s.opts.WebSocketPath, s.ws)
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.opts.Addr, "tls", s.opts.TLSCert != "")
	if s.limiter != nil {
		s.limiter.StartCleanup(s.ctx, limiterCleanupInterval, maxLimiters)
	}

	var err error
	if s.opts.TLSCert != "" {
		err = s.server.ListenAndServeTLS(s.opts.TLSCert, s.opts.TLSKey)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.stopCleanup()
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleSnapshot runs a fresh aggregation pass and returns the snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.builder.Build(), s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version}, s.logger)
}

type sourceHealth struct {
	Healthy    bool  `json:"healthy"`
	LastUpdate int64 `json:"lastUpdateSec"`
}

// handleHealth reports 200 while at least one source is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := make(map[string]sourceHealth, len(s.health))
	healthy := 0
	for _, h := range s.health {
		ok := h.IsHealthy()
		if ok {
			healthy++
		}
		var last int64
		if t := h.LastUpdate(); !t.IsZero() {
			last = t.Unix()
		}
		report[h.Name()] = sourceHealth{Healthy: ok, LastUpdate: last}
	}

	status := http.StatusOK
	state := "ok"
	if len(s.health) > 0 && healthy == 0 {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":  state,
		"sources": report,
	}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
