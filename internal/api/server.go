// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves the administrative HTTP surface of the flow control engine.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/flowshell/internal/burst"
	"grimm.is/flowshell/internal/clock"
	"grimm.is/flowshell/internal/controller"
	"grimm.is/flowshell/internal/controlloop"
	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/topology"
	"grimm.is/flowshell/internal/traffic"
)

// ServerConfig holds HTTP server hardening settings.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	// MaxCaptureBytes limits uploads to /replay, which bypass MaxBodyBytes.
	MaxCaptureBytes int64
	// StreamInterval is the push period of /ws/metrics.
	StreamInterval time.Duration
	// ShutdownTimeout bounds graceful shutdown in Serve.
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// WriteTimeout stays zero: /ws/metrics holds its connection open.
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 16,
		MaxBodyBytes:    1 << 20,
		MaxCaptureBytes: 64 << 20,
		StreamInterval:  2 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Options holds dependencies for the API server. Table, Counter, Controller
// and Injector are required; the rest are optional.
type Options struct {
	Table      *flowtable.Table
	Counter    *traffic.Counter
	Controller *controller.Controller
	Injector   *burst.Injector
	Topology   *topology.Store
	Loop       *controlloop.Loop
	Dispatch   *dispatch.Adapter
	Registry   *dispatch.Registry
	Metrics    *metrics.Engine
	Mode       string
	Config     ServerConfig
	Logger     *logging.Logger
}

// Server handles API requests.
type Server struct {
	table      *flowtable.Table
	counter    *traffic.Counter
	controller *controller.Controller
	injector   *burst.Injector
	topology   *topology.Store
	loop       *controlloop.Loop
	dispatch   *dispatch.Adapter
	registry   *dispatch.Registry
	metrics    *metrics.Engine
	mode       string
	config     ServerConfig
	logger     *logging.Logger
	startTime  time.Time

	router *mux.Router

	// quit is closed on shutdown to end hijacked /ws/metrics connections,
	// which http.Server.Shutdown does not track.
	quit     chan struct{}
	quitOnce sync.Once
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("api")
	}
	cfg := opts.Config
	if cfg == (ServerConfig{}) {
		cfg = DefaultServerConfig()
	}
	topo := opts.Topology
	if topo == nil {
		topo = topology.NewStore(topology.Empty(), logger)
	}

	s := &Server{
		table:      opts.Table,
		counter:    opts.Counter,
		controller: opts.Controller,
		injector:   opts.Injector,
		topology:   topo,
		loop:       opts.Loop,
		dispatch:   opts.Dispatch,
		registry:   opts.Registry,
		metrics:    opts.Metrics,
		mode:       opts.Mode,
		config:     cfg,
		logger:     logger,
		startTime:  clock.Now(),
		router:     mux.NewRouter(),
		quit:       make(chan struct{}),
	}
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	r := s.router

	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/topology", s.handleTopology).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/simulate_burst", s.handleSimulateBurst).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(replayPath, s.handleReplay).Methods(http.MethodPost)

	flows := r.PathPrefix("/flows").Subrouter()
	flows.HandleFunc("", s.handleListFlows).Methods(http.MethodGet)
	flows.HandleFunc("", s.handleAddFlow).Methods(http.MethodPost)
	flows.HandleFunc("/{id}", s.handleGetFlow).Methods(http.MethodGet)
	flows.HandleFunc("/{id}", s.handleModifyFlow).Methods(http.MethodPut)
	flows.HandleFunc("/{id}", s.handleDeleteFlow).Methods(http.MethodDelete)

	if s.metrics != nil {
		r.Handle("/api/prometheus", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws/metrics", s.handleMetricsStream).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Handler returns the router wrapped in the request logging and body limit
// middleware.
func (s *Server) Handler() http.Handler {
	return logging.MiddlewareWithLogger(s.logger)(maxBodyMiddleware(s.config.MaxBodyBytes)(s.router))
}

// HTTPServer returns an http.Server for addr with the configured timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := s.HTTPServer(ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.quitOnce.Do(func() { close(s.quit) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("API server shutdown incomplete", "error", err)
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// maxBodyMiddleware limits the size of request bodies.
func maxBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || r.URL.Path == replayPath || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "Request entity too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
