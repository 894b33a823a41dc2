// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package observability serves Prometheus metrics and health probes on a
// listener separate from the public API.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 2 * time.Second

// Probe status values.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// Check reports whether one dependency can serve traffic.
type Check func(ctx context.Context) error

// Metrics contains the gatekeep request and pipeline counters.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	SignInTotal   *prometheus.CounterVec
	SignUpTotal   *prometheus.CounterVec
}

// NewMetrics creates the gatekeep counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		SignInTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_signin_total",
				Help: "Total number of sign-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		SignUpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_signup_total",
				Help: "Total number of sign-up attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.SignInTotal, m.SignUpTotal)
	return m
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:9100".
	Addr string
	// Checks are run by the readiness probe, keyed by name. The service is
	// ready when every check passes.
	Checks map[string]Check
	// CheckTimeout defaults to DefaultCheckTimeout.
	CheckTimeout time.Duration
	// Collectors are registered next to the built-in metrics.
	Collectors []prometheus.Collector
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	opts     Options
	registry *prometheus.Registry
	metrics  *Metrics
	handler  http.Handler

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer builds a Server on a private registry holding the Go runtime,
// process and gatekeep collectors plus opts.Collectors.
func NewServer(opts Options) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)
	registry.MustRegister(opts.Collectors...)

	s := &Server{
		opts:     opts,
		registry: registry,
		metrics:  metrics,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	s.handler = mux

	return s
}

// Metrics returns the counters the HTTP API records into.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the probe and metrics routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// The returned channel receives a serve failure, and is closed once the
// server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_ALREADY_RUNNING").Errorf("observability server already running")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.opts.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			s.opts.Logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.opts.Logger.Info("observability server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop shuts the server down, waiting for open requests until ctx is done.
// Stopping a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if err := srv.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
	}

	s.opts.Logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, probeReport{Status: StatusOK})
}

// handleReadiness runs every check in name order and answers 503 when any
// of them fails. Failure detail goes to the log only.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := probeReport{Status: StatusOK, Checks: make(map[string]string, len(s.opts.Checks))}

	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckTimeout)
		err := s.opts.Checks[name](ctx)
		cancel()

		if err != nil {
			s.opts.Logger.Warn("readiness check failed", "check", name, "error", err)
			report.Status = StatusUnavailable
			report.Checks[name] = StatusUnavailable
			continue
		}
		report.Checks[name] = StatusOK
	}

	status := http.StatusOK
	if report.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	writeReport(w, status, report)
}

func writeReport(w http.ResponseWriter, status int, report probeReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the prober may already have gone away
	json.NewEncoder(w).Encode(report)
}
