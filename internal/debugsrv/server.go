// Package debugsrv exposes the engine's liveness and metrics over plain
// HTTP, mounted on config.DebugListen. It carries none of the session
// protocol; it exists purely so an operator can point curl/Prometheus at
// a running driver.
package debugsrv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthProvider reports whether the driver is accepting traffic.
type HealthProvider interface {
	Healthy() (bool, string)
}

// Server is a small chi-routed HTTP server exposing /healthz and
// /metrics. It owns no sockets of its own beyond the listener http.Server
// creates on Start.
type Server struct {
	router *chi.Mux
	health HealthProvider
	http   *http.Server
}

// New builds the debug server's routes. registry is scraped for /metrics;
// health, if non-nil, backs /healthz's readiness check.
func New(registry *prometheus.Registry, health HealthProvider) *Server {
	s := &Server{router: chi.NewRouter(), health: health}

	r := s.router
	r.Use(chimw.RequestID)
	r.Use(structuredLogger)
	r.Use(recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins serving on addr in a background goroutine. Bind errors other
// than a graceful Shutdown are reported on the returned channel.
func (s *Server) Start(addr string) <-chan error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("debugsrv listening", "addr", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type healthEnvelope struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ok, detail := true, ""
	if s.health != nil {
		ok, detail = s.health.Healthy()
	}

	status := http.StatusOK
	body := healthEnvelope{Status: "ok"}
	if !ok {
		status = http.StatusServiceUnavailable
		body = healthEnvelope{Status: "unhealthy", Detail: detail}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("debugsrv: failed to encode healthz response", "error", err)
	}
}
