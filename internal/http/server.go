// Package http serves liveness, health, readiness and prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trackrelay/internal/core"
)

const (
	serviceName     = "trackrelay"
	livenessBody    = "Bot is running\n"
	shutdownTimeout = 10 * time.Second
)

// Server is the process's HTTP endpoint.
type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	metrics  *Metrics
	ready    atomic.Bool
}

// Metrics are the relay's prometheus collectors, registered on a private registry.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	ProviderCallsTotal *prometheus.CounterVec
	DeliveriesTotal    *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackrelay_requests_total",
				Help: "Total number of track requests handled, by outcome",
			},
			[]string{"outcome"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackrelay_provider_calls_total",
				Help: "Total number of track resolution attempts per provider",
			},
			[]string{"provider", "status"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackrelay_deliveries_total",
				Help: "Total number of delivery attempts, by outcome",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackrelay_request_duration_seconds",
				Help:    "Time spent handling a track request",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"outcome"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackrelay_active_requests",
				Help: "Number of track requests in flight",
			},
		),
	}
}

// NewServer creates the server and registers its metrics.
func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	metrics := newMetrics()
	registry.MustRegister(
		metrics.RequestsTotal,
		metrics.ProviderCallsTotal,
		metrics.DeliveriesTotal,
		metrics.RequestDuration,
		metrics.ActiveRequests,
	)

	s := &Server{
		config:   config,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
	}
	s.server = createHTTPServer(config, setupRoutes(logger, registry, s.ready.Load))

	return s
}

func setupRoutes(logger *zap.Logger, gatherer prometheus.Gatherer, isReady func() bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(logger, w, "application/json", http.StatusOK,
			fmt.Sprintf(`{"status":"ok","service":%q}`, serviceName))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !isReady() {
			writeBody(logger, w, "application/json", http.StatusServiceUnavailable,
				fmt.Sprintf(`{"status":"starting","service":%q}`, serviceName))
			return
		}
		writeBody(logger, w, "application/json", http.StatusOK,
			fmt.Sprintf(`{"status":"ready","service":%q}`, serviceName))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Every other path answers as the liveness check.
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(logger, w, "text/plain", http.StatusOK, livenessBody)
	})

	return mux
}

func writeBody(logger *zap.Logger, w http.ResponseWriter, contentType string, status int, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Debug("Failed to write response body", zap.Error(err))
	}
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// SetReady flips the /readyz answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// RequestStarted marks a track request as in flight.
func (s *Server) RequestStarted() {
	s.metrics.ActiveRequests.Inc()
}

// RequestFinished records the outcome and duration of a track request.
func (s *Server) RequestFinished(outcome string, duration time.Duration) {
	s.metrics.ActiveRequests.Dec()
	s.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.RequestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordDelivery records a delivery attempt's outcome.
func (s *Server) RecordDelivery(outcome string) {
	s.metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall records one provider attempt.
func (s *Server) ObserveProviderCall(provider, status string) {
	s.metrics.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
}
