package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lokkagw/internal/domain"
)

type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	Health        *HealthTracker
	Registry      prometheus.Gatherer
}

// ObservabilityServer exposes /metrics and the child health endpoints on a
// listener separate from the gateway API.
//
// /healthz is liveness: it fails only once the child output stream has
// closed, since no request can succeed after that. /readyz additionally fails
// while the startup sequence has not marked the child ready.
type ObservabilityServer struct {
	opts    HTTPServerOptions
	logger  *zap.Logger
	handler http.Handler
}

func NewObservabilityServer(opts HTTPServerOptions, logger *zap.Logger) *ObservabilityServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = domain.DefaultObservabilityListenAddress
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	if opts.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}
	if opts.EnableHealthz {
		mux.Handle("GET /healthz", healthHandler(opts.Health, livenessStatus))
		mux.Handle("GET /readyz", healthHandler(opts.Health, readinessStatus))
	}
	return &ObservabilityServer{
		opts:    opts,
		logger:  logger.Named("observability"),
		handler: mux,
	}
}

func (s *ObservabilityServer) Enabled() bool {
	return s.opts.EnableMetrics || s.opts.EnableHealthz
}

func (s *ObservabilityServer) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx ends. A busy
// address fails immediately.
func (s *ObservabilityServer) Run(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("observability listen on %s: %w", s.opts.Addr, err)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	s.logger.Info("observability server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("metrics", s.opts.EnableMetrics),
		zap.Bool("healthz", s.opts.EnableHealthz),
	)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("observability server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(domain.DefaultShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("observability server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("observability server stopped")
	return nil
}

func livenessStatus(report HealthReport) int {
	if report.Status == HealthStatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func readinessStatus(report HealthReport) int {
	if report.Status != HealthStatusOK {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func healthHandler(tracker *HealthTracker, statusFor func(HealthReport) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: HealthStatusOK, Ready: true}
		if tracker != nil {
			report = tracker.Report()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(statusFor(report))
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
