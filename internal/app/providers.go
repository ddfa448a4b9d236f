package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/config"
	"lokkagw/internal/infra/httpapi"
	"lokkagw/internal/infra/probe"
	"lokkagw/internal/infra/telemetry"
	"lokkagw/internal/infra/toolcache"
	"lokkagw/internal/infra/transport"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewCommandLauncher(logger *zap.Logger) domain.Launcher {
	return transport.NewCommandLauncher(transport.CommandLauncherOptions{Logger: logger})
}

func NewChildProcess(ctx context.Context, launcher domain.Launcher, cfg domain.Config) (*ChildProcess, func(), error) {
	return StartChildProcess(ctx, launcher, cfg)
}

func NewCorrelator(child *ChildProcess, cfg domain.Config, metrics domain.Metrics, logger *zap.Logger) *transport.Correlator {
	return transport.NewCorrelator(transport.CorrelatorOptions{
		Writer:  child.Stdin,
		Logger:  logger,
		Metrics: metrics,
		Timeout: cfg.Runtime.RequestTimeout(),
	})
}

func NewLineFramer(cfg domain.Config) *transport.LineFramer {
	return transport.NewLineFramer(cfg.Runtime.MaxLineBytes)
}

func NewHealthTracker(correlator *transport.Correlator) *telemetry.HealthTracker {
	return telemetry.NewHealthTracker(correlator)
}

func NewToolCache(correlator *transport.Correlator, cfg domain.Config, metrics domain.Metrics, logger *zap.Logger) *toolcache.Cache {
	return toolcache.New(toolcache.Options{
		Caller:  correlator,
		Logger:  logger,
		Metrics: metrics,
		TTL:     cfg.Runtime.CacheTTL(),
	})
}

func NewPingProbe(cfg domain.Config) *probe.PingProbe {
	return &probe.PingProbe{Timeout: cfg.Runtime.ProbeTimeout()}
}

func NewInitializer(cfg domain.Config) *probe.Initializer {
	return &probe.Initializer{
		ProtocolVersion: cfg.Runtime.ProtocolVersion,
		ClientName:      domain.DefaultClientName,
		ClientVersion:   Version,
	}
}

func NewStartupSequencer(
	correlator *transport.Correlator,
	cache *toolcache.Cache,
	pinger *probe.PingProbe,
	initializer *probe.Initializer,
	cfg domain.Config,
	logger *zap.Logger,
) *Sequencer {
	return NewSequencer(SequencerOptions{
		Session:       correlator.Unguarded(),
		Ready:         correlator,
		Catalog:       cache,
		Pinger:        pinger,
		Handshaker:    initializer,
		Mode:          cfg.Runtime.ReadinessMode,
		Grace:         cfg.Runtime.StartupGrace(),
		ProbeInterval: cfg.Runtime.ProbeInterval(),
		Settle:        cfg.Runtime.StartupSettle(),
		Handshake:     cfg.Runtime.Handshake,
		Logger:        logger,
	})
}

func NewHTTPHandler(
	correlator *transport.Correlator,
	cache *toolcache.Cache,
	cfg domain.Config,
	metrics domain.Metrics,
	logger *zap.Logger,
) *httpapi.Handler {
	return httpapi.NewHandler(httpapi.Options{
		Bridge:       correlator,
		Catalog:      cache,
		Logger:       logger,
		Metrics:      metrics,
		MaxBodyBytes: int64(cfg.Runtime.MaxLineBytes),
	})
}

func NewHTTPServer(handler *httpapi.Handler, cfg domain.Config, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(httpapi.ServerOptions{
		Addr:    cfg.ListenAddress,
		Handler: handler,
		Logger:  logger,
	})
}

func NewObservabilityOptions(cfg domain.Config, registry *prometheus.Registry, health *telemetry.HealthTracker) telemetry.HTTPServerOptions {
	return telemetry.HTTPServerOptions{
		Addr:          cfg.Observability.ListenAddress,
		EnableMetrics: cfg.Observability.MetricsEnabled,
		EnableHealthz: cfg.Observability.HealthzEnabled,
		Health:        health,
		Registry:      registry,
	}
}

func NewConfigWatcher(
	serve ServeConfig,
	cfg domain.Config,
	correlator *transport.Correlator,
	cache *toolcache.Cache,
	logging Logging,
) *config.Watcher {
	return config.NewWatcher(config.WatcherOptions{
		Path:    serve.ConfigPath,
		Loader:  config.NewLoader(logging.Logger),
		Logger:  logging.Logger,
		Initial: cfg,
		Apply:   tunableApplier(correlator, cache, logging),
	})
}

// TimeoutSink receives a reloaded request timeout.
type TimeoutSink interface {
	SetTimeout(timeout time.Duration)
}

// TTLSink receives a reloaded catalog TTL.
type TTLSink interface {
	SetTTL(ttl time.Duration)
}

func tunableApplier(timeouts TimeoutSink, ttls TTLSink, logging Logging) func(domain.Tunables) {
	return func(t domain.Tunables) {
		timeouts.SetTimeout(t.RequestTimeout)
		ttls.SetTTL(t.CacheTTL)
		if logging.Level == nil || logging.LevelPinned {
			return
		}
		level, err := config.ParseLevel(t.LogLevel)
		if err != nil {
			logging.Logger.Warn("ignoring reloaded log level", zap.Error(err))
			return
		}
		logging.Level.SetLevel(level)
	}
}
