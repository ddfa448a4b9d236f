package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/probe"
	"lokkagw/internal/infra/telemetry"
)

// ReadyFlag is the readiness switch guarding child calls.
type ReadyFlag interface {
	SetReady(ready bool)
	Ready() bool
}

// CatalogRefresher refreshes the tool catalog.
type CatalogRefresher interface {
	Get(ctx context.Context, forceRefresh bool) (domain.ToolCatalogSnapshot, error)
}

type Pinger interface {
	Ping(ctx context.Context, caller domain.Caller) error
}

type Handshaker interface {
	Initialize(ctx context.Context, session probe.Session) (probe.InitializeResult, error)
}

// Sequencer brings a freshly launched child into service: it waits for
// readiness, optionally performs the MCP handshake, and warms the tool
// catalog once.
type Sequencer struct {
	session    probe.Session
	ready      ReadyFlag
	catalog    CatalogRefresher
	pinger     Pinger
	handshaker Handshaker
	mode       domain.ReadinessMode
	grace      time.Duration
	interval   time.Duration
	settle     time.Duration
	handshake  bool
	logger     *zap.Logger
}

type SequencerOptions struct {
	// Session reaches the child before it is marked ready.
	Session       probe.Session
	Ready         ReadyFlag
	Catalog       CatalogRefresher
	Pinger        Pinger
	Handshaker    Handshaker
	Mode          domain.ReadinessMode
	Grace         time.Duration
	ProbeInterval time.Duration
	Settle        time.Duration
	Handshake     bool
	Logger        *zap.Logger
}

func NewSequencer(opts SequencerOptions) *Sequencer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.DefaultReadinessMode
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = time.Duration(domain.DefaultProbeIntervalMillis) * time.Millisecond
	}
	return &Sequencer{
		session:    opts.Session,
		ready:      opts.Ready,
		catalog:    opts.Catalog,
		pinger:     opts.Pinger,
		handshaker: opts.Handshaker,
		mode:       mode,
		grace:      opts.Grace,
		interval:   interval,
		settle:     opts.Settle,
		handshake:  opts.Handshake,
		logger:     logger.Named("startup"),
	}
}

// Run executes the startup sequence once. It returns early without error
// when ctx ends; warm-up failures are logged and never fatal.
func (s *Sequencer) Run(ctx context.Context) error {
	started := time.Now()
	if !s.awaitReadiness(ctx) {
		return nil
	}
	s.ready.SetReady(true)
	s.logger.Info("child marked ready",
		telemetry.EventField(telemetry.EventReady),
		zap.String("mode", string(s.mode)),
		telemetry.DurationField(time.Since(started)),
	)

	if s.handshake {
		s.initialize(ctx)
	}

	if !sleep(ctx, s.settle) {
		return nil
	}
	if s.catalog == nil {
		return nil
	}
	snap, err := s.catalog.Get(ctx, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("initial tool catalog load failed; it will be retried on demand",
			telemetry.EventField(telemetry.EventCatalogFailure),
			zap.Error(err),
		)
		return nil
	}
	s.logger.Info("initial tool catalog loaded", zap.Int("tools", snap.Count()))
	return nil
}

// awaitReadiness reports false only when ctx ended. In probe mode an
// unanswered probe still ends in readiness once the grace period is spent.
func (s *Sequencer) awaitReadiness(ctx context.Context) bool {
	if s.mode != domain.ReadinessProbe || s.pinger == nil || s.session == nil {
		return sleep(ctx, s.grace)
	}

	deadline := time.Now().Add(s.grace)
	for attempt := 1; ; attempt++ {
		err := s.pinger.Ping(ctx, s.session)
		if err == nil {
			s.logger.Debug("child answered ping", zap.Int("attempt", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.logger.Warn("child did not answer ping within grace period; continuing",
				telemetry.EventField(telemetry.EventProbeFailure),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return true
		}
		if !sleep(ctx, min(s.interval, remaining)) {
			return false
		}
	}
}

func (s *Sequencer) initialize(ctx context.Context) {
	if s.handshaker == nil || s.session == nil {
		return
	}
	result, err := s.handshaker.Initialize(ctx, s.session)
	if err != nil {
		s.logger.Warn("mcp handshake failed",
			telemetry.EventField(telemetry.EventHandshake),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("mcp handshake completed",
		telemetry.EventField(telemetry.EventHandshake),
		zap.String("protocolVersion", result.ProtocolVersion),
		zap.String("server", result.ServerName),
		zap.String("serverVersion", result.ServerVersion),
	)
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
