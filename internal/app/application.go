package app

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/config"
	"lokkagw/internal/infra/httpapi"
	"lokkagw/internal/infra/telemetry"
	"lokkagw/internal/infra/transport"
)

// Application wires the gateway runtime and its dependencies.
type Application struct {
	ctx        context.Context
	configPath string
	cfg        domain.Config

	logger        *zap.Logger
	child         *ChildProcess
	correlator    *transport.Correlator
	framer        *transport.LineFramer
	sequencer     *Sequencer
	server        *httpapi.Server
	observability telemetry.HTTPServerOptions
	watcher       *config.Watcher
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context       context.Context
	ServeConfig   ServeConfig
	Config        domain.Config
	Logger        *zap.Logger
	Child         *ChildProcess
	Correlator    *transport.Correlator
	Framer        *transport.LineFramer
	Sequencer     *Sequencer
	Server        *httpapi.Server
	Observability telemetry.HTTPServerOptions
	Watcher       *config.Watcher
}

// NewApplication constructs the gateway runtime.
func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Application{
		ctx:           ctx,
		configPath:    opts.ServeConfig.ConfigPath,
		cfg:           opts.Config,
		logger:        logger.Named("app"),
		child:         opts.Child,
		correlator:    opts.Correlator,
		framer:        opts.Framer,
		sequencer:     opts.Sequencer,
		server:        opts.Server,
		observability: opts.Observability,
		watcher:       opts.Watcher,
	}
}

// Run serves HTTP while the child output is pumped and the startup sequence
// runs. It blocks until the context ends or the HTTP listener fails, then
// stops the child.
func (a *Application) Run() error {
	a.logger.Info("configuration loaded",
		zap.String("config", a.configPath),
		zap.String("listen", a.cfg.ListenAddress),
		telemetry.ChildField(a.cfg.Child.Name),
		zap.String("readinessMode", string(a.cfg.Runtime.ReadinessMode)),
	)

	group, ctx := errgroup.WithContext(a.ctx)

	group.Go(func() error {
		err := a.correlator.Serve(a.child.Stdout, a.framer)
		if err != nil && ctx.Err() == nil && !errors.Is(err, io.ErrClosedPipe) {
			a.logger.Error("child output stream failed", zap.Error(err))
		}
		return nil
	})
	group.Go(func() error {
		return a.server.Run(ctx)
	})
	group.Go(func() error {
		if err := telemetry.NewObservabilityServer(a.observability, a.logger).Run(ctx); err != nil {
			a.logger.Warn("observability server stopped", zap.Error(err))
		}
		return nil
	})
	group.Go(func() error {
		return a.sequencer.Run(ctx)
	})
	if a.watcher != nil {
		group.Go(func() error {
			if err := a.watcher.Run(ctx); err != nil {
				a.logger.Warn("config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		a.correlator.SetReady(false)
		if err := a.child.Stop(); err != nil {
			a.logger.Warn("child stop failed", zap.Error(err))
		}
		return nil
	})

	err := group.Wait()
	a.logger.Info("gateway stopped")
	return err
}
