package app

import (
	"context"
	"io"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/config"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
	// EnvFiles are dotenv files loaded before the configuration is read.
	EnvFiles []string
}

type ValidateConfig struct {
	ConfigPath string
	EnvFiles   []string
}

type PrintConfig struct {
	ConfigPath string
	EnvFiles   []string
	Format     config.Format
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.Named("app"),
	}
}

// Serve runs the gateway until ctx ends.
func (a *App) Serve(ctx context.Context, cfg ServeConfig, logging LoggingConfig) error {
	gatewayCfg, err := a.load(ctx, cfg.ConfigPath, cfg.EnvFiles)
	if err != nil {
		return err
	}
	if logging.Level != nil && !logging.LevelPinned {
		if level, err := config.ParseLevel(gatewayCfg.LogLevel); err == nil {
			logging.Level.SetLevel(level)
		}
	}

	application, cleanup, err := InitializeApplication(ctx, cfg, gatewayCfg, logging)
	if err != nil {
		return domain.Wrap(domain.CodeFailedPrecond, "app.serve", err)
	}
	defer cleanup()
	return application.Run()
}

func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	gatewayCfg, err := a.load(ctx, cfg.ConfigPath, cfg.EnvFiles)
	if err != nil {
		return err
	}
	missing := config.MissingCredentials(gatewayCfg.Child.Env)
	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.String("listen", gatewayCfg.ListenAddress),
		zap.Strings("cmd", gatewayCfg.Child.Cmd),
		zap.Strings("missingCredentials", missing),
	)
	return nil
}

// PrintConfig writes the effective configuration with secrets masked.
func (a *App) PrintConfig(ctx context.Context, cfg PrintConfig, w io.Writer) error {
	gatewayCfg, err := a.load(ctx, cfg.ConfigPath, cfg.EnvFiles)
	if err != nil {
		return err
	}
	out, err := config.Render(gatewayCfg, cfg.Format)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func (a *App) load(ctx context.Context, path string, envFiles []string) (domain.Config, error) {
	if err := config.LoadDotenv(envFiles...); err != nil {
		return domain.Config{}, err
	}
	return config.NewLoader(a.logger).Load(ctx, path)
}
