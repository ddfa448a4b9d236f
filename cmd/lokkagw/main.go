package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lokkagw/internal/app"
	"lokkagw/internal/domain"
	"lokkagw/internal/infra/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	envFiles   []string
	dev        bool

	logger *zap.Logger
	level  zap.AtomicLevel
}

func main() {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	err := root.Execute()
	if opts.logger != nil {
		_ = opts.logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	opts.configPath = config.DefaultConfigPath

	root := &cobra.Command{
		Use:           "lokkagw",
		Short:         "HTTP gateway for the Lokka MCP server",
		Version:       fmt.Sprintf("%s (%s)", app.Version, app.Build),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, level, err := buildLogger(opts.logLevel, opts.dev)
			if err != nil {
				return err
			}
			opts.logger = logger
			opts.level = level
			return nil
		},
	}

	bindPersistentFlags(root.PersistentFlags(), opts)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gateway configuration",
	}
	configCmd.AddCommand(newConfigPrintCmd(opts))

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		configCmd,
	)

	return root
}

func bindPersistentFlags(flags *pflag.FlagSet, opts *rootOptions) {
	flags.StringVar(&opts.configPath, "config", opts.configPath, "path to gateway config file (yaml or toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logLevel in config")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading config (default .env)")
	flags.BoolVar(&opts.dev, "dev", false, "human readable development logging")
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch Lokka and serve the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
				EnvFiles:   opts.envFiles,
			}, app.LoggingConfig{
				Logger:      opts.logger,
				Level:       &opts.level,
				LevelPinned: opts.logLevel != "",
			})
		},
	}

	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate gateway configuration without launching Lokka",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(opts.logger)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
				EnvFiles:   opts.envFiles,
			})
		},
	}

	return cmd
}

func newConfigPrintCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := config.ParseFormat(format)
			if err != nil {
				return err
			}
			application := app.New(opts.logger)
			return application.PrintConfig(cmd.Context(), app.PrintConfig{
				ConfigPath: opts.configPath,
				EnvFiles:   opts.envFiles,
				Format:     parsed,
			}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.FormatYAML), "output format (yaml, toml, json)")

	return cmd
}

// buildLogger returns a logger whose level can be moved later. Without an
// explicit level it starts at the default and follows the config file.
func buildLogger(levelFlag string, dev bool) (*zap.Logger, zap.AtomicLevel, error) {
	levelName := levelFlag
	if levelName == "" {
		levelName = domain.DefaultLogLevel
	}
	lvl, err := config.ParseLevel(levelName)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, level, nil
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
