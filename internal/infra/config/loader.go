package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lokkagw/internal/domain"
)

const (
	DefaultConfigPath = "lokkagw.yaml"
	envPrefix         = "LOKKAGW"
	portEnv           = "PORT"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listenAddress", domain.DefaultListenAddress)
	v.SetDefault("logLevel", domain.DefaultLogLevel)
	v.SetDefault("child.name", "lokka")
	v.SetDefault("child.cmd", domain.DefaultChildCommand)
	v.SetDefault("child.cwd", "")
	v.SetDefault("runtime.requestTimeoutSeconds", domain.DefaultRequestTimeoutSeconds)
	v.SetDefault("runtime.cacheTTLMinutes", domain.DefaultCacheTTLMinutes)
	v.SetDefault("runtime.startupGraceSeconds", domain.DefaultStartupGraceSeconds)
	v.SetDefault("runtime.startupSettleSeconds", domain.DefaultStartupSettleSeconds)
	v.SetDefault("runtime.readinessMode", string(domain.DefaultReadinessMode))
	v.SetDefault("runtime.probeIntervalMillis", domain.DefaultProbeIntervalMillis)
	v.SetDefault("runtime.probeTimeoutSeconds", domain.DefaultProbeTimeoutSeconds)
	v.SetDefault("runtime.handshake", false)
	v.SetDefault("runtime.protocolVersion", domain.DefaultProtocolVersion)
	v.SetDefault("runtime.maxLineBytes", domain.DefaultMaxLineBytes)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metricsEnabled", true)
	v.SetDefault("observability.healthzEnabled", true)
}

type rawConfig struct {
	ListenAddress string                 `mapstructure:"listenAddress"`
	LogLevel      string                 `mapstructure:"logLevel"`
	Child         rawChildSpec           `mapstructure:"child"`
	Runtime       rawRuntimeConfig       `mapstructure:"runtime"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
}

type rawChildSpec struct {
	Name string            `mapstructure:"name"`
	Cmd  []string          `mapstructure:"cmd"`
	Env  map[string]string `mapstructure:"env"`
	Cwd  string            `mapstructure:"cwd"`
}

type rawRuntimeConfig struct {
	RequestTimeoutSeconds int    `mapstructure:"requestTimeoutSeconds"`
	CacheTTLMinutes       int    `mapstructure:"cacheTTLMinutes"`
	StartupGraceSeconds   int    `mapstructure:"startupGraceSeconds"`
	StartupSettleSeconds  int    `mapstructure:"startupSettleSeconds"`
	ReadinessMode         string `mapstructure:"readinessMode"`
	ProbeIntervalMillis   int    `mapstructure:"probeIntervalMillis"`
	ProbeTimeoutSeconds   int    `mapstructure:"probeTimeoutSeconds"`
	Handshake             bool   `mapstructure:"handshake"`
	ProtocolVersion       string `mapstructure:"protocolVersion"`
	MaxLineBytes          int    `mapstructure:"maxLineBytes"`
}

type rawObservabilityConfig struct {
	ListenAddress  string `mapstructure:"listenAddress"`
	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	HealthzEnabled bool   `mapstructure:"healthzEnabled"`
}

// Load reads the YAML (or .toml) file at path, expands ${VAR} references and applies
// LOKKAGW_* and PORT overrides. A missing file yields the defaults.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	data, err := l.readFile(path)
	if err != nil {
		return domain.Config{}, err
	}
	if formatFromPath(path) == FormatTOML && len(bytes.TrimSpace(data)) > 0 {
		if data, err = tomlToYAML(data); err != nil {
			return domain.Config{}, err
		}
	}

	expanded := ""
	if len(bytes.TrimSpace(data)) > 0 {
		var missing []string
		expanded, missing, err = expandConfigEnv(data)
		if err != nil {
			return domain.Config{}, err
		}
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
		}
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	// Viper lowercases map keys; env names are case-sensitive.
	env, err := decodeChildEnv(expanded)
	if err != nil {
		return domain.Config{}, err
	}
	raw.Child.Env = env

	cfg, errs := normalizeConfig(raw)
	if port, ok := os.LookupEnv(portEnv); ok && strings.TrimSpace(port) != "" {
		addr, err := overridePort(cfg.ListenAddress, strings.TrimSpace(port))
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			cfg.ListenAddress = addr
		}
	}

	creds, err := LoadCredentials()
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Child.Env = creds.MergeInto(cfg.Child.Env)
	if missing := MissingCredentials(cfg.Child.Env); len(missing) > 0 {
		l.logger.Warn("child credentials incomplete", zap.Strings("missing", missing))
	}

	errs = append(errs, validateConfig(cfg)...)
	if len(errs) > 0 {
		return domain.Config{}, domain.E(domain.CodeInvalidArgument, "config.load", strings.Join(errs, "; "), nil)
	}
	return cfg, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Info("config file not found; using defaults", zap.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

func normalizeConfig(raw rawConfig) (domain.Config, []string) {
	var errs []string

	mode := domain.ReadinessMode(strings.ToLower(strings.TrimSpace(raw.Runtime.ReadinessMode)))
	switch mode {
	case "":
		mode = domain.DefaultReadinessMode
	case domain.ReadinessDelay, domain.ReadinessProbe:
	default:
		errs = append(errs, fmt.Sprintf("runtime.readinessMode must be %q or %q", domain.ReadinessDelay, domain.ReadinessProbe))
	}

	cfg := domain.Config{
		ListenAddress: strings.TrimSpace(raw.ListenAddress),
		LogLevel:      strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		Child: domain.ChildSpec{
			Name: strings.TrimSpace(raw.Child.Name),
			Cmd:  raw.Child.Cmd,
			Env:  copyEnv(raw.Child.Env),
			Cwd:  raw.Child.Cwd,
		},
		Runtime: domain.RuntimeConfig{
			RequestTimeoutSeconds: raw.Runtime.RequestTimeoutSeconds,
			CacheTTLMinutes:       raw.Runtime.CacheTTLMinutes,
			StartupGraceSeconds:   raw.Runtime.StartupGraceSeconds,
			StartupSettleSeconds:  raw.Runtime.StartupSettleSeconds,
			ReadinessMode:         mode,
			ProbeIntervalMillis:   raw.Runtime.ProbeIntervalMillis,
			ProbeTimeoutSeconds:   raw.Runtime.ProbeTimeoutSeconds,
			Handshake:             raw.Runtime.Handshake,
			ProtocolVersion:       strings.TrimSpace(raw.Runtime.ProtocolVersion),
			MaxLineBytes:          raw.Runtime.MaxLineBytes,
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress:  strings.TrimSpace(raw.Observability.ListenAddress),
			MetricsEnabled: raw.Observability.MetricsEnabled,
			HealthzEnabled: raw.Observability.HealthzEnabled,
		},
	}
	if cfg.Child.Name == "" && len(cfg.Child.Cmd) > 0 {
		cfg.Child.Name = cfg.Child.Cmd[0]
	}
	if cfg.Runtime.ProtocolVersion == "" {
		cfg.Runtime.ProtocolVersion = domain.DefaultProtocolVersion
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = domain.DefaultLogLevel
	}
	return cfg, errs
}

func validateConfig(cfg domain.Config) []string {
	var errs []string
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, fmt.Sprintf("listenAddress %q is invalid: %v", cfg.ListenAddress, err))
	}
	if len(cfg.Child.Cmd) == 0 || strings.TrimSpace(cfg.Child.Cmd[0]) == "" {
		errs = append(errs, "child.cmd is required")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	rt := cfg.Runtime
	if rt.RequestTimeoutSeconds <= 0 {
		errs = append(errs, "runtime.requestTimeoutSeconds must be > 0")
	}
	if rt.CacheTTLMinutes <= 0 {
		errs = append(errs, "runtime.cacheTTLMinutes must be > 0")
	}
	if rt.StartupGraceSeconds < 0 {
		errs = append(errs, "runtime.startupGraceSeconds must be >= 0")
	}
	if rt.StartupSettleSeconds < 0 {
		errs = append(errs, "runtime.startupSettleSeconds must be >= 0")
	}
	if rt.ReadinessMode == domain.ReadinessProbe {
		if rt.ProbeIntervalMillis <= 0 {
			errs = append(errs, "runtime.probeIntervalMillis must be > 0")
		}
		if rt.ProbeTimeoutSeconds <= 0 {
			errs = append(errs, "runtime.probeTimeoutSeconds must be > 0")
		}
	}
	if rt.MaxLineBytes <= 0 {
		errs = append(errs, "runtime.maxLineBytes must be > 0")
	}
	obs := cfg.Observability
	if obs.MetricsEnabled || obs.HealthzEnabled {
		if _, _, err := net.SplitHostPort(obs.ListenAddress); err != nil {
			errs = append(errs, fmt.Sprintf("observability.listenAddress %q is invalid: %v", obs.ListenAddress, err))
		}
	}
	return errs
}

func overridePort(addr, port string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return "", fmt.Errorf("PORT %q is invalid", port)
	}
	return net.JoinHostPort(host, port), nil
}

func decodeChildEnv(expanded string) (map[string]string, error) {
	var doc struct {
		Child struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"child"`
	}
	if strings.TrimSpace(expanded) == "" {
		return nil, nil
	}
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("decode child.env: %w", err)
	}
	return doc.Child.Env, nil
}

func copyEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
