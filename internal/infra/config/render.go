package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"lokkagw/internal/domain"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

const maskedValue = "********"

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q", value)
	}
}

// formatFromPath picks the source format by file extension, defaulting to YAML.
func formatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// tomlToYAML re-encodes a TOML document as YAML so it can share the
// ${VAR} expansion and viper decoding path.
func tomlToYAML(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode toml as yaml: %w", err)
	}
	return out, nil
}

type document struct {
	ListenAddress string                `yaml:"listenAddress" toml:"listenAddress" json:"listenAddress"`
	LogLevel      string                `yaml:"logLevel" toml:"logLevel" json:"logLevel"`
	Child         childDocument         `yaml:"child" toml:"child" json:"child"`
	Runtime       runtimeDocument       `yaml:"runtime" toml:"runtime" json:"runtime"`
	Observability observabilityDocument `yaml:"observability" toml:"observability" json:"observability"`
}

type childDocument struct {
	Name string            `yaml:"name" toml:"name" json:"name"`
	Cmd  []string          `yaml:"cmd" toml:"cmd" json:"cmd"`
	Env  map[string]string `yaml:"env,omitempty" toml:"env,omitempty" json:"env,omitempty"`
	Cwd  string            `yaml:"cwd,omitempty" toml:"cwd,omitempty" json:"cwd,omitempty"`
}

type runtimeDocument struct {
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds" toml:"requestTimeoutSeconds" json:"requestTimeoutSeconds"`
	CacheTTLMinutes       int    `yaml:"cacheTTLMinutes" toml:"cacheTTLMinutes" json:"cacheTTLMinutes"`
	StartupGraceSeconds   int    `yaml:"startupGraceSeconds" toml:"startupGraceSeconds" json:"startupGraceSeconds"`
	StartupSettleSeconds  int    `yaml:"startupSettleSeconds" toml:"startupSettleSeconds" json:"startupSettleSeconds"`
	ReadinessMode         string `yaml:"readinessMode" toml:"readinessMode" json:"readinessMode"`
	ProbeIntervalMillis   int    `yaml:"probeIntervalMillis" toml:"probeIntervalMillis" json:"probeIntervalMillis"`
	ProbeTimeoutSeconds   int    `yaml:"probeTimeoutSeconds" toml:"probeTimeoutSeconds" json:"probeTimeoutSeconds"`
	Handshake             bool   `yaml:"handshake" toml:"handshake" json:"handshake"`
	ProtocolVersion       string `yaml:"protocolVersion" toml:"protocolVersion" json:"protocolVersion"`
	MaxLineBytes          int    `yaml:"maxLineBytes" toml:"maxLineBytes" json:"maxLineBytes"`
}

type observabilityDocument struct {
	ListenAddress  string `yaml:"listenAddress" toml:"listenAddress" json:"listenAddress"`
	MetricsEnabled bool   `yaml:"metricsEnabled" toml:"metricsEnabled" json:"metricsEnabled"`
	HealthzEnabled bool   `yaml:"healthzEnabled" toml:"healthzEnabled" json:"healthzEnabled"`
}

// Render encodes cfg in the given format with secret env values masked.
func Render(cfg domain.Config, format Format) ([]byte, error) {
	doc := toDocument(cfg)
	switch format {
	case FormatYAML, "":
		return yaml.Marshal(doc)
	case FormatTOML:
		return toml.Marshal(doc)
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func toDocument(cfg domain.Config) document {
	var env map[string]string
	if len(cfg.Child.Env) > 0 {
		env = make(map[string]string, len(cfg.Child.Env))
		for k, v := range cfg.Child.Env {
			if IsSecretKey(k) && v != "" {
				v = maskedValue
			}
			env[k] = v
		}
	}
	rt := cfg.Runtime
	return document{
		ListenAddress: cfg.ListenAddress,
		LogLevel:      cfg.LogLevel,
		Child: childDocument{
			Name: cfg.Child.Name,
			Cmd:  cfg.Child.Cmd,
			Env:  env,
			Cwd:  cfg.Child.Cwd,
		},
		Runtime: runtimeDocument{
			RequestTimeoutSeconds: rt.RequestTimeoutSeconds,
			CacheTTLMinutes:       rt.CacheTTLMinutes,
			StartupGraceSeconds:   rt.StartupGraceSeconds,
			StartupSettleSeconds:  rt.StartupSettleSeconds,
			ReadinessMode:         string(rt.ReadinessMode),
			ProbeIntervalMillis:   rt.ProbeIntervalMillis,
			ProbeTimeoutSeconds:   rt.ProbeTimeoutSeconds,
			Handshake:             rt.Handshake,
			ProtocolVersion:       rt.ProtocolVersion,
			MaxLineBytes:          rt.MaxLineBytes,
		},
		Observability: observabilityDocument{
			ListenAddress:  cfg.Observability.ListenAddress,
			MetricsEnabled: cfg.Observability.MetricsEnabled,
			HealthzEnabled: cfg.Observability.HealthzEnabled,
		},
	}
}
