package domain

import "time"

// ReadinessMode selects how the startup sequencer decides the child is ready.
type ReadinessMode string

const (
	// ReadinessDelay waits a fixed grace period.
	ReadinessDelay ReadinessMode = "delay"
	// ReadinessProbe polls the child with ping requests during the grace period.
	ReadinessProbe ReadinessMode = "probe"
)

// Config is the normalized gateway configuration.
type Config struct {
	ListenAddress string
	LogLevel      string
	Child         ChildSpec
	Runtime       RuntimeConfig
	Observability ObservabilityConfig
}

// ChildSpec describes how to launch the child process.
type ChildSpec struct {
	Name string
	Cmd  []string
	Env  map[string]string
	Cwd  string
}

// RuntimeConfig holds the tunables of the correlation and cache layers.
type RuntimeConfig struct {
	RequestTimeoutSeconds int
	CacheTTLMinutes       int
	StartupGraceSeconds   int
	StartupSettleSeconds  int
	ReadinessMode         ReadinessMode
	ProbeIntervalMillis   int
	ProbeTimeoutSeconds   int
	Handshake             bool
	ProtocolVersion       string
	MaxLineBytes          int
}

// ObservabilityConfig controls the metrics and health listener.
type ObservabilityConfig struct {
	ListenAddress  string
	MetricsEnabled bool
	HealthzEnabled bool
}

func (r RuntimeConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSeconds) * time.Second
}

func (r RuntimeConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

func (r RuntimeConfig) StartupGrace() time.Duration {
	return time.Duration(r.StartupGraceSeconds) * time.Second
}

func (r RuntimeConfig) StartupSettle() time.Duration {
	return time.Duration(r.StartupSettleSeconds) * time.Second
}

func (r RuntimeConfig) ProbeInterval() time.Duration {
	return time.Duration(r.ProbeIntervalMillis) * time.Millisecond
}

func (r RuntimeConfig) ProbeTimeout() time.Duration {
	return time.Duration(r.ProbeTimeoutSeconds) * time.Second
}

// Tunables are the runtime values that may change without a restart.
type Tunables struct {
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	LogLevel       string
}

// Tunables extracts the hot-reloadable subset of the configuration.
func (c Config) Tunables() Tunables {
	return Tunables{
		RequestTimeout: c.Runtime.RequestTimeout(),
		CacheTTL:       c.Runtime.CacheTTL(),
		LogLevel:       c.LogLevel,
	}
}
