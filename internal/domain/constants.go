package domain

const (
	DefaultProtocolVersion            = "2025-06-18"
	DefaultListenAddress              = "0.0.0.0:3000"
	DefaultRequestTimeoutSeconds      = 10
	DefaultCacheTTLMinutes            = 60
	DefaultStartupGraceSeconds        = 3
	DefaultStartupSettleSeconds       = 15
	DefaultReadinessMode              = ReadinessDelay
	DefaultProbeIntervalMillis        = 500
	DefaultProbeTimeoutSeconds        = 2
	DefaultMaxLineBytes               = 16 * 1024 * 1024
	DefaultShutdownTimeoutSeconds     = 5
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
	DefaultLogLevel                   = "info"
	DefaultClientName                 = "lokkagw"
	DefaultClientVersion              = "0.1.0"
)

// DefaultChildCommand launches the Lokka MCP server through npx.
var DefaultChildCommand = []string{"npx", "-y", "@merill/lokka"}
