//go:build wireinject
// +build wireinject

package app

import "github.com/google/wire"

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewCommandLauncher,
	NewChildProcess,
	NewHealthTracker,
	NewObservabilityOptions,
)

var BridgeSet = wire.NewSet(
	NewCorrelator,
	NewLineFramer,
	NewToolCache,
	NewPingProbe,
	NewInitializer,
	NewStartupSequencer,
)

var ServerSet = wire.NewSet(
	NewHTTPHandler,
	NewHTTPServer,
	NewConfigWatcher,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	BridgeSet,
	ServerSet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
