package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldChild      = "child"
	FieldMethod     = "method"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldLogStream  = "stream"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventStartAttempt    = "start_attempt"
	EventStartSuccess    = "start_success"
	EventStartFailure    = "start_failure"
	EventStopSuccess     = "stop_success"
	EventStopFailure     = "stop_failure"
	EventReady           = "ready"
	EventProbeFailure    = "probe_failure"
	EventHandshake       = "handshake"
	EventCatalogRefresh  = "catalog_refresh"
	EventCatalogFailure  = "catalog_refresh_failure"
	EventConfigReload    = "config_reload"
	EventHTTPRequest     = "http_request"
	EventHTTPPanic       = "http_panic"
	EventChildOutputDone = "child_output_closed"
)

const (
	LogSourceCore       = "core"
	LogSourceDownstream = "downstream"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ChildField(name string) zap.Field {
	return zap.String(FieldChild, name)
}

func MethodField(method string) zap.Field {
	return zap.String(FieldMethod, method)
}

func RouteField(route string) zap.Field {
	return zap.String(FieldRoute, route)
}

func StatusField(status int) zap.Field {
	return zap.Int(FieldStatus, status)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
