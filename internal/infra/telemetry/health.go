package telemetry

import (
	"time"
)

// ReadinessSource reports whether the child accepts requests and, once its
// output stream has closed, why.
type ReadinessSource interface {
	Ready() bool
	Err() error
}

type HealthTracker struct {
	source  ReadinessSource
	started time.Time
	now     func() time.Time
}

type HealthReport struct {
	Status        string  `json:"status"`
	Ready         bool    `json:"ready"`
	Error         string  `json:"error,omitempty"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

const (
	HealthStatusOK       = "ok"
	HealthStatusStarting = "starting"
	HealthStatusDown     = "down"
)

func NewHealthTracker(source ReadinessSource) *HealthTracker {
	return &HealthTracker{
		source:  source,
		started: time.Now(),
		now:     time.Now,
	}
}

func (h *HealthTracker) Report() HealthReport {
	report := HealthReport{
		Status:        HealthStatusOK,
		UptimeSeconds: h.now().Sub(h.started).Seconds(),
	}
	if h.source == nil {
		report.Ready = true
		return report
	}
	if err := h.source.Err(); err != nil {
		report.Status = HealthStatusDown
		report.Error = err.Error()
		return report
	}
	report.Ready = h.source.Ready()
	if !report.Ready {
		report.Status = HealthStatusStarting
	}
	return report
}
