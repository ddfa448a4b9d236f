package telemetry

import (
	"time"

	"lokkagw/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveChildCall(_ string, _ domain.CallStatus, _ time.Duration) {}

func (n *NoopMetrics) ObserveCatalogRefresh(_ error, _ time.Duration) {}

func (n *NoopMetrics) SetCatalogTools(_ int) {}

func (n *NoopMetrics) ObserveHTTPRequest(_ string, _ int, _ time.Duration) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
