package aggregates

import (
	"time"

	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

// Hooks receives aggregate write signals.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type metricsHooks struct {
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewMetricsHooks reports aggregate writes to Prometheus; log may be nil.
func NewMetricsHooks(metrics *observability.Metrics, log *logger.Logger) Hooks {
	if metrics == nil && log == nil {
		return noopHooks{}
	}
	return &metricsHooks{metrics: metrics, log: log}
}

func (h *metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(name, status, dur)
	if h.log != nil && status != "success" {
		h.log.Debug("aggregate write finished", "op", name, "status", status, "duration_ms", dur.Milliseconds())
	}
}

func (h *metricsHooks) IncConflict(name string) {
	h.metrics.IncAggregateConflict(name)
}

func (h *metricsHooks) IncRetry(name string) {
	h.metrics.IncAggregateRetry(name)
}
