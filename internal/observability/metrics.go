package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are nil-safe.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Turn pipeline
	TurnsTotal         *prometheus.CounterVec
	TurnLatency        *prometheus.HistogramVec
	GenerationAttempts *prometheus.CounterVec
	QuotaDenied        *prometheus.CounterVec
	RetrievalCards     *prometheus.HistogramVec
	RetrievalEvents    *prometheus.CounterVec
	KnowledgeSearches  *prometheus.HistogramVec

	// Aggregates
	AggregateOps       *prometheus.HistogramVec
	AggregateConflicts *prometheus.CounterVec
	AggregateRetries   *prometheus.CounterVec

	// Providers
	ProviderRequests *prometheus.HistogramVec

	// Jobs
	JobsTotal *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics registers collectors on the default registry once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_http_requests_total",
					Help: "HTTP requests by route and status",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_turns_total",
					Help: "Turn submissions by terminal outcome",
				},
				[]string{"outcome"},
			),
			TurnLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_turn_duration_seconds",
					Help:    "End-to-end turn submission latency",
					Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
				},
				[]string{"outcome"},
			),
			GenerationAttempts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_generation_attempts_total",
					Help: "Generation provider calls by prompt variant and result",
				},
				[]string{"variant", "result"},
			),
			QuotaDenied: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_quota_denied_total",
					Help: "Quota denials by reason",
				},
				[]string{"reason"},
			),
			RetrievalCards: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_retrieval_cards",
					Help:    "Cards returned per retrieval by source",
					Buckets: []float64{0, 1, 2, 3, 4, 5},
				},
				[]string{"source"},
			),
			RetrievalEvents: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_retrieval_events_total",
					Help: "Retrieval widening and degradation events",
				},
				[]string{"event"},
			),
			AggregateOps: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_aggregate_operation_duration_seconds",
					Help:    "Aggregate write duration by operation and status",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation", "status"},
			),
			AggregateConflicts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_aggregate_conflicts_total",
					Help: "Aggregate write conflicts",
				},
				[]string{"operation"},
			),
			AggregateRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_aggregate_retries_total",
					Help: "Aggregate retryable failures",
				},
				[]string{"operation"},
			),
			ProviderRequests: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_provider_request_duration_seconds",
					Help:    "Model provider request duration by operation, model and result",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
				},
				[]string{"operation", "model", "result"},
			),
			KnowledgeSearches: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "trainer_knowledge_search_duration_seconds",
					Help:    "Knowledge store search latency by scope and status",
					Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
				},
				[]string{"store", "scope", "status"},
			),
			JobsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trainer_jobs_total",
					Help: "Background jobs by type and result",
				},
				[]string{"type", "result"},
			),
		}
	})
	return sharedMetrics
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ObserveTurn(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncGenerationAttempt(variant, result string) {
	if m == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(variant, result).Inc()
}

func (m *Metrics) IncQuotaDenied(reason string) {
	if m == nil {
		return
	}
	m.QuotaDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRetrieval(source string, n int) {
	if m == nil {
		return
	}
	m.RetrievalCards.WithLabelValues(source).Observe(float64(n))
}

func (m *Metrics) IncRetrievalEvent(event string) {
	if m == nil {
		return
	}
	m.RetrievalEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.AggregateOps.WithLabelValues(name, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.AggregateConflicts.WithLabelValues(name).Inc()
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.AggregateRetries.WithLabelValues(name).Inc()
}

func (m *Metrics) IncJob(jobType, result string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(jobType, result).Inc()
}

func (m *Metrics) ObserveProviderRequest(operation, model, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(operation, model, result).Observe(dur.Seconds())
}

func (m *Metrics) ObserveKnowledgeSearch(store, scope, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.KnowledgeSearches.WithLabelValues(store, scope, status).Observe(dur.Seconds())
}
