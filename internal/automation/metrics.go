package automation

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "graylogic_scenes"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	executions     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	dedupHits      prometheus.Counter
	actionFailures *prometheus.CounterVec
	unknownActions prometheus.Counter
	pending        prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "executions_total",
			Help:      "Scene jobs finished, by scene and status.",
		}, []string{"scene", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of a scene job from dequeue to completion.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"scene"}),

		dedupHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dedup_hits_total",
			Help:      "Scene start requests collapsed because the scope had already dispatched the scene.",
		}),

		actionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "action_failures_total",
			Help:      "Actions that failed and were skipped, by action type.",
		}, []string{"type"}),

		unknownActions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unknown_actions_total",
			Help:      "Actions skipped because their type is not recognised.",
		}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_pending",
			Help:      "Scene jobs waiting on the dispatch queue.",
		}),
	}
}

// ObserveExecution implements ExecutionObserver.
func (m *Metrics) ObserveExecution(_ context.Context, exec *SceneExecution) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(exec.SceneSelector, string(exec.Status)).Inc()
	if exec.Status != StatusNotFound {
		m.duration.WithLabelValues(exec.SceneSelector).Observe(float64(exec.DurationMS) / 1000)
	}
}

func (m *Metrics) dedupHit() {
	if m != nil {
		m.dedupHits.Inc()
	}
}

func (m *Metrics) actionFailed(t ActionType) {
	if m != nil {
		m.actionFailures.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) unknownAction() {
	if m != nil {
		m.unknownActions.Inc()
	}
}

func (m *Metrics) queueDepth(n int) {
	if m != nil {
		m.pending.Set(float64(n))
	}
}
