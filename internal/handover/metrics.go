package handover

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report handover activity.
type Metrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	active   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once so
// constructing several Coordinators does not trigger duplicate registration
// panics.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests to keep metric names independent. A
// registration error panics, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "baton",
			Subsystem: "handover",
			Name:      "duration_seconds",
			Help:      "Wall-clock time of one handover, by stage reached and terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "baton",
			Subsystem: "handover",
			Name:      "failures_total",
			Help:      "Handovers that did not produce a TaskResult, by reason.",
		},
		[]string{"reason"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "baton",
			Subsystem: "handover",
			Name:      "active",
			Help:      "Handovers currently in flight.",
		},
	)

	for _, collector := range []prometheus.Collector{duration, failures, active} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector.(type) {
				case *prometheus.HistogramVec:
					duration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					failures = already.ExistingCollector.(*prometheus.CounterVec)
				case prometheus.Gauge:
					active = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{duration: duration, failures: failures, active: active}
}

// ObserveHandover records the duration of one handover attempt.
func (m *Metrics) ObserveHandover(stage, status string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// IncFailure counts a handover that ended without a TaskResult.
func (m *Metrics) IncFailure(reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

// IncActive marks a handover as in flight.
func (m *Metrics) IncActive() {
	if m == nil || m.active == nil {
		return
	}
	m.active.Inc()
}

// DecActive marks a handover as finished.
func (m *Metrics) DecActive() {
	if m == nil || m.active == nil {
		return
	}
	m.active.Dec()
}
