package memo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for one Store. All recording
// methods are nil-safe so an uninstrumented Store costs nothing.
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	staleServed   prometheus.Counter
	coalesced     prometheus.Counter
	bypassed      prometheus.Counter
	refreshes     prometheus.Counter
	failures      prometheus.Counter
	invalidations *prometheus.CounterVec
	entries       prometheus.Gauge
}

// NewMetrics registers and returns cache metrics on the given registry.
// Pass prometheus.DefaultRegisterer for the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "strata"
	}
	factory := promauto.With(reg)

	return &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "hits_total",
			Help: "Cache reads served from a live entry",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "misses_total",
			Help: "Cache reads that invoked the producer",
		}),
		staleServed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "stale_served_total",
			Help: "Stale values returned while a background refresh ran",
		}),
		coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "coalesced_total",
			Help: "Callers that attached to an in-flight computation",
		}),
		bypassed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "bypassed_total",
			Help: "Dynamic-tier computations that skipped the cache",
		}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "refreshes_total",
			Help: "Background revalidations triggered by stale reads",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "failures_total",
			Help: "Producer executions that returned an error",
		}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "invalidations_total",
			Help: "Entries removed by explicit invalidation",
		}, []string{"reason"}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "memo",
			Name: "entries",
			Help: "Live cache entries",
		}),
	}
}

func (m *Metrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) recordStaleServed() {
	if m != nil {
		m.staleServed.Inc()
	}
}

func (m *Metrics) recordCoalesced() {
	if m != nil {
		m.coalesced.Inc()
	}
}

func (m *Metrics) recordBypass() {
	if m != nil {
		m.bypassed.Inc()
	}
}

func (m *Metrics) recordRefresh() {
	if m != nil {
		m.refreshes.Inc()
	}
}

func (m *Metrics) recordFailure() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *Metrics) recordInvalidation(reason string, n int) {
	if m != nil {
		m.invalidations.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) setEntries(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}
