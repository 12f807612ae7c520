// Package castoremetrics exposes Prometheus metrics for store
// operations and evicting-map state, in the gauge/counter/summary shape
// bazel-remote's cache/disk/lru.go registers for its own SizedLRU, and
// using the same client library rclone pulls in (indirectly) for its
// own backend instrumentation.
package castoremetrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics is the metric set one Store backend registers. Create
// one per named store and pass its label value in NewStoreMetrics so
// multiple backends can share a registry without colliding.
type StoreMetrics struct {
	GaugeSizeBytes     prometheus.Gauge
	GaugeSizeBytesLimit prometheus.Gauge
	GaugeEntryCount    prometheus.Gauge
	CounterEvictedBytes prometheus.Counter
	CounterOverwrittenBytes prometheus.Counter
	CounterOpsTotal    *prometheus.CounterVec
	SummaryEntryBytes  prometheus.Summary
}

// NewStoreMetrics builds the metric set for one store, labeled by
// name, but does not register it — call Register to do that once
// during startup, the same split bazel-remote's SizedLRU makes between
// construction and RegisterMetrics().
func NewStoreMetrics(name string) *StoreMetrics {
	return &StoreMetrics{
		GaugeSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "castore_store_size_bytes",
			Help:        "Current number of bytes indexed by this store.",
			ConstLabels: prometheus.Labels{"store": name},
		}),
		GaugeSizeBytesLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "castore_store_size_bytes_limit",
			Help:        "The configured MaxBytes eviction bound for this store, 0 if unbounded.",
			ConstLabels: prometheus.Labels{"store": name},
		}),
		GaugeEntryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "castore_store_entry_count",
			Help:        "Current number of entries indexed by this store.",
			ConstLabels: prometheus.Labels{"store": name},
		}),
		CounterEvictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "castore_store_evicted_bytes_total",
			Help:        "Total bytes evicted from this store due to bound enforcement.",
			ConstLabels: prometheus.Labels{"store": name},
		}),
		CounterOverwrittenBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "castore_store_overwritten_bytes_total",
			Help:        "Total bytes displaced by an Update of an already-present digest.",
			ConstLabels: prometheus.Labels{"store": name},
		}),
		CounterOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "castore_store_operations_total",
			Help:        "Total Store operations, labeled by op and outcome.",
			ConstLabels: prometheus.Labels{"store": name},
		}, []string{"op", "outcome"}),
		SummaryEntryBytes: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:        "castore_store_entry_bytes",
			Help:        "Size distribution of entries written to this store.",
			ConstLabels: prometheus.Labels{"store": name},
			Objectives:  map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}

// Register registers every metric in m against reg.
func (m *StoreMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.GaugeSizeBytes,
		m.GaugeSizeBytesLimit,
		m.GaugeEntryCount,
		m.CounterEvictedBytes,
		m.CounterOverwrittenBytes,
		m.CounterOpsTotal,
		m.SummaryEntryBytes,
	)
}

// ObserveOp records the outcome of one Store operation ("has", "update",
// "get_part") as either "ok" or "error".
func (m *StoreMetrics) ObserveOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CounterOpsTotal.WithLabelValues(op, outcome).Inc()
}
