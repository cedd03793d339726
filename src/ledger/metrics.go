package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	prometheusBlockHeight     prometheus.Gauge
	prometheusHeaderHeight    prometheus.Gauge
	prometheusPersistedTxs    prometheus.Counter
	prometheusPersistDuration prometheus.Histogram
	prometheusMemPoolSize     prometheus.Gauge
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "ledger",
		Name:      "block_height",
		Help:      "Index of the current block",
	})
	prometheusHeaderHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "ledger",
		Name:      "header_height",
		Help:      "Index of the highest known header",
	})
	prometheusPersistedTxs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "ledger",
		Name:      "persisted_transactions",
		Help:      "Number of transactions persisted",
	})
	prometheusPersistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "neonode",
		Subsystem: "ledger",
		Name:      "persist_seconds",
		Help:      "Time taken to persist one block",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	prometheusMemPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "ledger",
		Name:      "mempool_transactions",
		Help:      "Number of transactions in the memory pool",
	})

	prometheus.MustRegister(
		prometheusBlockHeight,
		prometheusHeaderHeight,
		prometheusPersistedTxs,
		prometheusPersistDuration,
		prometheusMemPoolSize,
	)
}
