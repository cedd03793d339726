package sync

import (
	gosync "sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	prometheusTimeouts           *prometheus.CounterVec
	prometheusRetries            *prometheus.CounterVec
	prometheusDiscarded          *prometheus.CounterVec
	prometheusHeadersAdded       prometheus.Counter
	prometheusBlocksPersisted    prometheus.Counter
	prometheusCachedBlocks       prometheus.Gauge
	prometheusBlocksInFlight     prometheus.Gauge
	prometheusHealthReplacements prometheus.Counter
	prometheusMetricsInitOnce    gosync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "request_timeouts",
		Help:      "Number of requests that were not answered in time",
	}, []string{"kind"})
	prometheusRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "request_retries",
		Help:      "Number of timed out requests sent again to another node",
	}, []string{"kind"})
	prometheusDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "discarded_responses",
		Help:      "Number of headers and block messages that were not used",
	}, []string{"kind", "status"})
	prometheusHeadersAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "headers_added",
		Help:      "Number of headers added to the header chain",
	})
	prometheusBlocksPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "blocks_persisted",
		Help:      "Number of downloaded blocks persisted",
	})
	prometheusCachedBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "cached_blocks",
		Help:      "Number of downloaded blocks waiting to be persisted",
	})
	prometheusBlocksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "blocks_in_flight",
		Help:      "Number of requested blocks not received yet",
	})
	prometheusHealthReplacements = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "neonode",
		Subsystem: "sync",
		Name:      "health_replacements",
		Help:      "Number of times every node was replaced because the chain stalled",
	})

	prometheus.MustRegister(
		prometheusTimeouts,
		prometheusRetries,
		prometheusDiscarded,
		prometheusHeadersAdded,
		prometheusBlocksPersisted,
		prometheusCachedBlocks,
		prometheusBlocksInFlight,
		prometheusHealthReplacements,
	)
}
