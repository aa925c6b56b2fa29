package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cortex"

type moduleMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	retryExhausted    *prometheus.CounterVec
	iterationLimit    *prometheus.CounterVec

	cacheLookups       *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	workingEntries   prometheus.Gauge
	workingEvictions prometheus.Counter

	checkpointsTotal   *prometheus.CounterVec
	checkpointDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			operationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_operations_total",
					Help:      "Total memory operations by region, operation and status.",
				},
				[]string{"region", "op", "status"},
			),
			operationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "memory_operation_duration_seconds",
					Help:      "Memory operation duration in seconds, retries included.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"region", "op"},
			),
			retriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_retries_total",
					Help:      "Total retried attempts after a transient failure, by region.",
				},
				[]string{"region"},
			),
			retryExhausted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_retry_limit_exceeded_total",
					Help:      "Operations that failed after exhausting the retry limit, by region.",
				},
				[]string{"region"},
			),
			iterationLimit: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_iteration_limit_exceeded_total",
					Help:      "Composite operations rejected by the iteration budget, by region.",
				},
				[]string{"region"},
			),
			cacheLookups: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_cache_lookups_total",
					Help:      "Lookaside cache lookups by region and result (hit, miss).",
				},
				[]string{"region", "result"},
			),
			cacheInvalidations: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_cache_invalidations_total",
					Help:      "Lookaside cache invalidations by region.",
				},
				[]string{"region"},
			),
			workingEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "working_memory_entries",
					Help:      "Current number of working memory entries.",
				},
			),
			workingEvictions: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "working_memory_evictions_total",
					Help:      "Total working memory entries evicted by capacity.",
				},
			),
			checkpointsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "memory_checkpoints_total",
					Help:      "Store checkpoints by region and status.",
				},
				[]string{"region", "status"},
			),
			checkpointDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "memory_checkpoint_duration_seconds",
					Help:      "Store checkpoint duration in seconds by region.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"region"},
			),
		}

		prometheus.MustRegister(
			m.operationsTotal,
			m.operationDuration,
			m.retriesTotal,
			m.retryExhausted,
			m.iterationLimit,
			m.cacheLookups,
			m.cacheInvalidations,
			m.workingEntries,
			m.workingEvictions,
			m.checkpointsTotal,
			m.checkpointDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordOperation records one coordinator call, retries included.
func RecordOperation(region, op string, duration time.Duration, success bool) {
	m := getMetrics()
	m.operationsTotal.WithLabelValues(region, op, status(success)).Inc()
	m.operationDuration.WithLabelValues(region, op).Observe(duration.Seconds())
}

func RecordRetry(region string) {
	getMetrics().retriesTotal.WithLabelValues(region).Inc()
}

func RecordRetryExhausted(region string) {
	getMetrics().retryExhausted.WithLabelValues(region).Inc()
}

func RecordIterationLimit(region string) {
	getMetrics().iterationLimit.WithLabelValues(region).Inc()
}

func RecordCacheLookup(region string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	getMetrics().cacheLookups.WithLabelValues(region, result).Inc()
}

func RecordCacheInvalidation(region string) {
	getMetrics().cacheInvalidations.WithLabelValues(region).Inc()
}

func SetWorkingEntries(n int) {
	getMetrics().workingEntries.Set(float64(n))
}

func RecordWorkingEviction() {
	getMetrics().workingEvictions.Inc()
}

func RecordCheckpoint(region string, duration time.Duration, success bool) {
	m := getMetrics()
	m.checkpointsTotal.WithLabelValues(region, status(success)).Inc()
	m.checkpointDuration.WithLabelValues(region).Observe(duration.Seconds())
}
