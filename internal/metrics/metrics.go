// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 4c1a7e93-0d5b-4f28-96e3-b8a2d7c05f1e

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediashare"

var (
	registerOnce sync.Once

	operationStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_started_total",
		Help:      "Total number of background operations started by type",
	}, []string{"type"})
	operationCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_completed_total",
		Help:      "Total number of background operations successfully completed by type",
	}, []string{"type"})
	operationFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_failed_total",
		Help:      "Total number of background operations failed by type",
	}, []string{"type"})
	operationRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_rejected_total",
		Help:      "Total number of operations rejected because the queue was full",
	}, []string{"type"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Histogram of operation durations in seconds by type",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 14), // ~50ms up to a few minutes
	}, []string{"type"})

	metadataLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metadata_lookups_total",
		Help:      "Metadata resolutions by outcome (hit, remote, fallback)",
	}, []string{"outcome"})
	remoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "metadata_remote_duration_seconds",
		Help:      "Latency of remote metadata searches",
		Buckets:   prometheus.DefBuckets,
	})
	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	relayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_connections",
		Help:      "Currently connected watch-party clients",
	})
	relayMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_messages_total",
		Help:      "Watch-party frames by direction (in, out, dropped)",
	}, []string{"direction"})

	visitorsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "visitors",
		Help:      "Distinct visitors currently tracked",
	})
	memoryAllocGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_memory_alloc_bytes",
		Help:      "Current process memory allocation (runtime.Alloc)",
	})
	goroutinesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_goroutines",
		Help:      "Number of currently running goroutines",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operationStarted, operationCompleted, operationFailed, operationRejected, operationDuration,
			metadataLookups, remoteDuration, breakerState,
			relayConnections, relayMessages,
			visitorsGauge, memoryAllocGauge, goroutinesGauge)
	})
}

// Operation lifecycle helpers
func IncOperationStarted(opType string)   { operationStarted.WithLabelValues(opType).Inc() }
func IncOperationCompleted(opType string) { operationCompleted.WithLabelValues(opType).Inc() }
func IncOperationFailed(opType string)    { operationFailed.WithLabelValues(opType).Inc() }
func IncOperationRejected(opType string)  { operationRejected.WithLabelValues(opType).Inc() }
func ObserveOperationDuration(opType string, d time.Duration) {
	operationDuration.WithLabelValues(opType).Observe(d.Seconds())
}

// Metadata helpers
func IncMetadataLookup(outcome string)       { metadataLookups.WithLabelValues(outcome).Inc() }
func ObserveRemoteLookup(d time.Duration)    { remoteDuration.Observe(d.Seconds()) }
func SetBreakerState(name string, v float64) { breakerState.WithLabelValues(name).Set(v) }

// Relay helpers
func SetRelayConnections(n int)        { relayConnections.Set(float64(n)) }
func IncRelayMessage(direction string) { relayMessages.WithLabelValues(direction).Inc() }

// Gauges
func SetVisitors(n int)       { visitorsGauge.Set(float64(n)) }
func SetMemoryAlloc(b uint64) { memoryAllocGauge.Set(float64(b)) }
func SetGoroutines(n int)     { goroutinesGauge.Set(float64(n)) }
