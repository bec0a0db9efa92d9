// Package metrics exposes Prometheus collectors and a rolling latency window for
// document operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts operations by name and result (ok, input_error, error).
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docrev_operations_total",
		Help: "Document operations by operation and result",
	}, []string{"operation", "result"})

	// operationDuration tracks operation latency.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docrev_operation_duration_seconds",
		Help:    "Document operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"operation"})

	// revisionIDsTotal counts ids handled by accept/reject.
	revisionIDsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docrev_revision_ids_total",
		Help: "Revision ids handled by accept/reject, by action and outcome",
	}, []string{"action", "outcome"})

	// documentBytes tracks uploaded package sizes.
	documentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docrev_document_bytes",
		Help:    "Size of processed document packages in bytes",
		Buckets: prometheus.ExponentialBuckets(4096, 4, 8), // 4KB to ~64MB
	})

	// batchJobsTotal counts finished batch jobs by final status.
	batchJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docrev_batch_jobs_total",
		Help: "Finished batch jobs by status",
	}, []string{"status"})

	// queueDepth is the number of batch jobs waiting for a worker.
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docrev_batch_queue_depth",
		Help: "Batch jobs waiting for a worker",
	})
)

// ObserveOperation records one finished operation.
func ObserveOperation(operation, result string, size int, d time.Duration) {
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(d.Seconds())
	if size > 0 {
		documentBytes.Observe(float64(size))
	}
}

// ObserveMutation records processed and warning id counts for an action.
func ObserveMutation(action string, processed, warnings int) {
	revisionIDsTotal.WithLabelValues(action, "processed").Add(float64(processed))
	revisionIDsTotal.WithLabelValues(action, "warning").Add(float64(warnings))
}

// ObserveJob records a batch job reaching a final status.
func ObserveJob(status string) {
	batchJobsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth reports the current batch queue length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
