// Package metrics exposes prometheus collectors for the orchestrator.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "xwhep"
	subsystem = "client"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_total",
			Help:      "Total number of work submissions by outcome",
		},
		[]string{"app", "outcome"},
	)

	statusPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "status_polls_total",
			Help:      "Total number of work status polls by observed status",
		},
		[]string{"status"},
	)

	worksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "works_finished_total",
			Help:      "Total number of works observed in a terminal status",
		},
		[]string{"status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of orchestrator operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"operation", "outcome"},
	)

	transferredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transferred_bytes_total",
			Help:      "Total bytes uploaded to or downloaded from the service",
		},
		[]string{"direction"},
	)

	cachedApplications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cached_applications",
			Help:      "Number of applications in the name cache",
		},
	)
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// RecordSubmission counts a finished submission attempt.
func RecordSubmission(app string, err error) {
	submissionsTotal.WithLabelValues(app, outcome(err)).Inc()
}

// RecordPoll counts one status poll.
func RecordPoll(status string) {
	statusPollsTotal.WithLabelValues(status).Inc()
}

// RecordFinished counts a work observed in a terminal status.
func RecordFinished(status string) {
	worksFinishedTotal.WithLabelValues(status).Inc()
}

// ObserveOperation records the duration of an operation started at start.
func ObserveOperation(operation string, start time.Time, err error) {
	operationDuration.WithLabelValues(operation, outcome(err)).Observe(time.Since(start).Seconds())
}

// AddUploaded adds n to the uploaded byte count.
func AddUploaded(n int64) {
	transferredBytes.WithLabelValues("upload").Add(float64(n))
}

// AddDownloaded adds n to the downloaded byte count.
func AddDownloaded(n int64) {
	transferredBytes.WithLabelValues("download").Add(float64(n))
}

// SetCachedApplications sets the application cache gauge.
func SetCachedApplications(n int) {
	cachedApplications.Set(float64(n))
}
