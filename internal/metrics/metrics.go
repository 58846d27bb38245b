// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package metrics defines the Prometheus collectors exported by the backup
// daemon: HTTP surface instrumentation plus the backup-cycle, rotation and
// alerting gauges/counters/histograms that back internal/monitor's derived
// views.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP surface metrics, instrumented by internal/middleware.
var (
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "baktainer",
		Subsystem: "http",
		Name:      "active_requests",
		Help:      "Number of HTTP requests currently being handled.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "baktainer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// TrackActiveRequest increments or decrements the in-flight HTTP request gauge.
func TrackActiveRequest(start bool) {
	if start {
		activeRequests.Inc()
	} else {
		activeRequests.Dec()
	}
}

// RecordAPIRequest records the outcome of one HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// Backup-cycle metrics, fed by internal/monitor on every completed or failed
// backup attempt.
var (
	BackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "attempts_total",
		Help:      "Total backup attempts by container and outcome.",
	}, []string{"container", "engine", "outcome"})

	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "duration_seconds",
		Help:      "Duration of a completed backup attempt, end to end.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"container", "engine"})

	BackupArtifactBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "artifact_bytes",
		Help:      "Size in bytes of the produced (compressed, encrypted) backup artifact.",
		Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 12),
	}, []string{"container", "engine"})

	BackupLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful backup, per container.",
	}, []string{"container"})

	BackupsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "in_flight",
		Help:      "Number of backup attempts currently executing in the worker pool.",
	})

	WorkerPoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "baktainer",
		Subsystem: "backup",
		Name:      "queue_depth",
		Help:      "Number of backup jobs currently queued, waiting for a free worker.",
	})
)

// Rotation metrics, fed by internal/rotation after each retention pass.
var (
	RotationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baktainer",
		Subsystem: "rotation",
		Name:      "runs_total",
		Help:      "Total retention passes executed, by outcome.",
	}, []string{"outcome"})

	RotationArtifactsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baktainer",
		Subsystem: "rotation",
		Name:      "artifacts_removed_total",
		Help:      "Artifacts deleted by retention passes, by the pass that removed them.",
	}, []string{"container", "reason"})

	RotationBytesReclaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baktainer",
		Subsystem: "rotation",
		Name:      "bytes_reclaimed_total",
		Help:      "Bytes reclaimed by retention passes.",
	}, []string{"container"})
)

// Alerting metrics, fed by internal/monitor when an alert is raised.
var (
	AlertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baktainer",
		Subsystem: "alert",
		Name:      "raised_total",
		Help:      "Alerts raised, by severity and rule.",
	}, []string{"severity", "rule"})
)

// Discovery metrics, fed by internal/discovery on every cycle.
var (
	DiscoveredContainers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "baktainer",
		Subsystem: "discovery",
		Name:      "containers",
		Help:      "Number of containers discovered with the backup label enabled on the last cycle.",
	})
)
