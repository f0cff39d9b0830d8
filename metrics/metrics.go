// Package metrics provides a Prometheus-backed synckit.MetricsCollector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "quotesync"

// Collector implements synckit.MetricsCollector on a private registry and
// serves it in the Prometheus text format.
type Collector struct {
	registry *prometheus.Registry
	handler  http.Handler

	// Sync metrics
	Syncs        *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	LastSync     prometheus.Gauge

	// Merge outcome metrics
	RecordsInserted prometheus.Counter
	RecordsUpdated  prometheus.Counter
	Conflicts       prometheus.Counter

	Errors      *prometheus.CounterVec
	Resolutions *prometheus.CounterVec
	Skipped     *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. An empty namespace
// uses DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syncs_total",
				Help:      "Total number of sync runs, including failed ones",
			},
			[]string{"operation"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Sync run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LastSync: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_sync_timestamp_seconds",
				Help:      "Unix time of the most recent sync run",
			},
		),
		RecordsInserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_inserted_total",
				Help:      "Total number of server records inserted by merges",
			},
		),
		RecordsUpdated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_updated_total",
				Help:      "Total number of records overwritten with server content",
			},
		),
		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_detected_total",
				Help:      "Total number of conflicts detected by merges",
			},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_errors_total",
				Help:      "Total number of failed sync phases",
			},
			[]string{"operation", "type"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflict_resolutions_total",
				Help:      "Total number of conflicts resolved",
			},
			[]string{"choice"},
		),
		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syncs_skipped_total",
				Help:      "Total number of sync runs dropped because one was in flight",
			},
			[]string{"trigger"},
		),
	}

	registry.MustRegister(
		c.Syncs,
		c.SyncDuration,
		c.LastSync,
		c.RecordsInserted,
		c.RecordsUpdated,
		c.Conflicts,
		c.Errors,
		c.Resolutions,
		c.Skipped,
	)
	c.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) RecordSyncDuration(operation string, duration time.Duration) {
	c.Syncs.WithLabelValues(operation).Inc()
	c.SyncDuration.WithLabelValues(operation).Observe(duration.Seconds())
	c.LastSync.SetToCurrentTime()
}

func (c *Collector) RecordSyncRecords(inserted, updated int) {
	c.RecordsInserted.Add(float64(inserted))
	c.RecordsUpdated.Add(float64(updated))
}

func (c *Collector) RecordSyncErrors(operation string, errorType string) {
	c.Errors.WithLabelValues(operation, errorType).Inc()
}

func (c *Collector) RecordConflicts(detected int) {
	c.Conflicts.Add(float64(detected))
}

func (c *Collector) RecordResolutions(choice string, resolved int) {
	c.Resolutions.WithLabelValues(choice).Add(float64(resolved))
}

func (c *Collector) RecordSkipped(trigger string) {
	c.Skipped.WithLabelValues(trigger).Inc()
}

// ServeHTTP serves the registry in the Prometheus exposition format.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.handler.ServeHTTP(w, r)
}
