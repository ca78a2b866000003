// Package metrics records per-run counters and writes them in the Prometheus
// text exposition format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rewired-gh/flatvalue/internal/models"
)

// Recorder owns a private registry so repeated runs in one process do not
// collide with the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	scored   prometheus.Counter
	excluded prometheus.Counter
	defaults *prometheus.CounterVec
	lastRun  prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatvalue_records_scored_total",
			Help: "Transactions that received an undervaluation score.",
		}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatvalue_records_excluded_total",
			Help: "Transactions excluded for lack of a comparable cohort.",
		}),
		defaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flatvalue_field_defaults_total",
			Help: "Derived fields that fell back to a default value.",
		}, []string{"field"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flatvalue_last_run_timestamp_seconds",
			Help: "Unix time of the last completed scoring run.",
		}),
	}
	r.registry.MustRegister(r.scored, r.excluded, r.defaults, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe adds one run's outcome.
func (r *Recorder) Observe(summary models.Summary, diag models.Diagnostics, at time.Time) {
	r.scored.Add(float64(summary.TotalTransactions))
	r.excluded.Add(float64(diag.ExcludedCount()))
	r.defaults.WithLabelValues("storey_range").Add(float64(diag.StoreyDefaults))
	r.defaults.WithLabelValues("lease_commence_date").Add(float64(diag.LeaseDefaults))
	r.defaults.WithLabelValues("town_accessibility").Add(float64(diag.AccessibilityDefaults))
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry to path. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
