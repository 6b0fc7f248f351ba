// Package metrics records patch-run counters on a dedicated Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a patch run.
type Metrics struct {
	Registry      *prometheus.Registry
	MappingRows   *prometheus.CounterVec
	Blocks        *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Failures      *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skupatch_mapping_rows_total",
			Help: "CSV rows read while building the mapping, by outcome.",
		},
		[]string{"outcome"},
	)
	blocks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skupatch_blocks_total",
			Help: "Catalog entry blocks processed, by action.",
		},
		[]string{"action"},
	)
	phase := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skupatch_phase_duration_seconds",
			Help:    "Wall time spent in each run phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skupatch_failures_total",
			Help: "Fatal run failures by error kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(rows, blocks, phase, failures)

	return &Metrics{
		Registry:      registry,
		MappingRows:   rows,
		Blocks:        blocks,
		PhaseDuration: phase,
		Failures:      failures,
	}
}

// ObserveRow increments the mapping row counter for an outcome.
func (m *Metrics) ObserveRow(outcome string) {
	if m == nil {
		return
	}
	m.MappingRows.WithLabelValues(outcome).Inc()
}

// ObserveBlock increments the block counter for an action.
func (m *Metrics) ObserveBlock(action models.Action) {
	if m == nil {
		return
	}
	m.Blocks.WithLabelValues(string(action)).Inc()
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncFailure counts a fatal error by kind.
func (m *Metrics) IncFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.Failures.WithLabelValues(models.ErrorKind(err)).Inc()
}

// WriteTextfile dumps the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
