package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the edit and save paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cellEdits     *prometheus.CounterVec
	saveBatches   *prometheus.CounterVec
	recordUpdates *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	pendingCells  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cellEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridedit",
			Name:      "cell_edits_total",
			Help:      "Cell edits by outcome (accepted, rejected, unsupported).",
		}, []string{"outcome"}),
		saveBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridedit",
			Name:      "save_batches_total",
			Help:      "Save batches by outcome (empty, success, failure).",
		}, []string{"outcome"}),
		recordUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridedit",
			Name:      "record_updates_total",
			Help:      "Per-record update calls by outcome.",
		}, []string{"outcome"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridedit",
			Name:      "save_duration_seconds",
			Help:      "Wall time from dispatch to settlement of a save batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		pendingCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridedit",
			Name:      "pending_cells",
			Help:      "Pending cells across all open controls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cellEdits, m.saveBatches, m.recordUpdates, m.saveDuration, m.pendingCells)
	}
	return m
}

func (m *Metrics) edit(outcome string) {
	if m == nil {
		return
	}
	m.cellEdits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) batch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.saveBatches.WithLabelValues(outcome).Inc()
	if outcome != "empty" {
		m.saveDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) update(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.recordUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) pending(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.pendingCells.Add(float64(delta))
}
