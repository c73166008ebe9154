// Package metrics exposes Prometheus counters for the ledger, the validation
// callback and peer notification.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the acorn collectors.
type Metrics struct {
	revisions   *prometheus.CounterVec
	validations *prometheus.CounterVec
	signals     *prometheus.CounterVec
	pending     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		revisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acorn",
				Subsystem: "ledger",
				Name:      "revisions_total",
				Help:      "Revisions committed to the local ledger.",
			},
			[]string{"entry_type", "action", "origin"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acorn",
				Subsystem: "validation",
				Name:      "outcomes_total",
				Help:      "Validation outcomes by entry type and reason.",
			},
			[]string{"entry_type", "outcome", "reason"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acorn",
				Subsystem: "signal",
				Name:      "sends_total",
				Help:      "Signal send attempts per peer.",
			},
			[]string{"entry_type", "action", "result"},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "acorn",
				Subsystem: "ledger",
				Name:      "pending_revisions",
				Help:      "Received revisions parked on unresolved dependencies.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.revisions, m.validations, m.signals, m.pending)
	}
	return m
}

// Origin labels where a committed revision came from.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Revision counts one committed revision.
func (m *Metrics) Revision(entryType, action, origin string) {
	if m == nil {
		return
	}
	m.revisions.WithLabelValues(entryType, action, origin).Inc()
}

// Validation counts one validation outcome.
func (m *Metrics) Validation(entryType, outcome, reason string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(entryType, outcome, reason).Inc()
}

// Signal counts one per-peer send attempt.
func (m *Metrics) Signal(entryType, action string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.signals.WithLabelValues(entryType, action, result).Inc()
}

// Pending sets the number of parked revisions.
func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
