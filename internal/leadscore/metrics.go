package leadscore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsAppliedTotal counts scoring events that applied points.
	// Labels: action
	eventsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tgkz",
			Subsystem: "leadscore",
			Name:      "events_applied_total",
			Help:      "Total number of scoring events that applied points",
		},
		[]string{"action"},
	)

	// eventsSuppressedTotal counts events suppressed before applying points.
	// Labels: reason (no_rule, daily_limit, cooldown)
	eventsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tgkz",
			Subsystem: "leadscore",
			Name:      "events_suppressed_total",
			Help:      "Total number of scoring events suppressed by rule gates",
		},
		[]string{"reason"},
	)

	// decayRunsTotal counts completed inactivity-check passes.
	decayRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tgkz",
			Subsystem: "leadscore",
			Name:      "decay_runs_total",
			Help:      "Total number of completed inactivity decay passes",
		},
	)

	// snapshotSavesTotal counts persistence save attempts.
	// Labels: status (success, error)
	snapshotSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tgkz",
			Subsystem: "leadscore",
			Name:      "snapshot_saves_total",
			Help:      "Total number of snapshot save attempts",
		},
		[]string{"status"},
	)

	// contactsTracked reports the number of contacts with a lead score.
	contactsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tgkz",
			Subsystem: "leadscore",
			Name:      "contacts_tracked",
			Help:      "Number of contacts currently holding a lead score",
		},
	)
)
