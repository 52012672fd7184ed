// Package metrics holds the Prometheus instruments shared by the engine and
// the event consumer. The worker binary exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SplitExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Subsystem: "engine",
		Name:      "split_executions_total",
		Help:      "Split executions settled, by outcome.",
	}, []string{"outcome"})

	Retries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splitledger",
		Subsystem: "engine",
		Name:      "retries_total",
		Help:      "Explicit retries of failed split executions.",
	})

	ReplayedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splitledger",
		Subsystem: "engine",
		Name:      "replayed_runs_total",
		Help:      "Process calls answered from existing completed executions.",
	})

	IntegrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splitledger",
		Subsystem: "reconcile",
		Name:      "integrity_failures_total",
		Help:      "Reconciliation runs where ledger and executions disagreed.",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Subsystem: "consumer",
		Name:      "events_processed_total",
		Help:      "Payment events consumed, by result.",
	}, []string{"result"})
)
