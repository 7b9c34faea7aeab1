// Package metrics provides Prometheus instrumentation for the PnL engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotResumes counts how computations started: from a snapshot
	// ("hit"), or from the first transaction ("miss").
	SnapshotResumes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pnl_snapshot_resumes_total",
		Help: "Computations by starting point",
	}, []string{"result"})

	// StaleSnapshots counts snapshots skipped because their fingerprint no
	// longer matches the inputs.
	StaleSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pnl_snapshot_stale_total",
		Help: "Snapshots skipped on fingerprint mismatch",
	})

	// SnapshotWrites counts persisted snapshots.
	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pnl_snapshot_writes_total",
		Help: "Snapshots written",
	})

	// Days counts evaluated trading days by status.
	Days = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pnl_days_total",
		Help: "Trading days evaluated, by status",
	}, []string{"status"})

	// ExcludedTransactions counts transactions kept out of the ledger.
	ExcludedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pnl_excluded_transactions_total",
		Help: "Transactions excluded from the ledger, by reason",
	}, []string{"reason"})

	// ReplayedTransactions counts transactions applied to a ledger.
	ReplayedTransactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pnl_replayed_transactions_total",
		Help: "Transactions applied to a ledger",
	})

	// ComputeDuration tracks the duration of calendar computations.
	ComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pnl_compute_duration_seconds",
		Help:    "Calendar computation duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	})
)
