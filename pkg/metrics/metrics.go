package metrics

import (
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WAL metrics
	WALAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_wal_appends_total",
			Help: "Total number of WAL entries appended",
		},
	)

	WALFsyncsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_wal_fsyncs_total",
			Help: "Total number of WAL fsync calls",
		},
	)

	WALFsyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_wal_fsync_duration_seconds",
			Help:    "Time taken to fsync the WAL",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALGroupCommitSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_wal_group_commit_size",
			Help:    "Number of Commit entries flushed per fsync",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	WALSegmentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_wal_segments_total",
			Help: "Current number of WAL segments on disk",
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_snapshots_total",
			Help: "Total number of snapshots written",
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_snapshot_duration_seconds",
			Help:    "Time taken to write a snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transaction metrics
	TxnCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_txn_commits_total",
			Help: "Total number of committed transactions",
		},
	)

	TxnAbortsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_txn_aborts_total",
			Help: "Total number of aborted transactions",
		},
	)

	TxnReadWriteConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_txn_read_write_conflicts_total",
			Help: "Total number of read-write validation conflicts",
		},
	)

	TxnCASConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_txn_cas_conflicts_total",
			Help: "Total number of CAS validation conflicts",
		},
	)

	TxnCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_txn_commit_duration_seconds",
			Help:    "Time taken to validate and publish a commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Storage metrics
	StorageOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_storage_ops_total",
			Help: "Total storage substrate operations by kind",
		},
		[]string{"op"},
	)

	// Graph metrics
	GraphCascadeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_graph_cascade_errors_total",
			Help: "Total number of graph cascade hook errors (logged, never propagated)",
		},
	)

	// Auto-embed metrics
	AutoEmbedFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_auto_embed_failures_total",
			Help: "Total number of auto-embed hook failures (non-fatal to the triggering write)",
		},
	)
)

func init() {
	prometheus.MustRegister(WALAppendsTotal)
	prometheus.MustRegister(WALFsyncsTotal)
	prometheus.MustRegister(WALFsyncDuration)
	prometheus.MustRegister(WALGroupCommitSize)
	prometheus.MustRegister(WALSegmentsTotal)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(TxnCommitsTotal)
	prometheus.MustRegister(TxnAbortsTotal)
	prometheus.MustRegister(TxnReadWriteConflictsTotal)
	prometheus.MustRegister(TxnCASConflictsTotal)
	prometheus.MustRegister(TxnCommitDuration)
	prometheus.MustRegister(StorageOpsTotal)
	prometheus.MustRegister(GraphCascadeErrorsTotal)
	prometheus.MustRegister(AutoEmbedFailuresTotal)
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Snapshot captures current counter values as one flat Counters value.
// Prometheus counters don't expose a cheap "current value"
// read in general, so this walks the metric family via the standard
// collector Write path.
func Snapshot() Counters {
	return Counters{
		WALAppends:          readCounter(WALAppendsTotal),
		WALFsyncs:           readCounter(WALFsyncsTotal),
		TxnCommits:          readCounter(TxnCommitsTotal),
		TxnAborts:           readCounter(TxnAbortsTotal),
		ReadWriteConflicts:  readCounter(TxnReadWriteConflictsTotal),
		CASConflicts:        readCounter(TxnCASConflictsTotal),
		Snapshots:           readCounter(SnapshotsTotal),
		GraphCascadeErrors:  readCounter(GraphCascadeErrorsTotal),
		AutoEmbedFailures:   readCounter(AutoEmbedFailuresTotal),
	}
}

// Counters is the flat snapshot returned by Snapshot.
type Counters struct {
	WALAppends         uint64
	WALFsyncs          uint64
	TxnCommits         uint64
	TxnAborts          uint64
	ReadWriteConflicts uint64
	CASConflicts       uint64
	Snapshots          uint64
	GraphCascadeErrors uint64
	AutoEmbedFailures  uint64
}

func readCounter(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	if m.Counter == nil {
		return 0
	}
	return uint64(m.Counter.GetValue())
}
