package wal

import (
	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
)

var recoveryLog = log.WithComponent("wal-recovery")

// RecoveryResult summarizes what Recover did, for the caller (the
// concurrency controller) to seed its counters from.
type RecoveryResult struct {
	// MaxCommitVersion is the highest commit-version observed, either from
	// the snapshot or from replayed Commit entries. The controller's
	// global-version counter resumes from here.
	MaxCommitVersion value.Version
	// EntriesReplayed counts Put/Delete entries published to storage.
	EntriesReplayed int
	// StoppedEarly is true if replay halted before reaching the end of the
	// log because of a CRC failure or unknown entry type.
	StoppedEarly bool
}

// Recover rebuilds store to its last durable state: it restores the newest
// snapshot (if any), then replays every WAL segment from the first one; the
// segment offset recorded in the snapshot is not used, so entries the
// snapshot already covers are applied again on top of it. Replay stops at the first corrupt or unrecognized entry and
// everything after it is discarded — causal entries after a break cannot
// be safely reordered or skipped. An open Begin with no
// matching Commit at the point replay stops is simply never published.
func Recover(snapshotDir, segmentDir string, store *storage.Store) (RecoveryResult, error) {
	var result RecoveryResult

	snapVersion, _, hasSnapshot, err := LoadLatestSnapshot(snapshotDir, store)
	if err != nil {
		// Fail-fast: a corrupt snapshot aborts recovery outright, no
		// fallback to a full WAL replay from segment zero.
		return result, err
	}
	if hasSnapshot {
		result.MaxCommitVersion = snapVersion
		recoveryLog.Info().Uint64("version", snapVersion.Uint64()).Msg("restored from snapshot")
	}

	segments, err := listSegments(segmentDir)
	if err != nil {
		return result, err
	}

	// pending holds the buffered Put/Delete entries of transactions that
	// have begun but not yet committed or aborted. Put/Delete entries carry
	// no transaction id of their own: each belongs to the most recent Begin,
	// since a transaction's Begin..Commit run is appended as one batch.
	pending := make(map[uint64][]Entry)
	var openTxn uint64

	for _, segNum := range segments {
		entries, _, readErr := readSegmentEntries(segmentDir, segNum, 0)
		for _, e := range entries {
			switch e.Type {
			case EntryBegin:
				openTxn = e.TxnID
				pending[e.TxnID] = nil
			case EntryPut, EntryDelete:
				pending[openTxn] = append(pending[openTxn], e)
			case EntryCommit:
				for _, op := range pending[e.TxnID] {
					publish(store, op)
					result.EntriesReplayed++
				}
				delete(pending, e.TxnID)
				if e.CommitVersion.Uint64() > result.MaxCommitVersion.Uint64() {
					result.MaxCommitVersion = e.CommitVersion
				}
			case EntryAbort:
				delete(pending, e.TxnID)
			case EntryBranchMeta, EntryCheckpoint:
				// no storage effect during replay; branch metadata and
				// checkpoint markers are informational here.
			}
		}
		if readErr != nil {
			result.StoppedEarly = true
			recoveryLog.Warn().
				Uint64("segment", segNum).
				Err(readErr).
				Msg("stopping replay at first corrupt or unknown entry")
			break
		}
	}

	return result, nil
}

func publish(store *storage.Store, e Entry) {
	key := storage.Key{Branch: e.Branch, Tag: e.Tag, UserKey: e.Key}
	switch e.Type {
	case EntryPut:
		val, err := decodePutValue(e.Payload)
		if err != nil {
			recoveryLog.Error().Err(err).Str("key", e.Key).Msg("failed to decode replayed put, skipping entry")
			return
		}
		store.Put(key, val, e.Version, 0)
	case EntryDelete:
		store.Delete(key, e.Version, 0)
	}
}
