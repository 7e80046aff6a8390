package txn

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/metrics"
	"github.com/strata-db/strata/pkg/serialize"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

// Commit validates t's read-set and CAS-set against current storage state,
// and on success allocates a commit version, persists it to the WAL, and
// publishes the write buffer — in that order, since WAL-before-publish is
// what makes recovery correct.
//
// Validation allows write skew: blind writes (keys never read or CAS'd in
// this transaction) never conflict, even if another transaction wrote them
// concurrently.
func (c *Controller) Commit(t *Transaction) error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return strataerr.TransactionNotActive()
	}
	readSet := copyVersionMap(t.readSet)
	casSet := copyVersionMap(t.casSet)
	writes := append([]bufferedWrite(nil), t.writes...)
	t.mu.Unlock()

	timer := metrics.NewTimer()

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	for key, observed := range readSet {
		current := c.currentVersion(key)
		if !current.Equal(observed) {
			c.abortLocked(t)
			metrics.TxnReadWriteConflictsTotal.Inc()
			ref := refFor(writes, key)
			return strataerr.ReadWriteConflict(ref)
		}
	}
	for key, expected := range casSet {
		current := c.currentVersion(key)
		if !current.Equal(expected) {
			c.abortLocked(t)
			metrics.TxnCASConflictsTotal.Inc()
			ref := refFor(writes, key)
			return strataerr.CASConflict(ref)
		}
	}

	commitVersion, err := c.nextGlobalVersion()
	if err != nil {
		c.abortLocked(t)
		return err
	}

	entries := make([]wal.Entry, 0, len(writes)+2)
	entries = append(entries, wal.Entry{Type: wal.EntryBegin, TxnID: t.ID, SnapshotVersion: t.SnapshotVersion})
	for _, w := range writes {
		if w.deleted {
			entries = append(entries, wal.Entry{
				Type: wal.EntryDelete, Branch: w.key.Branch, Tag: w.key.Tag, Key: w.key.UserKey,
				Version: commitVersion,
			})
		} else {
			entries = append(entries, wal.Entry{
				Type: wal.EntryPut, Branch: w.key.Branch, Tag: w.key.Tag, Key: w.key.UserKey,
				Payload: serialize.Encode(w.value), Version: commitVersion,
			})
		}
	}
	entries = append(entries, wal.Entry{Type: wal.EntryCommit, TxnID: t.ID, CommitVersion: commitVersion})

	if err := c.log.AppendBatch(entries); err != nil {
		c.abortLocked(t)
		return strataerr.Io(err)
	}

	now := time.Now().UnixNano()
	storageWrites := make([]storage.Write, 0, len(writes))
	for _, w := range writes {
		storageWrites = append(storageWrites, storage.Write{Key: w.key, Value: w.value, Deleted: w.deleted})
	}
	c.store.ApplyBatch(storageWrites, commitVersion, now)

	t.mu.Lock()
	t.state = StateCommitted
	t.mu.Unlock()
	c.removeFromRegistry(t.ID)

	c.publishEvents(writes, commitVersion, now)

	metrics.TxnCommitsTotal.Inc()
	timer.ObserveDuration(metrics.TxnCommitDuration)
	return nil
}

func (c *Controller) abortLocked(t *Transaction) {
	t.mu.Lock()
	t.state = StateAborted
	t.mu.Unlock()
	c.removeFromRegistry(t.ID)
	metrics.TxnAbortsTotal.Inc()
	if err := c.log.Append(wal.Entry{Type: wal.EntryAbort, TxnID: t.ID}); err != nil {
		txnLog.Warn().Err(err).Uint64("txn_id", t.ID).Msg("failed to log abort marker")
	}
}

// nextGlobalVersion allocates the next commit version, saturating at
// math.MaxUint64 rather than wrapping. Called only while commitMu is held,
// so the load-then-store is race-free despite Begin reading globalVersion
// concurrently without the lock.
func (c *Controller) nextGlobalVersion() (value.Version, error) {
	cur := atomic.LoadUint64(&c.globalVersion)
	if cur == math.MaxUint64 {
		return value.Version{}, strataerr.New(strataerr.KindInternal, "global version counter exhausted")
	}
	next := cur + 1
	atomic.StoreUint64(&c.globalVersion, next)
	return value.Txn(next), nil
}

// currentVersion returns the key's current version, or value.Zero if the
// key has never been written.
func (c *Controller) currentVersion(key storage.Key) value.Version {
	v, ok := c.store.LatestVersion(key)
	if !ok {
		return value.Zero
	}
	return v
}

func (c *Controller) publishEvents(writes []bufferedWrite, version value.Version, tsNano int64) {
	if c.bus == nil {
		return
	}
	ts := time.Unix(0, tsNano)
	for _, w := range writes {
		kind := events.EntityWritten
		if w.deleted {
			kind = events.EntityDeleted
		}
		c.bus.Publish(events.Event{Kind: kind, Ref: w.ref, Version: version, Timestamp: ts})
	}
}

func refFor(writes []bufferedWrite, key storage.Key) value.EntityRef {
	for _, w := range writes {
		if w.key == key {
			return w.ref
		}
	}
	return value.KvRef(key.Branch, key.UserKey)
}

func copyVersionMap(m map[storage.Key]value.Version) map[storage.Key]value.Version {
	out := make(map[storage.Key]value.Version, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
