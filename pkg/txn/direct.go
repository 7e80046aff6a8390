package txn

import (
	"sync/atomic"
	"time"

	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/serialize"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

// DirectWrite applies writes outside any transaction — the path command
// handlers use when the session has no active transaction. It is
// implemented as an implicit single-statement transaction: a fresh txn id,
// one WAL batch (Begin/Put*/Commit), then publish — so direct writes and
// transactional commits share exactly one durability path.
func (c *Controller) DirectWrite(branch string, writes []storage.Write, refs []value.EntityRef) (value.Version, error) {
	id := c.allocTxnID()

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	commitVersion, err := c.nextGlobalVersion()
	if err != nil {
		return value.Version{}, err
	}

	entries := make([]wal.Entry, 0, len(writes)+2)
	entries = append(entries, wal.Entry{Type: wal.EntryBegin, TxnID: id, SnapshotVersion: commitVersion})
	for i := range writes {
		w := writes[i]
		if w.Deleted {
			entries = append(entries, wal.Entry{
				Type: wal.EntryDelete, Branch: w.Key.Branch, Tag: w.Key.Tag, Key: w.Key.UserKey,
				Version: commitVersion,
			})
		} else {
			entries = append(entries, wal.Entry{
				Type: wal.EntryPut, Branch: w.Key.Branch, Tag: w.Key.Tag, Key: w.Key.UserKey,
				Payload: serialize.Encode(w.Value), Version: commitVersion,
			})
		}
	}
	entries = append(entries, wal.Entry{Type: wal.EntryCommit, TxnID: id, CommitVersion: commitVersion})

	if err := c.log.AppendBatch(entries); err != nil {
		return value.Version{}, err
	}

	now := time.Now()
	c.store.ApplyBatch(writes, commitVersion, now.UnixNano())

	if c.bus != nil {
		for i, w := range writes {
			kind := events.EntityWritten
			if w.Deleted {
				kind = events.EntityDeleted
			}
			var ref value.EntityRef
			if i < len(refs) {
				ref = refs[i]
			}
			c.bus.Publish(events.Event{Kind: kind, Ref: ref, Version: commitVersion, Timestamp: now})
		}
	}

	return commitVersion, nil
}

// DirectRead returns the current value of key without any snapshot or
// read-set bookkeeping.
func (c *Controller) DirectRead(key storage.Key) (value.Versioned, bool) {
	return c.store.Get(key)
}

// Store exposes the underlying storage substrate for read paths that need
// history/scan access without transactional semantics (branch diff/fork,
// graph traversal).
func (c *Controller) Store() *storage.Store { return c.store }

// Bus exposes the shared event broker so a primitive (graph's cascade
// hook) can subscribe to writes/deletes published by every other
// primitive's commit path.
func (c *Controller) Bus() *events.Broker { return c.bus }

// Wal exposes the write-ahead log for lifecycle commands (Flush) that
// need to force an fsync outside the commit path.
func (c *Controller) Wal() *wal.WAL { return c.log }

// GlobalVersion returns the current commit-version counter, for
// Info/DurabilityCounters command handlers.
func (c *Controller) GlobalVersion() value.Version {
	return value.Txn(atomic.LoadUint64(&c.globalVersion))
}
