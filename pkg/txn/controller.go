package txn

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/metrics"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

var txnLog = log.WithComponent("txn")

// State is a Transaction's lifecycle stage.
type State uint8

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

// bufferedWrite is one not-yet-published mutation recorded against a
// Transaction's local write buffer.
type bufferedWrite struct {
	key     storage.Key
	value   value.Value
	deleted bool
	ref     value.EntityRef
}

// Transaction is one session's in-flight unit of work. It is not
// thread-safe as a unit — a session owns at most one at a time.
type Transaction struct {
	ID              uint64
	Branch          string
	SnapshotVersion value.Version
	Deadline        time.Time

	mu       sync.Mutex
	state    State
	readSet  map[storage.Key]value.Version
	casSet   map[storage.Key]value.Version
	writes   []bufferedWrite
	writeIdx map[storage.Key]int // last index in writes for this key, for read-your-writes
}

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Controller is the shared optimistic concurrency controller:
// two monotonic counters (global-version, next-txn-id), a registry of live
// transactions, and a single mutex guarding the validate-then-publish
// critical section. The counters themselves are atomics: Begin allocates
// txn ids and reads the global version without taking that mutex, while
// commit versions are allocated inside the critical section.
type Controller struct {
	store *storage.Store
	log   *wal.WAL
	bus   *events.Broker
	cfg   config.Config

	globalVersion uint64 // atomic; Txn(n) assigned to commits
	nextTxnID     uint64 // atomic

	commitMu sync.Mutex

	regMu sync.Mutex
	reg   map[uint64]*Transaction
}

// New constructs a Controller over an already-recovered store and an
// already-open WAL. startVersion is the recovered MaxCommitVersion (0 for a
// fresh database).
func New(store *storage.Store, w *wal.WAL, bus *events.Broker, cfg config.Config, startVersion value.Version) *Controller {
	return &Controller{
		store:         store,
		log:           w,
		bus:           bus,
		cfg:           cfg,
		globalVersion: startVersion.Uint64(),
		reg:           make(map[uint64]*Transaction),
	}
}

// Begin allocates a new transaction against branch, capturing the current
// global version as its snapshot. It does not touch the WAL — nothing is
// durable about a transaction until it commits; aborted transactions
// release no versions.
func (c *Controller) Begin(branch string) *Transaction {
	id := c.allocTxnID()
	snap := value.Txn(atomic.LoadUint64(&c.globalVersion))

	t := &Transaction{
		ID:              id,
		Branch:          branch,
		SnapshotVersion: snap,
		readSet:         make(map[storage.Key]value.Version),
		casSet:          make(map[storage.Key]value.Version),
		writeIdx:        make(map[storage.Key]int),
	}
	if c.cfg.TxnTimeout > 0 {
		t.Deadline = time.Now().Add(c.cfg.TxnTimeout)
	}

	c.regMu.Lock()
	c.reg[id] = t
	c.regMu.Unlock()

	return t
}

// Expired reports whether t has passed its configured timeout. Nothing in
// pkg/session calls ExpireIfNeeded, so a transaction past its Deadline
// stays active there until it is committed or rolled back.
func (t *Transaction) Expired() bool {
	return !t.Deadline.IsZero() && time.Now().After(t.Deadline)
}

// ExpireIfNeeded aborts t in place if it has timed out, returning whether it
// did so.
func (c *Controller) ExpireIfNeeded(t *Transaction) bool {
	if !t.Expired() {
		return false
	}
	_ = c.Rollback(t)
	return true
}

// Read performs a snapshot read at t's snapshot version and records the
// observed version in the read-set. Local writes shadow
// storage: a key written earlier in the same transaction reads back its
// buffered value.
func (c *Controller) Read(t *Transaction, key storage.Key) (value.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.writeIdx[key]; ok {
		w := t.writes[idx]
		if w.deleted {
			return value.Value{}, false
		}
		return w.value, true
	}

	v, ok := c.store.GetAt(key, t.SnapshotVersion)
	observed := value.Zero
	if ok {
		observed = v.Version
	}
	t.readSet[key] = observed
	if !ok {
		return value.Value{}, false
	}
	return v.Value, true
}

// ReadVersioned is Read but returns the full Versioned envelope, used by
// history/getv-style command handlers that surface version metadata.
func (c *Controller) ReadVersioned(t *Transaction, key storage.Key) (value.Versioned, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.writeIdx[key]; ok {
		w := t.writes[idx]
		if w.deleted {
			return value.Versioned{}, false
		}
		return value.Versioned{Value: w.value}, true
	}

	v, ok := c.store.GetAt(key, t.SnapshotVersion)
	observed := value.Zero
	if ok {
		observed = v.Version
	}
	t.readSet[key] = observed
	return v, ok
}

// ReadForCAS records key in the CAS-set with the caller-supplied expected
// version and returns the value currently visible to the transaction.
func (c *Controller) ReadForCAS(t *Transaction, key storage.Key, expected value.Version) (value.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.casSet[key] = expected

	if idx, ok := t.writeIdx[key]; ok {
		w := t.writes[idx]
		if w.deleted {
			return value.Value{}, false
		}
		return w.value, true
	}

	v, ok := c.store.GetAt(key, t.SnapshotVersion)
	if !ok {
		return value.Value{}, false
	}
	return v.Value, true
}

// Write buffers a Put for key within the transaction; nothing is published
// until Commit succeeds.
func (c *Controller) Write(t *Transaction, key storage.Key, val value.Value, ref value.EntityRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeIdx[key] = len(t.writes)
	t.writes = append(t.writes, bufferedWrite{key: key, value: val, ref: ref})
}

// WriteDelete buffers a tombstone for key within the transaction.
func (c *Controller) WriteDelete(t *Transaction, key storage.Key, ref value.EntityRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeIdx[key] = len(t.writes)
	t.writes = append(t.writes, bufferedWrite{key: key, deleted: true, ref: ref})
}

// Rollback discards t's buffered state without touching storage.
// Aborted transactions release no versions — none were allocated.
func (c *Controller) Rollback(t *Transaction) error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return strataerr.TransactionNotActive()
	}
	t.state = StateAborted
	t.mu.Unlock()

	c.removeFromRegistry(t.ID)
	metrics.TxnAbortsTotal.Inc()

	if err := c.log.Append(wal.Entry{Type: wal.EntryAbort, TxnID: t.ID}); err != nil {
		txnLog.Warn().Err(err).Uint64("txn_id", t.ID).Msg("failed to log abort marker")
	}
	return nil
}

func (c *Controller) removeFromRegistry(id uint64) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	delete(c.reg, id)
}

// allocTxnID allocates the next transaction id, saturating at
// math.MaxUint64 rather than wrapping.
func (c *Controller) allocTxnID() uint64 {
	for {
		cur := atomic.LoadUint64(&c.nextTxnID)
		if cur == math.MaxUint64 {
			return cur
		}
		if atomic.CompareAndSwapUint64(&c.nextTxnID, cur, cur+1) {
			return cur + 1
		}
	}
}
