package txn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	cfg := config.Default()
	cfg.Durability = config.Strict
	dir := filepath.Join(t.TempDir(), "wal")
	w, err := wal.Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return New(storage.New(), w, events.NewBroker(), cfg, value.Version{})
}

func TestBasicCommitIsVisibleAfterward(t *testing.T) {
	c := newTestController(t)
	key := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "a"}

	txn := c.Begin("default")
	c.Write(txn, key, value.String("hello"), value.KvRef("default", "a"))
	require.NoError(t, c.Commit(txn))

	v, ok := c.DirectRead(key)
	require.True(t, ok)
	s, _ := v.Value.AsString()
	require.Equal(t, "hello", s)
}

func TestRollbackDiscardsBufferedWrites(t *testing.T) {
	c := newTestController(t)
	key := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "a"}

	txn := c.Begin("default")
	c.Write(txn, key, value.Int(1), value.KvRef("default", "a"))
	require.NoError(t, c.Rollback(txn))

	_, ok := c.DirectRead(key)
	require.False(t, ok)
}

func TestCommitAfterRollbackFails(t *testing.T) {
	c := newTestController(t)
	txn := c.Begin("default")
	require.NoError(t, c.Rollback(txn))
	err := c.Commit(txn)
	require.Error(t, err)
}

func TestReadWriteConflictDetected(t *testing.T) {
	c := newTestController(t)
	key := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "a"}
	ref := value.KvRef("default", "a")

	_, err := c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(1)}}, []value.EntityRef{ref})
	require.NoError(t, err)

	txn1 := c.Begin("default")
	_, ok := c.Read(txn1, key) // records read-set
	require.True(t, ok)

	// Concurrent direct write bumps the key's version before txn1 commits.
	_, err = c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(2)}}, []value.EntityRef{ref})
	require.NoError(t, err)

	c.Write(txn1, key, value.Int(3), ref)
	err = c.Commit(txn1)
	require.Error(t, err)
}

func TestWriteSkewIsAllowed(t *testing.T) {
	c := newTestController(t)
	keyA := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "a"}
	keyB := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "b"}
	refA := value.KvRef("default", "a")
	refB := value.KvRef("default", "b")

	_, err := c.DirectWrite("default", []storage.Write{
		{Key: keyA, Value: value.Int(1)},
		{Key: keyB, Value: value.Int(1)},
	}, []value.EntityRef{refA, refB})
	require.NoError(t, err)

	txn1 := c.Begin("default")
	txn2 := c.Begin("default")

	// txn1 reads A, writes B. txn2 reads B, writes A. Disjoint writes:
	// both must succeed even though each read what the other writes.
	_, _ = c.Read(txn1, keyA)
	c.Write(txn1, keyB, value.Int(2), refB)

	_, _ = c.Read(txn2, keyB)
	c.Write(txn2, keyA, value.Int(2), refA)

	require.NoError(t, c.Commit(txn1))
	require.NoError(t, c.Commit(txn2))
}

func TestCASConflictDetected(t *testing.T) {
	c := newTestController(t)
	key := storage.Key{Branch: "default", Tag: storage.TagState, UserKey: "cell"}
	ref := value.StateRef("default", "cell")

	_, err := c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(1)}}, []value.EntityRef{ref})
	require.NoError(t, err)
	v, ok := c.DirectRead(key)
	require.True(t, ok)

	txn := c.Begin("default")
	_, _ = c.ReadForCAS(txn, key, v.Version)

	// Another writer bumps the version out from under the CAS.
	_, err = c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(2)}}, []value.EntityRef{ref})
	require.NoError(t, err)

	c.Write(txn, key, value.Int(3), ref)
	err = c.Commit(txn)
	require.Error(t, err)
}

func TestBlindWriteNeverConflicts(t *testing.T) {
	c := newTestController(t)
	key := storage.Key{Branch: "default", Tag: storage.TagKV, UserKey: "a"}
	ref := value.KvRef("default", "a")

	_, err := c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(1)}}, []value.EntityRef{ref})
	require.NoError(t, err)

	txn := c.Begin("default")
	// never read key — a blind write.
	c.Write(txn, key, value.Int(99), ref)

	_, err = c.DirectWrite("default", []storage.Write{{Key: key, Value: value.Int(2)}}, []value.EntityRef{ref})
	require.NoError(t, err)

	require.NoError(t, c.Commit(txn))
}
