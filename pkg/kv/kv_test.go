package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

func newTestPrimitive(t *testing.T) *Primitive {
	t.Helper()
	cfg := config.Default()
	cfg.Durability = config.Strict
	dir := filepath.Join(t.TempDir(), "wal")
	w, err := wal.Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctrl := txn.New(storage.New(), w, events.NewBroker(), cfg, value.Version{})
	return New(ctrl)
}

func TestPutGetDirect(t *testing.T) {
	p := newTestPrimitive(t)
	ver, err := p.Put(nil, "default", "greeting", value.String("hi"))
	require.NoError(t, err)
	require.True(t, ver.Uint64() > 0)

	got, ok, err := p.Get(nil, "default", "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := got.AsString()
	require.Equal(t, "hi", s)
}

func TestGetMissingKey(t *testing.T) {
	p := newTestPrimitive(t)
	_, ok, err := p.Get(nil, "default", "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteReturnsWhetherExisted(t *testing.T) {
	p := newTestPrimitive(t)
	existed, err := p.Delete(nil, "default", "nope")
	require.NoError(t, err)
	require.False(t, existed)

	_, err = p.Put(nil, "default", "k", value.Int(1))
	require.NoError(t, err)
	existed, err = p.Delete(nil, "default", "k")
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, _ := p.Get(nil, "default", "k")
	require.False(t, ok)
}

func TestEmptyKeyRejected(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Put(nil, "default", "", value.Int(1))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindInvalidInput))
}

func TestReservedPrefixRejected(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Put(nil, "default", storage.ReservedPrefix+"x", value.Int(1))
	require.Error(t, err)
}

func TestHistoryIncludesTombstones(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Put(nil, "default", "k", value.Int(1))
	require.NoError(t, err)
	_, err = p.Delete(nil, "default", "k")
	require.NoError(t, err)

	hist, err := p.History("default", "k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.True(t, hist[1].Deleted)
}

func TestListReturnsCurrentValuesUnderPrefix(t *testing.T) {
	p := newTestPrimitive(t)
	_, _ = p.Put(nil, "default", "users/1", value.String("alice"))
	_, _ = p.Put(nil, "default", "users/2", value.String("bob"))
	_, _ = p.Put(nil, "default", "other", value.String("x"))

	entries, err := p.List("default", "users/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCasSucceedsOnMatchThenFailsOnStale(t *testing.T) {
	p := newTestPrimitive(t)
	ver, err := p.Cas(nil, "default", "cell", value.Zero, value.Int(1))
	require.NoError(t, err)
	require.True(t, ver.Uint64() > 0)

	_, err = p.Cas(nil, "default", "cell", value.Zero, value.Int(2))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindConflict))

	ver2, err := p.Cas(nil, "default", "cell", ver, value.Int(3))
	require.NoError(t, err)
	require.True(t, ver2.Uint64() > ver.Uint64())
}

func TestTransactionalPutIsInvisibleUntilCommit(t *testing.T) {
	p := newTestPrimitive(t)
	txRef := p.ctrl.Begin("default")
	ver, err := p.Put(txRef, "default", "k", value.Int(1))
	require.NoError(t, err)
	require.True(t, ver.Equal(value.Zero))

	_, ok, _ := p.Get(nil, "default", "k")
	require.False(t, ok, "writes must not be visible outside the transaction before commit")

	require.NoError(t, p.ctrl.Commit(txRef))
	_, ok, _ = p.Get(nil, "default", "k")
	require.True(t, ok)
}
