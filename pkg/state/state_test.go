package state

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

func TestSetGetDirect(t *testing.T) {
	p := newTestPrimitive(t)
	ver, err := p.Set(nil, "default", "counter", value.Int(1))
	require.NoError(t, err)
	require.Equal(t, value.VersionCounter, ver.Kind())
	require.True(t, ver.Uint64() > 0)

	got, ok, err := p.Get(nil, "default", "counter")
	require.NoError(t, err)
	require.True(t, ok)
	n, _ := got.AsInt()
	require.EqualValues(t, 1, n)
}

func TestReadvReturnsCounterVersion(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "cell", value.Int(1))
	require.NoError(t, err)

	vv, ok, err := p.Readv(nil, "default", "cell")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.VersionCounter, vv.Version.Kind())
}

func TestInitSucceedsOnceThenFails(t *testing.T) {
	p := newTestPrimitive(t)
	ver, err := p.Init(nil, "default", "once", value.String("first"))
	require.NoError(t, err)
	require.True(t, ver.Uint64() > 0)

	_, err = p.Init(nil, "default", "once", value.String("second"))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindConflict))

	got, ok, _ := p.Get(nil, "default", "once")
	require.True(t, ok)
	s, _ := got.AsString()
	require.Equal(t, "first", s, "failed init must not overwrite the existing value")
}

func TestCasSucceedsOnMatchThenFailsOnStale(t *testing.T) {
	p := newTestPrimitive(t)
	ver, err := p.Set(nil, "default", "cell", value.Int(1))
	require.NoError(t, err)

	_, err = p.Cas(nil, "default", "cell", value.Counter(999), value.Int(2))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindConflict))

	ver2, err := p.Cas(nil, "default", "cell", ver, value.Int(2))
	require.NoError(t, err)
	require.True(t, ver2.Uint64() > ver.Uint64())

	got, _, _ := p.Get(nil, "default", "cell")
	n, _ := got.AsInt()
	require.EqualValues(t, 2, n)
}

func TestHistoryReTagsVersionsAsCounter(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "cell", value.Int(1))
	require.NoError(t, err)
	_, err = p.Set(nil, "default", "cell", value.Int(2))
	require.NoError(t, err)

	hist, err := p.History("default", "cell")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	for _, v := range hist {
		require.Equal(t, value.VersionCounter, v.Version.Kind())
	}
	require.True(t, hist[1].Version.Uint64() > hist[0].Version.Uint64())
}

func TestEmptyCellRejected(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "", value.Int(1))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindInvalidInput))
}

func TestTransactionalSetIsInvisibleUntilCommit(t *testing.T) {
	p := newTestPrimitive(t)
	tx := p.ctrl.Begin("default")
	ver, err := p.Set(tx, "default", "cell", value.Int(5))
	require.NoError(t, err)
	require.True(t, ver.Equal(value.Zero))

	_, ok, _ := p.Get(nil, "default", "cell")
	require.False(t, ok)

	require.NoError(t, p.ctrl.Commit(tx))
	got, ok, _ := p.Get(nil, "default", "cell")
	require.True(t, ok)
	n, _ := got.AsInt()
	require.EqualValues(t, 5, n)
}
