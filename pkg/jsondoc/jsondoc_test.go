package jsondoc

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

func obj(pairs ...interface{}) value.Value {
	o := value.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Set(pairs[i].(string), pairs[i+1].(value.Value))
	}
	return value.ObjectValue(o)
}

func TestRootPathSetGetDeleteRoundTrip(t *testing.T) {
	p := newTestPrimitive(t)
	doc := obj("name", value.String("alice"), "age", value.Int(30))

	ver, err := p.Set(nil, "default", "user", RootPath, doc)
	require.NoError(t, err)
	require.True(t, ver.Uint64() > 0)

	got, ok, err := p.Get(nil, "default", "user", RootPath)
	require.NoError(t, err)
	require.True(t, ok)
	o, isObj := got.AsObject()
	require.True(t, isObj)
	name, present := o.Get("name")
	require.True(t, present)
	s, _ := name.AsString()
	require.Equal(t, "alice", s)

	existed, err := p.Delete(nil, "default", "user", RootPath)
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, err = p.Get(nil, "default", "user", RootPath)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetMissingDocumentStartsFromEmptyObject(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "fresh", "a.b.c", value.Int(7))
	require.NoError(t, err)

	got, ok, err := p.Get(nil, "default", "fresh", "a.b.c")
	require.NoError(t, err)
	require.True(t, ok)
	n, _ := got.AsInt()
	require.EqualValues(t, 7, n)
}

func TestSetCreatesIntermediateArraysAndObjects(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "doc", "items[2].label", value.String("third"))
	require.NoError(t, err)

	full, ok, err := p.Get(nil, "default", "doc", RootPath)
	require.NoError(t, err)
	require.True(t, ok)

	o, isObj := full.AsObject()
	require.True(t, isObj)
	itemsVal, present := o.Get("items")
	require.True(t, present)
	arr, isArr := itemsVal.AsArray()
	require.True(t, isArr)
	require.Len(t, arr, 3)

	label, found := value.Get(full, "items[2].label")
	require.True(t, found)
	s, _ := label.AsString()
	require.Equal(t, "third", s)

	_, found = value.Get(full, "items[0]")
	require.True(t, found)
}

func TestGetMissingPathReturnsNotFound(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "doc", "a", value.Int(1))
	require.NoError(t, err)

	_, ok, err := p.Get(nil, "default", "doc", "b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePathRemovesOnlyTargetSubtree(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "doc", "a", value.Int(1))
	require.NoError(t, err)
	_, err = p.Set(nil, "default", "doc", "b", value.Int(2))
	require.NoError(t, err)

	removed, err := p.Delete(nil, "default", "doc", "a")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err := p.Get(nil, "default", "doc", "a")
	require.NoError(t, err)
	require.False(t, ok)

	bVal, ok, err := p.Get(nil, "default", "doc", "b")
	require.NoError(t, err)
	require.True(t, ok)
	n, _ := bVal.AsInt()
	require.EqualValues(t, 2, n)
}

func TestDeleteMissingPathReturnsFalse(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "doc", "a", value.Int(1))
	require.NoError(t, err)

	removed, err := p.Delete(nil, "default", "doc", "nope")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestHistoryDecodesEachEntryToStructuredValue(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "doc", RootPath, obj("v", value.Int(1)))
	require.NoError(t, err)
	_, err = p.Set(nil, "default", "doc", RootPath, obj("v", value.Int(2)))
	require.NoError(t, err)
	_, err = p.Delete(nil, "default", "doc", RootPath)
	require.NoError(t, err)

	hist, err := p.History("default", "doc")
	require.NoError(t, err)
	require.Len(t, hist, 3)

	o0, isObj := hist[0].Value.AsObject()
	require.True(t, isObj)
	v0, _ := o0.Get("v")
	n0, _ := v0.AsInt()
	require.EqualValues(t, 1, n0)

	require.True(t, hist[2].Deleted)
}

func TestEmptyKeyRejected(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", "", RootPath, value.Int(1))
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindInvalidInput))
}

func TestReservedPrefixRejected(t *testing.T) {
	p := newTestPrimitive(t)
	_, err := p.Set(nil, "default", storage.ReservedPrefix+"x", RootPath, value.Int(1))
	require.Error(t, err)
}

func TestRootPathReadInsideTransactionMatchesDirectReadAfterCommit(t *testing.T) {
	p := newTestPrimitive(t)
	doc := obj("name", value.String("bob"))

	tx := p.ctrl.Begin("default")
	ver, err := p.Set(tx, "default", "user", RootPath, doc)
	require.NoError(t, err)
	require.True(t, ver.Equal(value.Zero))

	gotInTxn, ok, err := p.Get(tx, "default", "user", RootPath)
	require.NoError(t, err)
	require.True(t, ok)
	oInTxn, isObj := gotInTxn.AsObject()
	require.True(t, isObj)
	nameInTxn, _ := oInTxn.Get("name")
	sInTxn, _ := nameInTxn.AsString()
	require.Equal(t, "bob", sInTxn)

	require.NoError(t, p.ctrl.Commit(tx))

	gotDirect, ok, err := p.Get(nil, "default", "user", RootPath)
	require.NoError(t, err)
	require.True(t, ok)
	oDirect, isObj := gotDirect.AsObject()
	require.True(t, isObj)
	nameDirect, _ := oDirect.Get("name")
	sDirect, _ := nameDirect.AsString()
	require.Equal(t, "bob", sDirect)
}
