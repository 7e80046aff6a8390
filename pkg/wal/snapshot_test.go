package wal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := storage.New()
	kLive := storage.Key{Branch: "main", Tag: storage.TagKV, UserKey: "alive"}
	kDead := storage.Key{Branch: "main", Tag: storage.TagKV, UserKey: "gone"}
	kOther := storage.Key{Branch: "feature", Tag: storage.TagState, UserKey: "counter"}

	store.Put(kLive, value.String("v"), value.Txn(3), 100)
	store.Put(kDead, value.Int(1), value.Txn(1), 50)
	store.Delete(kDead, value.Txn(2), 60)
	store.Put(kOther, value.Int(7), value.Counter(4), 70)

	path, err := WriteSnapshot(dir, store, value.Txn(3), 8192)
	require.NoError(t, err)
	require.FileExists(t, path)

	restored := storage.New()
	ver, offset, ok, err := LoadLatestSnapshot(dir, restored)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ver.Equal(value.Txn(3)))
	require.Equal(t, uint64(8192), offset)

	got, ok := restored.Get(kLive)
	require.True(t, ok)
	s, _ := got.Value.AsString()
	require.Equal(t, "v", s)

	_, ok = restored.Get(kDead)
	require.False(t, ok, "tombstoned keys are not re-materialized from a snapshot")

	got, ok = restored.Get(kOther)
	require.True(t, ok)
	require.True(t, got.Version.Equal(value.Counter(4)))
}

func TestLoadLatestSnapshotWithNoSnapshotDirIsOk(t *testing.T) {
	dir := t.TempDir() + "/does-not-exist"
	store := storage.New()
	_, _, ok, err := LoadLatestSnapshot(dir, store)
	require.NoError(t, err)
	require.False(t, ok)
}
