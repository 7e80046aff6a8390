package branch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/graph"
	"github.com/strata-db/strata/pkg/kv"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

type testHarness struct {
	ctrl   *txn.Controller
	branch *Primitive
	kv     *kv.Primitive
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := config.Default()
	cfg.Durability = config.Strict
	dir := filepath.Join(t.TempDir(), "wal")
	w, err := wal.Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctrl := txn.New(storage.New(), w, events.NewBroker(), cfg, value.Version{})
	return &testHarness{ctrl: ctrl, branch: New(ctrl), kv: kv.New(ctrl)}
}

func TestDefaultBranchAlwaysExistsAndCannotBeCreatedOrDeleted(t *testing.T) {
	h := newTestHarness(t)
	require.True(t, h.branch.Exists(Default))

	meta, ok, err := h.branch.Get(Default)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Active, meta.State)

	_, err = h.branch.Create(Default, "", nil, "", 0)
	require.Error(t, err)

	_, err = h.branch.Delete(Default)
	require.Error(t, err)
}

func TestCreateGetListDelete(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("feature-1", "Feature One", nil, graph.PolicyCascade, 100)
	require.NoError(t, err)

	meta, ok, err := h.branch.Get("feature-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Feature One", meta.DisplayName)
	require.Equal(t, graph.PolicyCascade, meta.CascadeDefault)

	_, err = h.branch.Create("feature-1", "", nil, "", 0)
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindConstraintViolation))

	list, err := h.branch.List(nil)
	require.NoError(t, err)
	require.Len(t, list, 2) // default + feature-1

	deleted, err := h.branch.Delete("feature-1")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, h.branch.Exists("feature-1"))
}

func TestCreateRejectsInvalidID(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("", "", nil, "", 0)
	require.Error(t, err)

	_, err = h.branch.Create("has a space", "", nil, "", 0)
	require.Error(t, err)
}

func TestUpdateMetadata(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("b1", "B One", nil, graph.PolicyIgnore, 0)
	require.NoError(t, err)

	md := value.NewObject()
	md.Set("owner", value.String("alice"))
	_, err = h.branch.UpdateMetadata("b1", "B One Renamed", md, graph.PolicyDetach)
	require.NoError(t, err)

	meta, ok, err := h.branch.Get("b1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B One Renamed", meta.DisplayName)
	require.Equal(t, graph.PolicyDetach, meta.CascadeDefault)
	owner, _ := meta.Metadata.Get("owner")
	s, _ := owner.AsString()
	require.Equal(t, "alice", s)
}

func TestListFiltersByState(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("active-1", "", nil, "", 0)
	require.NoError(t, err)
	_, err = h.branch.Create("closed-1", "", nil, "", 0)
	require.NoError(t, err)
	_, err = h.branch.UpdateMetadata("closed-1", "", nil, "")
	require.NoError(t, err)

	meta, _, _ := h.branch.Get("closed-1")
	meta.State = Closed
	_, err = h.ctrl.DirectWrite(metaShard, []storage.Write{{Key: metaKey("closed-1"), Value: encodeMeta(meta)}}, nil)
	require.NoError(t, err)

	closed := Closed
	list, err := h.branch.List(&closed)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "closed-1", list[0].ID)
}

func TestForkLatestOnlyCopiesCurrentValues(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.kv.Put(nil, Default, "k1", value.String("hello"))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, Default, "k2", value.Int(42))
	require.NoError(t, err)

	_, err = h.branch.Create("fork-dst", "", nil, "", 0)
	require.NoError(t, err)

	_, err = h.branch.Fork(Default, "fork-dst", ForkLatestOnly)
	require.NoError(t, err)

	v, ok, err := h.kv.Get(nil, "fork-dst", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := v.AsString()
	require.Equal(t, "hello", s)

	v2, ok, err := h.kv.Get(nil, "fork-dst", "k2")
	require.NoError(t, err)
	require.True(t, ok)
	n, _ := v2.AsInt()
	require.Equal(t, int64(42), n)
}

func TestForkRequiresExistingBranches(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Fork(Default, "nonexistent", ForkLatestOnly)
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindBranchNotFound))
}

func TestDiffReportsOnlyInAOnlyInBAndDiffering(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("b2", "", nil, "", 0)
	require.NoError(t, err)

	_, err = h.kv.Put(nil, Default, "shared", value.String("A"))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "b2", "shared", value.String("B"))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, Default, "only-default", value.Int(1))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "b2", "only-b2", value.Int(2))
	require.NoError(t, err)

	d, err := h.branch.Diff(Default, "b2")
	require.NoError(t, err)
	require.Len(t, d.Differing, 1)
	require.Equal(t, "shared", d.Differing[0].Key)
	require.Len(t, d.OnlyInA, 1)
	require.Equal(t, "only-default", d.OnlyInA[0].Key)
	require.Len(t, d.OnlyInB, 1)
	require.Equal(t, "only-b2", d.OnlyInB[0].Key)
}

func TestMergeSourceWins(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("b3", "", nil, "", 0)
	require.NoError(t, err)
	_, err = h.kv.Put(nil, Default, "k", value.String("from-default"))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "b3", "k", value.String("from-b3"))
	require.NoError(t, err)

	n, err := h.branch.Merge(Default, "b3", SourceWins)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, _, err := h.kv.Get(nil, "b3", "k")
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "from-default", s)
}

func TestMergeTargetWinsLeavesTargetUnchanged(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("b4", "", nil, "", 0)
	require.NoError(t, err)
	_, err = h.kv.Put(nil, Default, "k", value.String("from-default"))
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "b4", "k", value.String("from-b4"))
	require.NoError(t, err)

	n, err := h.branch.Merge(Default, "b4", TargetWins)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	v, _, err := h.kv.Get(nil, "b4", "k")
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "from-b4", s)
}

func TestMergeCopiesKeysOnlyInSourceRegardlessOfStrategy(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.branch.Create("b5", "", nil, "", 0)
	require.NoError(t, err)
	_, err = h.kv.Put(nil, Default, "new-key", value.String("v"))
	require.NoError(t, err)

	n, err := h.branch.Merge(Default, "b5", TargetWins)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, err := h.kv.Get(nil, "b5", "new-key")
	require.NoError(t, err)
	require.True(t, ok)
}
