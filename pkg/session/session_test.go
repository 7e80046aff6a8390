package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/branch"
	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/embed"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 2, 3}, nil
}

type fakeVectors struct {
	ensured map[string]int
	inserts int
}

func newFakeVectors() *fakeVectors { return &fakeVectors{ensured: map[string]int{}} }

func (f *fakeVectors) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.ensured[collection] = dim
	return nil
}
func (f *fakeVectors) Insert(ctx context.Context, collection, key string, vector []float32, metadata *value.Object) error {
	f.inserts++
	return nil
}
func (f *fakeVectors) Delete(ctx context.Context, collection, key string) error { return nil }
func (f *fakeVectors) Query(ctx context.Context, collection string, vector []float32, topK int) ([]embed.SearchResult, error) {
	return nil, nil
}

// newHarness builds a real Controller the way the other primitive test
// suites do.
func newHarness(t *testing.T) *Session {
	return newHarnessWithEmbed(t, nil, nil)
}

func newHarnessWithEmbed(t *testing.T, embedder embed.QueryEmbedder, vectors embed.VectorCollection) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Durability = config.Strict
	cfg.DataDir = t.TempDir()
	dir := filepath.Join(cfg.DataDir, "wal")
	w, err := wal.Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	bus := events.NewBroker()
	bus.Start()
	t.Cleanup(bus.Stop)

	ctrl := txn.New(storage.New(), w, bus, cfg, value.Version{})
	return New(ctrl, cfg, embedder, vectors)
}

func TestPingAndInfo(t *testing.T) {
	s := newHarness(t)
	require.Equal(t, "pong", s.Ping())
	info := s.Info()
	require.Equal(t, branch.Default, info.CurrentBranch)
	require.False(t, info.HasTransaction)
}

func TestKvPutGetOnDefaultBranch(t *testing.T) {
	s := newHarness(t)
	_, err := s.KvPut(context.Background(), "k1", value.String("v1"))
	require.NoError(t, err)

	v, ok, err := s.KvGet("k1")
	require.NoError(t, err)
	require.True(t, ok)
	str, _ := v.AsString()
	require.Equal(t, "v1", str)
}

func TestWriteToNonexistentBranchFails(t *testing.T) {
	s := newHarness(t)
	require.NoError(t, s.SetBranch(branch.Default))
	err := s.SetBranch("ghost")
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindBranchNotFound))
}

func TestTxnLifecycleVisibility(t *testing.T) {
	s := newHarness(t)
	require.NoError(t, s.TxnBegin(""))

	_, err := s.KvPut(context.Background(), "tk", value.Int(7))
	require.NoError(t, err)

	// Not yet visible outside the transaction's own session view via a
	// second, independent session sharing the controller.
	other := New(s.ctrl, s.cfg, nil, nil)
	_, ok, err := other.KvGet("tk")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.TxnCommit()
	require.NoError(t, err)

	_, ok, err = other.KvGet("tk")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTxnRollbackDiscardsWrites(t *testing.T) {
	s := newHarness(t)
	require.NoError(t, s.TxnBegin(""))
	_, err := s.KvPut(context.Background(), "rk", value.Int(1))
	require.NoError(t, err)
	require.NoError(t, s.TxnRollback())

	_, ok, err := s.KvGet("rk")
	require.NoError(t, err)
	require.False(t, ok)

	commits, rollbacks, _ := s.DurabilityCounters()
	require.Equal(t, uint64(0), commits)
	require.Equal(t, uint64(1), rollbacks)
}

func TestOnlyOneActiveTransaction(t *testing.T) {
	s := newHarness(t)
	require.NoError(t, s.TxnBegin(""))
	err := s.TxnBegin("")
	require.Error(t, err)
	require.NoError(t, s.TxnRollback())
}

func TestBranchCreateAndSwitchAndFork(t *testing.T) {
	s := newHarness(t)
	_, err := s.BranchCreate("feat", "Feature", nil, "", 0)
	require.NoError(t, err)
	require.True(t, s.BranchExists("feat"))

	_, err = s.KvPut(context.Background(), "shared", value.String("default-value"))
	require.NoError(t, err)

	_, err = s.BranchFork(branch.Default, "feat", branch.ForkLatestOnly)
	require.NoError(t, err)

	require.NoError(t, s.SetBranch("feat"))
	v, ok, err := s.KvGet("shared")
	require.NoError(t, err)
	require.True(t, ok)
	str, _ := v.AsString()
	require.Equal(t, "default-value", str)
}

func TestGraphWriteToDeletedCurrentBranchFails(t *testing.T) {
	s := newHarness(t)
	_, err := s.BranchCreate("feat", "Feature", nil, "", 0)
	require.NoError(t, err)
	require.NoError(t, s.SetBranch("feat"))

	ok, err := s.BranchDelete("feat")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.GraphCreate("g", "", 0)
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindBranchNotFound))
}

func TestAutoEmbedHookFiresOnKvPutWhenEnabled(t *testing.T) {
	fe := &fakeEmbedder{}
	fv := newFakeVectors()
	s := newHarnessWithEmbed(t, fe, fv)
	s.ConfigSetAutoEmbed(true)

	o := value.NewObject()
	o.Set("text", value.String("agent memory note"))
	_, err := s.KvPut(context.Background(), "note1", value.ObjectValue(o))
	require.NoError(t, err)

	require.Equal(t, 1, fe.calls)
	require.Equal(t, 1, fv.inserts)
}

func TestAutoEmbedHookSkippedWhenDisabled(t *testing.T) {
	fe := &fakeEmbedder{}
	fv := newFakeVectors()
	s := newHarnessWithEmbed(t, fe, fv)

	enabled, hasEmbedder := s.AutoEmbedStatus()
	require.False(t, enabled)
	require.True(t, hasEmbedder)

	_, err := s.KvPut(context.Background(), "k", value.String("plain text"))
	require.NoError(t, err)
	require.Equal(t, 0, fe.calls)
}

func TestDispatchKvPutGet(t *testing.T) {
	s := newHarness(t)
	out := s.Dispatch(context.Background(), Command{Op: "KvPut", Key: "dk", Value: value.Int(9)})
	require.NoError(t, out.Err)

	out = s.Dispatch(context.Background(), Command{Op: "KvGet", Key: "dk"})
	require.NoError(t, out.Err)
	require.True(t, out.Found)
	n, _ := out.Value.AsInt()
	require.Equal(t, int64(9), n)
}

func TestDispatchUnknownOp(t *testing.T) {
	s := newHarness(t)
	out := s.Dispatch(context.Background(), Command{Op: "NoSuchThing"})
	require.Error(t, out.Err)
	require.True(t, strataerr.Is(out.Err, strataerr.KindInvalidInput))
}
