package graph

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/kv"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

type testHarness struct {
	ctrl  *txn.Controller
	graph *Primitive
	kv    *kv.Primitive
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := config.Default()
	cfg.Durability = config.Strict
	dir := filepath.Join(t.TempDir(), "wal")
	w, err := wal.Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	bus := events.NewBroker()
	bus.Start()
	t.Cleanup(bus.Stop)

	ctrl := txn.New(storage.New(), w, bus, cfg, value.Version{})
	return &testHarness{ctrl: ctrl, graph: New(ctrl), kv: kv.New(ctrl)}
}

func TestCreateGetListGraph(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "social", PolicyCascade, 1000)
	require.NoError(t, err)

	meta, ok, err := h.graph.GetMeta("default", "social")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, PolicyCascade, meta.CascadePolicy)

	_, err = h.graph.CreateGraph("default", "social", PolicyIgnore, 1001)
	require.Error(t, err)

	list, err := h.graph.ListGraphs("default")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAddGetListRemoveNode(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)

	props := value.NewObject()
	props.Set("name", value.String("alice"))
	_, err = h.graph.AddNode(nil, "default", "g", "n1", "", props)
	require.NoError(t, err)
	_, err = h.graph.AddNode(nil, "default", "g", "n2", "", nil)
	require.NoError(t, err)

	n, ok, err := h.graph.GetNode("default", "g", "n1")
	require.NoError(t, err)
	require.True(t, ok)
	nameVal, _ := n.Properties.Get("name")
	s, _ := nameVal.AsString()
	require.Equal(t, "alice", s)

	nodes, err := h.graph.ListNodes("default", "g")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	removed, err := h.graph.RemoveNode(nil, "default", "g", "n1")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err = h.graph.GetNode("default", "g", "n1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddEdgeRequiresExistingNodes(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)

	_, err = h.graph.AddEdge(nil, "default", "g", "missing-a", "missing-b", "knows", 1.0, nil)
	require.Error(t, err)
	require.True(t, strataerr.Is(err, strataerr.KindNotFound))
}

func TestAddGetRemoveEdge(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)
	_, err = h.graph.AddNode(nil, "default", "g", "a", "", nil)
	require.NoError(t, err)
	_, err = h.graph.AddNode(nil, "default", "g", "b", "", nil)
	require.NoError(t, err)

	_, err = h.graph.AddEdge(nil, "default", "g", "a", "b", "knows", 2.5, nil)
	require.NoError(t, err)

	e, ok, err := h.graph.GetEdge("default", "g", "a", "b", "knows")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2.5, e.Weight)

	removed, err := h.graph.RemoveEdge(nil, "default", "g", "a", "b", "knows")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err = h.graph.GetEdge("default", "g", "a", "b", "knows")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveNodeCascadesIncidentEdges(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)
	_, err = h.graph.AddNode(nil, "default", "g", "a", "", nil)
	require.NoError(t, err)
	_, err = h.graph.AddNode(nil, "default", "g", "b", "", nil)
	require.NoError(t, err)
	_, err = h.graph.AddEdge(nil, "default", "g", "a", "b", "knows", 1, nil)
	require.NoError(t, err)

	_, err = h.graph.RemoveNode(nil, "default", "g", "a")
	require.NoError(t, err)

	_, ok, err := h.graph.GetEdge("default", "g", "a", "b", "knows")
	require.NoError(t, err)
	require.False(t, ok)

	edges, err := h.graph.Neighbors("default", "g", "b", Incoming, nil, Unordered)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func buildStar(t *testing.T, h *testHarness) {
	t.Helper()
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)
	for _, id := range []string{"center", "a", "b", "c"} {
		_, err := h.graph.AddNode(nil, "default", "g", id, "", nil)
		require.NoError(t, err)
	}
	for _, leaf := range []string{"a", "b", "c"} {
		_, err := h.graph.AddEdge(nil, "default", "g", "center", leaf, "link", 1, nil)
		require.NoError(t, err)
	}
}

func TestNeighborsAndDegree(t *testing.T) {
	h := newTestHarness(t)
	buildStar(t, h)

	out, err := h.graph.Neighbors("default", "g", "center", Outgoing, nil, Unordered)
	require.NoError(t, err)
	require.Len(t, out, 3)

	deg, err := h.graph.Degree("default", "g", "center", Outgoing, nil)
	require.NoError(t, err)
	require.Equal(t, 3, deg)

	in, err := h.graph.Neighbors("default", "g", "a", Incoming, nil, Unordered)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, "center", in[0].Src)
}

func TestNeighborsWeightedOrdersByWeightDescending(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)
	for _, id := range []string{"center", "a", "b", "c"} {
		_, err := h.graph.AddNode(nil, "default", "g", id, "", nil)
		require.NoError(t, err)
	}
	_, err = h.graph.AddEdge(nil, "default", "g", "center", "a", "link", 0.2, nil)
	require.NoError(t, err)
	_, err = h.graph.AddEdge(nil, "default", "g", "center", "b", "link", 5.0, nil)
	require.NoError(t, err)
	_, err = h.graph.AddEdge(nil, "default", "g", "center", "c", "link", 1.0, nil)
	require.NoError(t, err)

	out, err := h.graph.Neighbors("default", "g", "center", Outgoing, nil, Weighted)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "b", out[0].Dst)
	require.Equal(t, "c", out[1].Dst)
	require.Equal(t, "a", out[2].Dst)
}

func TestBFSVisitsInLevelOrder(t *testing.T) {
	h := newTestHarness(t)
	buildStar(t, h)

	order, err := h.graph.BFS("default", "g", "center", BFSOptions{Direction: Outgoing})
	require.NoError(t, err)
	require.Equal(t, "center", order[0])
	require.ElementsMatch(t, []string{"a", "b", "c"}, order[1:])
}

func TestBFSRespectsMaxDepth(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, err := h.graph.AddNode(nil, "default", "g", id, "", nil)
		require.NoError(t, err)
	}
	_, err = h.graph.AddEdge(nil, "default", "g", "a", "b", "next", 1, nil)
	require.NoError(t, err)
	_, err = h.graph.AddEdge(nil, "default", "g", "b", "c", "next", 1, nil)
	require.NoError(t, err)

	order, err := h.graph.BFS("default", "g", "a", BFSOptions{Direction: Outgoing, MaxDepth: 1})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, order)
}

func TestSubgraphExtractsInducedEdges(t *testing.T) {
	h := newTestHarness(t)
	buildStar(t, h)

	snap, err := h.graph.Subgraph("default", "g", []string{"center", "a", "b"})
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 3)
	require.Len(t, snap.Edges, 2)
}

func TestCascadePolicyRemovesBoundNodeOnEntityDelete(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyCascade, 0)
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "default", "doc1", value.Int(1))
	require.NoError(t, err)

	ref := value.KvRef("default", "doc1").String()
	_, err = h.graph.AddNode(nil, "default", "g", "n1", ref, nil)
	require.NoError(t, err)

	_, err = h.kv.Delete(nil, "default", "doc1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, _ := h.graph.GetNode("default", "g", "n1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "cascade policy must remove the bound node after entity delete")
}

func TestDetachPolicyClearsEntityRefOnEntityDelete(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyDetach, 0)
	require.NoError(t, err)
	_, err = h.kv.Put(nil, "default", "doc2", value.Int(1))
	require.NoError(t, err)

	ref := value.KvRef("default", "doc2").String()
	_, err = h.graph.AddNode(nil, "default", "g", "n2", ref, nil)
	require.NoError(t, err)

	_, err = h.kv.Delete(nil, "default", "doc2")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, ok, _ := h.graph.GetNode("default", "g", "n2")
		return ok && n.EntityRef == ""
	}, 2*time.Second, 10*time.Millisecond, "detach policy must clear entity_ref but keep the node")
}

func TestDeleteGraphRemovesEverything(t *testing.T) {
	h := newTestHarness(t)
	buildStar(t, h)

	deleted, err := h.graph.DeleteGraph("default", "g")
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok, err := h.graph.GetMeta("default", "g")
	require.NoError(t, err)
	require.False(t, ok)

	nodes, err := h.graph.ListNodes("default", "g")
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestTransactionalAddNodeIsInvisibleUntilCommit(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.graph.CreateGraph("default", "g", PolicyIgnore, 0)
	require.NoError(t, err)

	tx := h.ctrl.Begin("default")
	ver, err := h.graph.AddNode(tx, "default", "g", "n1", "", nil)
	require.NoError(t, err)
	require.True(t, ver.Equal(value.Zero))

	_, ok, _ := h.graph.GetNode("default", "g", "n1")
	require.False(t, ok)

	require.NoError(t, h.ctrl.Commit(tx))
	_, ok, _ = h.graph.GetNode("default", "g", "n1")
	require.True(t, ok)
}
