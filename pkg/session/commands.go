package session

import (
	"context"

	"github.com/strata-db/strata/pkg/graph"
	"github.com/strata-db/strata/pkg/kv"
	"github.com/strata-db/strata/pkg/value"
)

// --- KV ---

func (s *Session) KvPut(ctx context.Context, key string, val value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	b := s.branchFor()
	if err := s.requireBranch(b); err != nil {
		return value.Version{}, err
	}
	ver, err := s.kv.Put(s.tx, b, key, val)
	if err != nil {
		return value.Version{}, err
	}
	s.maybeAutoEmbed(ctx, b, "kv:"+b, key, val)
	return ver, nil
}

func (s *Session) KvGet(key string) (value.Value, bool, error) {
	return s.kv.Get(s.tx, s.branchFor(), key)
}

func (s *Session) KvGetv(key string) (value.Versioned, bool, error) {
	return s.kv.GetVersioned(s.tx, s.branchFor(), key)
}

func (s *Session) KvDelete(key string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	if err := s.requireBranch(s.branchFor()); err != nil {
		return false, err
	}
	return s.kv.Delete(s.tx, s.branchFor(), key)
}

func (s *Session) KvList(prefix string) ([]kv.ListEntry, error) {
	return s.kv.List(s.branchFor(), prefix)
}

func (s *Session) KvCas(key string, expected value.Version, newVal value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	if err := s.requireBranch(s.branchFor()); err != nil {
		return value.Version{}, err
	}
	return s.kv.Cas(s.tx, s.branchFor(), key, expected, newVal)
}

// --- JSON ---

func (s *Session) JsonSet(ctx context.Context, key, path string, newVal value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	b := s.branchFor()
	if err := s.requireBranch(b); err != nil {
		return value.Version{}, err
	}
	ver, err := s.json.Set(s.tx, b, key, path, newVal)
	if err != nil {
		return value.Version{}, err
	}
	if path == "$" {
		s.maybeAutoEmbed(ctx, b, "json:"+b, key, newVal)
	}
	return ver, nil
}

func (s *Session) JsonGet(key, path string) (value.Value, bool, error) {
	return s.json.Get(s.tx, s.branchFor(), key, path)
}

func (s *Session) JsonGetv(key string) ([]value.Versioned, error) {
	return s.json.History(s.branchFor(), key)
}

func (s *Session) JsonDelete(key, path string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	if err := s.requireBranch(s.branchFor()); err != nil {
		return false, err
	}
	return s.json.Delete(s.tx, s.branchFor(), key, path)
}

// --- State ---

func (s *Session) StateInit(ctx context.Context, cell string, val value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	b := s.branchFor()
	if err := s.requireBranch(b); err != nil {
		return value.Version{}, err
	}
	ver, err := s.state.Init(s.tx, b, cell, val)
	if err != nil {
		return value.Version{}, err
	}
	s.maybeAutoEmbed(ctx, b, "state:"+b, cell, val)
	return ver, nil
}

func (s *Session) StateSet(ctx context.Context, cell string, val value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	b := s.branchFor()
	if err := s.requireBranch(b); err != nil {
		return value.Version{}, err
	}
	ver, err := s.state.Set(s.tx, b, cell, val)
	if err != nil {
		return value.Version{}, err
	}
	s.maybeAutoEmbed(ctx, b, "state:"+b, cell, val)
	return ver, nil
}

func (s *Session) StateRead(cell string) (value.Value, bool, error) {
	return s.state.Get(s.tx, s.branchFor(), cell)
}

func (s *Session) StateReadv(cell string) (value.Versioned, bool, error) {
	return s.state.Readv(s.tx, s.branchFor(), cell)
}

func (s *Session) StateCas(cell string, expected value.Version, newVal value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	if err := s.requireBranch(s.branchFor()); err != nil {
		return value.Version{}, err
	}
	return s.state.Cas(s.tx, s.branchFor(), cell, expected, newVal)
}

// --- Event ---

func (s *Session) EventAppend(stream string, payload value.Value) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	b := s.branchFor()
	if err := s.requireBranch(b); err != nil {
		return value.Version{}, err
	}
	return s.event.Append(s.tx, b, stream, payload)
}

func (s *Session) EventRange(stream string, start, end, limit *uint64) ([]value.Versioned, error) {
	return s.event.Range(s.branchFor(), stream, start, end, limit)
}

func (s *Session) EventGet(stream string, seq uint64) (value.Versioned, bool, error) {
	return s.event.Get(s.branchFor(), stream, seq)
}

func (s *Session) EventLen(stream string) (uint64, error) {
	return s.event.Len(s.branchFor(), stream)
}

// --- Graph ---
// Graph commands never consult the active transaction — they do not
// participate in the transaction envelope.

func (s *Session) GraphCreate(name string, policy graph.CascadePolicy, createdAt int64) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	if err := s.requireBranch(s.currentBranch); err != nil {
		return value.Version{}, err
	}
	return s.graph.CreateGraph(s.currentBranch, name, policy, createdAt)
}

func (s *Session) GraphDelete(name string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	return s.graph.DeleteGraph(s.currentBranch, name)
}

func (s *Session) GraphList() ([]graph.Meta, error) {
	return s.graph.ListGraphs(s.currentBranch)
}

func (s *Session) GraphGetMeta(name string) (graph.Meta, bool, error) {
	return s.graph.GetMeta(s.currentBranch, name)
}

func (s *Session) GraphAddNode(name, nodeID, entityRef string, properties *value.Object) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	if err := s.requireBranch(s.currentBranch); err != nil {
		return value.Version{}, err
	}
	return s.graph.AddNode(nil, s.currentBranch, name, nodeID, entityRef, properties)
}

func (s *Session) GraphGetNode(name, nodeID string) (graph.Node, bool, error) {
	return s.graph.GetNode(s.currentBranch, name, nodeID)
}

func (s *Session) GraphListNodes(name string) ([]graph.Node, error) {
	return s.graph.ListNodes(s.currentBranch, name)
}

func (s *Session) GraphRemoveNode(name, nodeID string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	if err := s.requireBranch(s.currentBranch); err != nil {
		return false, err
	}
	return s.graph.RemoveNode(nil, s.currentBranch, name, nodeID)
}

func (s *Session) GraphAddEdge(name, src, dst, edgeType string, weight float64, properties *value.Object) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	if err := s.requireBranch(s.currentBranch); err != nil {
		return value.Version{}, err
	}
	return s.graph.AddEdge(nil, s.currentBranch, name, src, dst, edgeType, weight, properties)
}

func (s *Session) GraphRemoveEdge(name, src, dst, edgeType string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	if err := s.requireBranch(s.currentBranch); err != nil {
		return false, err
	}
	return s.graph.RemoveEdge(nil, s.currentBranch, name, src, dst, edgeType)
}

func (s *Session) GraphNeighbors(name, node string, dir graph.Direction, edgeTypes []string, order graph.NeighborOrder) ([]graph.Edge, error) {
	return s.graph.Neighbors(s.currentBranch, name, node, dir, edgeTypes, order)
}

func (s *Session) GraphBfs(name, start string, opts graph.BFSOptions) ([]string, error) {
	return s.graph.BFS(s.currentBranch, name, start, opts)
}
