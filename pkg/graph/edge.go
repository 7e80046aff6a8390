package graph

import (
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// AddEdge creates a typed, directed edge from src to dst, writing the
// forward and reverse index entries atomically. Both
// endpoints must already exist as nodes.
func (p *Primitive) AddEdge(t *txn.Transaction, branch, graphName, src, dst, edgeType string, weight float64, properties *value.Object) (value.Version, error) {
	if err := validateName("graph", graphName); err != nil {
		return value.Version{}, err
	}
	if err := validateName("edge type", edgeType); err != nil {
		return value.Version{}, err
	}
	if _, exists, err := p.GetNode(branch, graphName, src); err != nil {
		return value.Version{}, err
	} else if !exists {
		return value.Version{}, strataerr.New(strataerr.KindNotFound, "source node not found: "+src)
	}
	if _, exists, err := p.GetNode(branch, graphName, dst); err != nil {
		return value.Version{}, err
	} else if !exists {
		return value.Version{}, strataerr.New(strataerr.KindNotFound, "destination node not found: "+dst)
	}

	fk := edgeFwdKey(branch, graphName, src, edgeType, dst)
	rk := edgeRevKey(branch, graphName, src, edgeType, dst)
	ref := internalRef(branch, "graph-edge:"+graphName+"/"+src+"->"+dst+":"+edgeType)
	encoded := encodeEdge(Edge{Src: src, Dst: dst, Type: edgeType, Weight: weight, Properties: properties})

	write := func(tx *txn.Transaction) {
		p.ctrl.Write(tx, fk, encoded, ref)
		p.ctrl.Write(tx, rk, encoded, ref)
	}

	if t != nil {
		write(t)
		return value.Zero, nil
	}
	implicit := p.ctrl.Begin(branch)
	write(implicit)
	if err := p.ctrl.Commit(implicit); err != nil {
		return value.Version{}, err
	}
	v, _ := p.ctrl.DirectRead(fk)
	return v.Version, nil
}

// GetEdge reads the forward entry for one (src, type, dst) edge.
func (p *Primitive) GetEdge(branch, graphName, src, dst, edgeType string) (Edge, bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return Edge{}, false, err
	}
	v, ok := p.ctrl.DirectRead(edgeFwdKey(branch, graphName, src, edgeType, dst))
	if !ok {
		return Edge{}, false, nil
	}
	e, ok := decodeEdge(src, edgeType, dst, v.Value)
	return e, ok, nil
}

// RemoveEdge deletes both the forward and reverse entries for one edge,
// returning whether it existed.
func (p *Primitive) RemoveEdge(t *txn.Transaction, branch, graphName, src, dst, edgeType string) (bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return false, err
	}
	fk := edgeFwdKey(branch, graphName, src, edgeType, dst)
	if _, exists := p.ctrl.DirectRead(fk); !exists {
		return false, nil
	}
	rk := edgeRevKey(branch, graphName, src, edgeType, dst)
	ref := internalRef(branch, "graph-edge:"+graphName+"/"+src+"->"+dst+":"+edgeType)

	del := func(tx *txn.Transaction) {
		p.ctrl.WriteDelete(tx, fk, ref)
		p.ctrl.WriteDelete(tx, rk, ref)
	}

	if t != nil {
		del(t)
		return true, nil
	}
	implicit := p.ctrl.Begin(branch)
	del(implicit)
	if err := p.ctrl.Commit(implicit); err != nil {
		return false, err
	}
	return true, nil
}
