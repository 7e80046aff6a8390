package graph

import (
	"strings"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// AddNode creates or replaces a node. entityRef, when non-empty, binds the
// node to an external entity's canonical EntityRef.String() form, indexed
// for the cascade hook. A nil *txn.Transaction writes
// directly as an implicit transaction; a non-nil one buffers into the
// caller's transaction.
func (p *Primitive) AddNode(t *txn.Transaction, branch, graphName, nodeID, entityRef string, properties *value.Object) (value.Version, error) {
	if err := validateName("graph", graphName); err != nil {
		return value.Version{}, err
	}
	if err := validateName("node", nodeID); err != nil {
		return value.Version{}, err
	}

	k := nodeKey(branch, graphName, nodeID)
	ref := internalRef(branch, "graph-node:"+graphName+"/"+nodeID)
	encoded := encodeNode(Node{ID: nodeID, EntityRef: entityRef, Properties: properties})

	write := func(tx *txn.Transaction) {
		p.ctrl.Write(tx, k, encoded, ref)
		if entityRef != "" {
			p.ctrl.Write(tx, refIndexKey(branch, entityRef, graphName, nodeID), value.Null(), ref)
		}
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
	v, _ := p.ctrl.DirectRead(k)
	return v.Version, nil
}

// GetNode returns one node by id.
func (p *Primitive) GetNode(branch, graphName, nodeID string) (Node, bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return Node{}, false, err
	}
	if err := validateName("node", nodeID); err != nil {
		return Node{}, false, err
	}
	v, ok := p.ctrl.DirectRead(nodeKey(branch, graphName, nodeID))
	if !ok {
		return Node{}, false, nil
	}
	n, ok := decodeNode(nodeID, v.Value)
	return n, ok, nil
}

// ListNodes returns every node currently defined in graphName.
func (p *Primitive) ListNodes(branch, graphName string) ([]Node, error) {
	if err := validateName("graph", graphName); err != nil {
		return nil, err
	}
	entries := p.ctrl.Store().ScanPrefix(branch, storage.TagGraphNode, nodePrefix(graphName))
	out := make([]Node, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Key.UserKey, nodePrefix(graphName))
		n, ok := decodeNode(id, e.Entry.Value)
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// RemoveNode deletes a node along with every incident edge and its
// ref-index binding, returning whether the node existed.
func (p *Primitive) RemoveNode(t *txn.Transaction, branch, graphName, nodeID string) (bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return false, err
	}
	node, exists, err := p.GetNode(branch, graphName, nodeID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	nk := nodeKey(branch, graphName, nodeID)
	ref := internalRef(branch, "graph-node:"+graphName+"/"+nodeID)

	outFwd := p.ctrl.Store().ScanPrefix(branch, storage.TagGraphEdgeFwd, edgeOutPrefix(graphName, nodeID))
	inRev := p.ctrl.Store().ScanPrefix(branch, storage.TagGraphEdgeRev, edgeOutPrefix(graphName, nodeID))

	apply := func(tx *txn.Transaction) {
		p.ctrl.WriteDelete(tx, nk, ref)
		if node.EntityRef != "" {
			p.ctrl.WriteDelete(tx, refIndexKey(branch, node.EntityRef, graphName, nodeID), ref)
		}
		for _, e := range outFwd {
			src, edgeType, dst, ok := parseEdgeUserKey(graphName, e.Key.UserKey)
			if !ok {
				continue
			}
			p.ctrl.WriteDelete(tx, edgeFwdKey(branch, graphName, src, edgeType, dst), ref)
			p.ctrl.WriteDelete(tx, edgeRevKey(branch, graphName, src, edgeType, dst), ref)
		}
		for _, e := range inRev {
			dstNode, edgeType, srcNode, ok := parseEdgeUserKey(graphName, e.Key.UserKey)
			if !ok {
				continue
			}
			p.ctrl.WriteDelete(tx, edgeFwdKey(branch, graphName, srcNode, edgeType, dstNode), ref)
			p.ctrl.WriteDelete(tx, edgeRevKey(branch, graphName, srcNode, edgeType, dstNode), ref)
		}
	}

	if t != nil {
		apply(t)
		return true, nil
	}
	implicit := p.ctrl.Begin(branch)
	apply(implicit)
	if err := p.ctrl.Commit(implicit); err != nil {
		return false, err
	}
	return true, nil
}

func parseEdgeUserKey(graphName, userKey string) (from, edgeType, to string, ok bool) {
	prefix := graphName + "\x00"
	if !strings.HasPrefix(userKey, prefix) {
		return "", "", "", false
	}
	parts := strings.SplitN(userKey[len(prefix):], "\x00", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
