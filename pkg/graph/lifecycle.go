package graph

import (
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/value"
)

func internalRef(branch, label string) value.EntityRef {
	return value.KvRef(branch, storage.ReservedPrefix+label)
}

// CreateGraph registers a new graph with the given cascade policy. It fails
// if a graph of the same name already exists in branch.
func (p *Primitive) CreateGraph(branch, graphName string, policy CascadePolicy, createdAt int64) (value.Version, error) {
	if err := validateName("graph", graphName); err != nil {
		return value.Version{}, err
	}
	if policy == "" {
		policy = PolicyIgnore
	}
	k := metaKey(branch, graphName)
	if _, exists := p.ctrl.DirectRead(k); exists {
		return value.Version{}, strataerr.New(strataerr.KindConstraintViolation, "graph already exists: "+graphName)
	}
	ref := internalRef(branch, "graph-meta:"+graphName)
	ver, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Value: encodeMeta(Meta{Name: graphName, CascadePolicy: policy, CreatedAt: createdAt})}}, []value.EntityRef{ref})
	if err != nil {
		return value.Version{}, err
	}
	return ver, nil
}

// GetMeta returns a graph's lifecycle metadata.
func (p *Primitive) GetMeta(branch, graphName string) (Meta, bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return Meta{}, false, err
	}
	v, ok := p.ctrl.DirectRead(metaKey(branch, graphName))
	if !ok {
		return Meta{}, false, nil
	}
	m, ok := decodeMeta(graphName, v.Value)
	if !ok {
		return Meta{}, false, strataerr.New(strataerr.KindSerialization, "corrupt graph metadata: "+graphName)
	}
	return m, true, nil
}

// ListGraphs returns metadata for every graph defined in branch.
func (p *Primitive) ListGraphs(branch string) ([]Meta, error) {
	entries := p.ctrl.Store().ScanPrefix(branch, storage.TagGraphMeta, "")
	out := make([]Meta, 0, len(entries))
	for _, e := range entries {
		m, ok := decodeMeta(e.Key.UserKey, e.Entry.Value)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// DeleteGraph removes graphName and every node, edge, and ref-index entry
// it owns.
func (p *Primitive) DeleteGraph(branch, graphName string) (bool, error) {
	if err := validateName("graph", graphName); err != nil {
		return false, err
	}
	k := metaKey(branch, graphName)
	if _, exists := p.ctrl.DirectRead(k); !exists {
		return false, nil
	}

	nodes, err := p.ListNodes(branch, graphName)
	if err != nil {
		return false, err
	}
	for _, n := range nodes {
		if _, err := p.RemoveNode(nil, branch, graphName, n.ID); err != nil {
			return false, err
		}
	}

	ref := internalRef(branch, "graph-meta:"+graphName)
	if _, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Deleted: true}}, []value.EntityRef{ref}); err != nil {
		return false, err
	}
	return true, nil
}
