package graph

import (
	"strings"
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

var graphLog = log.WithComponent("graph")

// CascadePolicy governs what happens to a graph node bound to an external
// entity (a KV key or JSON document) when that entity is deleted.
type CascadePolicy string

const (
	// PolicyCascade removes the node and all incident edges.
	PolicyCascade CascadePolicy = "cascade"
	// PolicyDetach clears the node's entity_ref binding in place.
	PolicyDetach CascadePolicy = "detach"
	// PolicyIgnore does nothing.
	PolicyIgnore CascadePolicy = "ignore"
)

// Direction selects which incident edges a traversal considers.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// NeighborOrder selects how Neighbors orders its result.
type NeighborOrder int

const (
	// Unordered returns edges in scan order (no sort pass).
	Unordered NeighborOrder = iota
	// Weighted sorts edges by Weight, descending — highest-weight
	// relationship first. Ties keep their scan-order relative position.
	Weighted
)

// Meta describes one graph's lifecycle metadata.
type Meta struct {
	Name          string
	CascadePolicy CascadePolicy
	CreatedAt     int64
}

// Node is one graph vertex: an optional binding to an external entity plus
// a free-form property bag.
type Node struct {
	ID         string
	EntityRef  string // binding to an external entity, empty when unbound
	Properties *value.Object
}

// Edge is one directed, typed relationship between two nodes.
type Edge struct {
	Src, Dst   string
	Type       string
	Weight     float64
	Properties *value.Object
}

// Primitive implements the Graph command family, a layer of scans composed
// from primitive storage reads/writes. AddNode, RemoveNode, AddEdge and
// RemoveEdge take an optional *txn.Transaction and buffer into it when it
// is non-nil; with nil, each runs as its own implicit transaction, same
// mechanism kv.Cas and event.Append use. Lifecycle calls (CreateGraph,
// DeleteGraph) and traversal calls take no transaction.
type Primitive struct {
	ctrl *txn.Controller
}

// New returns a Graph primitive bound to ctrl and starts its cascade
// subscription.
func New(ctrl *txn.Controller) *Primitive {
	p := &Primitive{ctrl: ctrl}
	p.startCascadeHook()
	return p
}

func validateName(kind, name string) error {
	if name == "" {
		return strataerr.New(strataerr.KindInvalidInput, kind+" must not be empty")
	}
	if !utf8.ValidString(name) {
		return strataerr.New(strataerr.KindInvalidInput, kind+" must be valid UTF-8")
	}
	if strings.ContainsRune(name, 0) {
		return strataerr.New(strataerr.KindInvalidInput, kind+" must not contain an embedded NUL")
	}
	return nil
}

func metaKey(branch, graphName string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagGraphMeta, UserKey: graphName}
}

func nodeKey(branch, graphName, nodeID string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagGraphNode, UserKey: graphName + "\x00" + nodeID}
}

func nodePrefix(graphName string) string {
	return graphName + "\x00"
}

func edgeFwdKey(branch, graphName, src, edgeType, dst string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagGraphEdgeFwd, UserKey: edgeUserKey(graphName, src, edgeType, dst)}
}

func edgeRevKey(branch, graphName, src, edgeType, dst string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagGraphEdgeRev, UserKey: edgeUserKey(graphName, dst, edgeType, src)}
}

func edgeUserKey(graphName, from, edgeType, to string) string {
	return graphName + "\x00" + from + "\x00" + edgeType + "\x00" + to
}

func edgeOutPrefix(graphName, node string) string {
	return graphName + "\x00" + node + "\x00"
}

func edgeOutPrefixTyped(graphName, node, edgeType string) string {
	return graphName + "\x00" + node + "\x00" + edgeType + "\x00"
}

func refIndexKey(branch, ref, graphName, nodeID string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagGraphRef, UserKey: ref + "\x00" + graphName + "\x00" + nodeID}
}

func refIndexPrefix(ref string) string {
	return ref + "\x00"
}

func encodeMeta(m Meta) value.Value {
	o := value.NewObject()
	o.Set("cascade_policy", value.String(string(m.CascadePolicy)))
	o.Set("created_at", value.Int(m.CreatedAt))
	return value.ObjectValue(o)
}

func decodeMeta(name string, v value.Value) (Meta, bool) {
	o, ok := v.AsObject()
	if !ok {
		return Meta{}, false
	}
	policy := PolicyIgnore
	if p, ok := o.Get("cascade_policy"); ok {
		if s, ok := p.AsString(); ok {
			policy = CascadePolicy(s)
		}
	}
	createdAt := int64(0)
	if c, ok := o.Get("created_at"); ok {
		if n, ok := c.AsInt(); ok {
			createdAt = n
		}
	}
	return Meta{Name: name, CascadePolicy: policy, CreatedAt: createdAt}, true
}

func encodeNode(n Node) value.Value {
	o := value.NewObject()
	o.Set("entity_ref", value.String(n.EntityRef))
	props := n.Properties
	if props == nil {
		props = value.NewObject()
	}
	o.Set("properties", value.ObjectValue(props))
	return value.ObjectValue(o)
}

func decodeNode(id string, v value.Value) (Node, bool) {
	o, ok := v.AsObject()
	if !ok {
		return Node{}, false
	}
	ref := ""
	if r, ok := o.Get("entity_ref"); ok {
		if s, ok := r.AsString(); ok {
			ref = s
		}
	}
	props := value.NewObject()
	if p, ok := o.Get("properties"); ok {
		if po, ok := p.AsObject(); ok {
			props = po
		}
	}
	return Node{ID: id, EntityRef: ref, Properties: props}, true
}

func encodeEdge(e Edge) value.Value {
	o := value.NewObject()
	o.Set("weight", value.Float(e.Weight))
	props := e.Properties
	if props == nil {
		props = value.NewObject()
	}
	o.Set("properties", value.ObjectValue(props))
	return value.ObjectValue(o)
}

func decodeEdge(src, edgeType, dst string, v value.Value) (Edge, bool) {
	o, ok := v.AsObject()
	if !ok {
		return Edge{}, false
	}
	weight := 0.0
	if w, ok := o.Get("weight"); ok {
		if f, ok := w.AsFloat(); ok {
			weight = f
		}
	}
	props := value.NewObject()
	if p, ok := o.Get("properties"); ok {
		if po, ok := p.AsObject(); ok {
			props = po
		}
	}
	return Edge{Src: src, Dst: dst, Type: edgeType, Weight: weight, Properties: props}, true
}
