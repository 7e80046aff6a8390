package graph

import (
	"sort"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
)

// Neighbors returns the edges incident to node in the requested direction,
// optionally restricted to edgeTypes (nil/empty means every type) and
// ordered per order. Self-loops are returned once for Outgoing, once for
// Incoming, and twice for Both.
//
// Weighted sorts the result by Weight descending (sort.SliceStable, so
// equal-weight edges keep their scan-order relative position) — a
// per-edge weight ranking agent-memory callers use to prefer a
// node's strongest relationships first, adapted from the original
// engine's proximity-boost scoring.
func (p *Primitive) Neighbors(branch, graphName, node string, dir Direction, edgeTypes []string, order NeighborOrder) ([]Edge, error) {
	if err := validateName("graph", graphName); err != nil {
		return nil, err
	}
	var out []Edge
	if dir == Outgoing || dir == Both {
		edges, err := p.scanDirected(branch, graphName, storage.TagGraphEdgeFwd, node, edgeTypes, false)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	if dir == Incoming || dir == Both {
		edges, err := p.scanDirected(branch, graphName, storage.TagGraphEdgeRev, node, edgeTypes, true)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	if order == Weighted {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	}
	return out, nil
}

// scanDirected scans one of the two edge tags for entries incident to
// node. reversed indicates the tag stores (dst, type, src) rather than
// (src, type, dst), so the decoded Edge's endpoints are swapped back.
func (p *Primitive) scanDirected(branch, graphName string, tag storage.TypeTag, node string, edgeTypes []string, reversed bool) ([]Edge, error) {
	var out []Edge
	scan := func(prefix string) {
		for _, e := range p.ctrl.Store().ScanPrefix(branch, tag, prefix) {
			first, edgeType, second, ok := parseEdgeUserKey(graphName, e.Key.UserKey)
			if !ok {
				continue
			}
			src, dst := first, second
			if reversed {
				src, dst = second, first
			}
			edge, ok := decodeEdge(src, edgeType, dst, e.Entry.Value)
			if !ok {
				continue
			}
			out = append(out, edge)
		}
	}
	if len(edgeTypes) == 0 {
		scan(edgeOutPrefix(graphName, node))
		return out, nil
	}
	for _, et := range edgeTypes {
		scan(edgeOutPrefixTyped(graphName, node, et))
	}
	return out, nil
}

// Degree returns the number of edges incident to node in the requested
// direction.
func (p *Primitive) Degree(branch, graphName, node string, dir Direction, edgeTypes []string) (int, error) {
	edges, err := p.Neighbors(branch, graphName, node, dir, edgeTypes, Unordered)
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

// BFSOptions bounds a breadth-first traversal. Zero values mean
// "unbounded"; a nil/empty EdgeTypes means "every type."
type BFSOptions struct {
	MaxDepth  int
	MaxNodes  int
	EdgeTypes []string
	Direction Direction
}

// BFS walks the graph from start in breadth-first level order, returning
// visited node ids in discovery order.
func (p *Primitive) BFS(branch, graphName, start string, opts BFSOptions) ([]string, error) {
	if err := validateName("graph", graphName); err != nil {
		return nil, err
	}
	if _, exists, err := p.GetNode(branch, graphName, start); err != nil {
		return nil, err
	} else if !exists {
		return nil, strataerr.New(strataerr.KindNotFound, "start node not found: "+start)
	}
	if opts.Direction == "" {
		opts.Direction = Outgoing
	}

	type qItem struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	order := []string{start}
	queue := []qItem{{start, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if opts.MaxDepth > 0 && cur.depth >= opts.MaxDepth {
			continue
		}
		edges, err := p.Neighbors(branch, graphName, cur.id, opts.Direction, opts.EdgeTypes, Unordered)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			next := e.Dst
			if e.Src != cur.id {
				next = e.Src
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			order = append(order, next)
			queue = append(queue, qItem{next, cur.depth + 1})
			if opts.MaxNodes > 0 && len(order) >= opts.MaxNodes {
				return order, nil
			}
		}
	}
	return order, nil
}

// GraphSnapshot is the extracted induced subgraph over a node-id set.
type GraphSnapshot struct {
	Nodes []Node
	Edges []Edge
}

// Subgraph extracts the nodes in nodeIDs (skipping ids that don't exist)
// and every edge whose both endpoints are in the set.
func (p *Primitive) Subgraph(branch, graphName string, nodeIDs []string) (GraphSnapshot, error) {
	if err := validateName("graph", graphName); err != nil {
		return GraphSnapshot{}, err
	}
	set := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = true
	}

	var snap GraphSnapshot
	for _, id := range nodeIDs {
		n, exists, err := p.GetNode(branch, graphName, id)
		if err != nil {
			return GraphSnapshot{}, err
		}
		if !exists {
			continue
		}
		snap.Nodes = append(snap.Nodes, n)

		edges, err := p.Neighbors(branch, graphName, id, Outgoing, nil, Unordered)
		if err != nil {
			return GraphSnapshot{}, err
		}
		for _, e := range edges {
			if set[e.Dst] {
				snap.Edges = append(snap.Edges, e)
			}
		}
	}
	return snap, nil
}
