package graph

import (
	"strings"

	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
)

// startCascadeHook subscribes to the shared event bus and reacts to
// EntityDeleted notifications for Kv/Json entities, applying each bound
// graph's cascade policy. Runs for the lifetime of the
// Primitive; there is no corresponding Stop because the bus itself is
// torn down with the engine.
func (p *Primitive) startCascadeHook() {
	bus := p.ctrl.Bus()
	if bus == nil {
		return
	}
	sub := bus.Subscribe()
	go p.runCascadeHook(sub)
}

func (p *Primitive) runCascadeHook(sub events.Subscriber) {
	for evt := range sub {
		if evt.Kind != events.EntityDeleted {
			continue
		}
		switch evt.Ref.Kind() {
		case value.RefKv, value.RefJSON:
			p.applyCascade(evt.Ref)
		}
	}
}

// applyCascade looks up every (graph, node) bound to ref and applies that
// graph's cascade policy. A per-binding failure is logged and skipped —
// it must never propagate back to the deleter.
func (p *Primitive) applyCascade(ref value.EntityRef) {
	branch := ref.Branch()
	refStr := ref.String()
	prefix := refIndexPrefix(refStr)

	bindings := p.ctrl.Store().ScanPrefix(branch, storage.TagGraphRef, prefix)
	for _, b := range bindings {
		suffix := strings.TrimPrefix(b.Key.UserKey, prefix)
		parts := strings.SplitN(suffix, "\x00", 2)
		if len(parts) != 2 {
			continue
		}
		graphName, nodeID := parts[0], parts[1]

		meta, ok, err := p.GetMeta(branch, graphName)
		if err != nil || !ok {
			if err != nil {
				graphLog.Warn().Err(err).Str("graph", graphName).Msg("cascade: failed to load graph metadata")
			}
			continue
		}

		switch meta.CascadePolicy {
		case PolicyCascade:
			if _, err := p.RemoveNode(nil, branch, graphName, nodeID); err != nil {
				graphLog.Warn().Err(err).Str("graph", graphName).Str("node", nodeID).Msg("cascade remove_node failed")
			}
		case PolicyDetach:
			if err := p.detachNode(branch, graphName, nodeID); err != nil {
				graphLog.Warn().Err(err).Str("graph", graphName).Str("node", nodeID).Msg("cascade detach failed")
			}
		case PolicyIgnore:
		}
	}
}

// detachNode clears a node's entity_ref binding and removes its ref-index
// entry, leaving the node and its edges intact.
func (p *Primitive) detachNode(branch, graphName, nodeID string) error {
	node, exists, err := p.GetNode(branch, graphName, nodeID)
	if err != nil {
		return err
	}
	if !exists || node.EntityRef == "" {
		return nil
	}

	oldRef := node.EntityRef
	nk := nodeKey(branch, graphName, nodeID)
	ref := internalRef(branch, "graph-node:"+graphName+"/"+nodeID)
	encoded := encodeNode(Node{ID: nodeID, EntityRef: "", Properties: node.Properties})

	implicit := p.ctrl.Begin(branch)
	p.ctrl.Write(implicit, nk, encoded, ref)
	p.ctrl.WriteDelete(implicit, refIndexKey(branch, oldRef, graphName, nodeID), ref)
	return p.ctrl.Commit(implicit)
}
