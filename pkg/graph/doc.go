/*
Package graph implements Strata's property-graph primitive: a
layer of KV-style scans over the shared storage substrate within a reserved
key namespace, plus a referential-integrity hook that reacts to other
primitives' deletes.

Nodes and edges are stored as individual chain entries — one per node, one
forward and one reverse entry per edge — addressed by composite UserKeys
that sort lexicographically into the traversal order each operation needs
(neighbors/bfs/subgraph all reduce to a bounded storage.ScanPrefix). This
mirrors how pkg/event addresses individual stream entries by padded
sequence rather than keeping one growing chain per stream.

Cascade hooks subscribe to pkg/events rather than being invoked inline from
kv/jsondoc's commit path, so a slow or failing graph callback can never
block an unrelated primitive's write: per-graph hook errors are logged but
never propagate to the deleter.
*/
package graph
