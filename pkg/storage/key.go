package storage

// TypeTag discriminates which primitive owns a storage key. Primitives
// share the same sharded storage but never collide because the tag is
// part of the composite key.
type TypeTag byte

const (
	TagKV TypeTag = iota
	TagJSON
	TagState
	TagEvent
	TagGraphMeta
	TagGraphNode
	TagGraphEdgeFwd
	TagGraphEdgeRev
	TagGraphRef
	TagBranchMeta
)

// ReservedPrefix is the byte prefix on user keys reserved for internal use
// (branch metadata, graph indexes). Primitives reject user keys that begin
// with it.
const ReservedPrefix = "_strata_"

// Key identifies one version chain: a branch, a primitive type-tag, and a
// user-supplied key.
type Key struct {
	Branch  string
	Tag     TypeTag
	UserKey string
}

// shardKey groups the Branch component used to select a shard.
func (k Key) shardKey() string { return k.Branch }

// chainKey groups the Tag+UserKey component used within a shard.
func (k Key) chainKey() string {
	return string([]byte{byte(k.Tag)}) + k.UserKey
}
