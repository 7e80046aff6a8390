package value

import "fmt"

// RefKind discriminates EntityRef variants. Routing MUST switch on RefKind,
// never on the textual prefix of String().
type RefKind uint8

const (
	RefKv RefKind = iota
	RefJSON
	RefState
	RefEvent
	RefVector
	RefBranch
)

func (k RefKind) prefix() string {
	switch k {
	case RefKv:
		return "kv"
	case RefJSON:
		return "json"
	case RefState:
		return "state"
	case RefEvent:
		return "event"
	case RefVector:
		return "vector"
	case RefBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// EntityRef is a typed, branch-qualified handle into exactly one primitive's
// keyspace. The variant (Kind) is authoritative; String() renders a
// type-prefixed textual form for logs and error messages only.
type EntityRef struct {
	kind     RefKind
	branch   string
	key      string // Kv key / Json key / State cell / Vector key
	stream   string // Event stream name
	sequence uint64 // Event sequence
}

// KvRef constructs a KV EntityRef.
func KvRef(branch, key string) EntityRef { return EntityRef{kind: RefKv, branch: branch, key: key} }

// JSONRef constructs a JSON-document EntityRef.
func JSONRef(branch, key string) EntityRef {
	return EntityRef{kind: RefJSON, branch: branch, key: key}
}

// StateRef constructs a State-cell EntityRef.
func StateRef(branch, cell string) EntityRef {
	return EntityRef{kind: RefState, branch: branch, key: cell}
}

// EventRef constructs an Event EntityRef addressing one sequence in a stream.
func EventRef(branch, stream string, sequence uint64) EntityRef {
	return EntityRef{kind: RefEvent, branch: branch, stream: stream, sequence: sequence}
}

// VectorRef constructs a Vector-collection EntityRef.
func VectorRef(branch, collection, key string) EntityRef {
	return EntityRef{kind: RefVector, branch: branch, stream: collection, key: key}
}

// BranchRef constructs a Branch EntityRef.
func BranchRef(branch string) EntityRef { return EntityRef{kind: RefBranch, branch: branch} }

func (r EntityRef) Kind() RefKind { return r.kind }
func (r EntityRef) Branch() string { return r.branch }
func (r EntityRef) Key() string     { return r.key }
func (r EntityRef) Stream() string  { return r.stream }
func (r EntityRef) Collection() string { return r.stream }
func (r EntityRef) Sequence() uint64   { return r.sequence }

// String renders the mandatory type-prefixed textual form, e.g.
// "kv:default/my-key" or "event:default/orders#42".
func (r EntityRef) String() string {
	switch r.kind {
	case RefKv, RefJSON, RefState:
		return fmt.Sprintf("%s:%s/%s", r.kind.prefix(), r.branch, r.key)
	case RefEvent:
		return fmt.Sprintf("%s:%s/%s#%d", r.kind.prefix(), r.branch, r.stream, r.sequence)
	case RefVector:
		return fmt.Sprintf("%s:%s/%s/%s", r.kind.prefix(), r.branch, r.stream, r.key)
	case RefBranch:
		return fmt.Sprintf("%s:%s", r.kind.prefix(), r.branch)
	default:
		return "invalid:ref"
	}
}
