package branch

import (
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/graph"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// Default is the reserved alias for the implicit initial branch, which
// always exists and is never materialized as an entry in the index.
const Default = "default"

// metaShard is a sentinel branch name used only to hold branch-index
// entries themselves. Real branch ids are restricted to alphanumerics and
// dashes (see validateID), so the leading NUL can never collide with one.
const metaShard = "\x00branches"

// State is a branch's lifecycle state.
type State string

const (
	Active State = "active"
	Closed State = "closed"
)

// Meta describes one branch's identity and configuration.
type Meta struct {
	ID             string
	DisplayName    string
	State          State
	Metadata       *value.Object
	CascadeDefault graph.CascadePolicy
	CreatedAt      int64
}

// Primitive implements the Branch Index command family. Like graph, it
// has no analogue to a single-key CAS, so every mutating call is its own
// implicit transaction (or, for fork/merge, a short sequence of them).
type Primitive struct {
	ctrl *txn.Controller
}

// New returns a Branch primitive bound to ctrl.
func New(ctrl *txn.Controller) *Primitive {
	return &Primitive{ctrl: ctrl}
}

func validateID(id string) error {
	if id == "" {
		return strataerr.New(strataerr.KindInvalidInput, "branch id must not be empty")
	}
	if !utf8.ValidString(id) {
		return strataerr.New(strataerr.KindInvalidInput, "branch id must be valid UTF-8")
	}
	for _, r := range id {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum && r != '-' {
			return strataerr.New(strataerr.KindInvalidInput, "branch id must be alphanumeric-plus-dash: "+id)
		}
	}
	return nil
}

func metaKey(id string) storage.Key {
	return storage.Key{Branch: metaShard, Tag: storage.TagBranchMeta, UserKey: id}
}

func internalRef(id, label string) value.EntityRef {
	return value.KvRef(metaShard, storage.ReservedPrefix+label)
}

func defaultMeta() Meta {
	return Meta{ID: Default, DisplayName: Default, State: Active, Metadata: value.NewObject(), CascadeDefault: graph.PolicyIgnore}
}

func encodeMeta(m Meta) value.Value {
	o := value.NewObject()
	o.Set("display_name", value.String(m.DisplayName))
	o.Set("state", value.String(string(m.State)))
	o.Set("cascade_default", value.String(string(m.CascadeDefault)))
	o.Set("created_at", value.Int(m.CreatedAt))
	metadata := m.Metadata
	if metadata == nil {
		metadata = value.NewObject()
	}
	o.Set("metadata", value.ObjectValue(metadata))
	return value.ObjectValue(o)
}

func decodeMeta(id string, v value.Value) (Meta, bool) {
	o, ok := v.AsObject()
	if !ok {
		return Meta{}, false
	}
	m := Meta{ID: id, State: Active, CascadeDefault: graph.PolicyIgnore, Metadata: value.NewObject()}
	if d, ok := o.Get("display_name"); ok {
		if s, ok := d.AsString(); ok {
			m.DisplayName = s
		}
	}
	if s, ok := o.Get("state"); ok {
		if str, ok := s.AsString(); ok {
			m.State = State(str)
		}
	}
	if c, ok := o.Get("cascade_default"); ok {
		if str, ok := c.AsString(); ok {
			m.CascadeDefault = graph.CascadePolicy(str)
		}
	}
	if c, ok := o.Get("created_at"); ok {
		if n, ok := c.AsInt(); ok {
			m.CreatedAt = n
		}
	}
	if md, ok := o.Get("metadata"); ok {
		if mo, ok := md.AsObject(); ok {
			m.Metadata = mo
		}
	}
	return m, true
}

// Create registers a new branch. The reserved id "default" cannot be
// created — it is implicit and always exists.
func (p *Primitive) Create(id, displayName string, metadata *value.Object, cascadeDefault graph.CascadePolicy, createdAt int64) (value.Version, error) {
	if err := validateID(id); err != nil {
		return value.Version{}, err
	}
	if id == Default {
		return value.Version{}, strataerr.New(strataerr.KindConstraintViolation, "the default branch is implicit and cannot be created")
	}
	if cascadeDefault == "" {
		cascadeDefault = graph.PolicyIgnore
	}
	k := metaKey(id)
	if _, exists := p.ctrl.DirectRead(k); exists {
		return value.Version{}, strataerr.New(strataerr.KindConstraintViolation, "branch already exists: "+id)
	}
	if displayName == "" {
		displayName = id
	}
	meta := Meta{ID: id, DisplayName: displayName, State: Active, Metadata: metadata, CascadeDefault: cascadeDefault, CreatedAt: createdAt}
	ref := internalRef(id, "branch-meta:"+id)
	return p.ctrl.DirectWrite(metaShard, []storage.Write{{Key: k, Value: encodeMeta(meta)}}, []value.EntityRef{ref})
}

// Exists reports whether id names a known branch (default always does).
func (p *Primitive) Exists(id string) bool {
	if id == Default {
		return true
	}
	_, ok := p.ctrl.DirectRead(metaKey(id))
	return ok
}

// Get returns one branch's metadata.
func (p *Primitive) Get(id string) (Meta, bool, error) {
	if id == Default {
		return defaultMeta(), true, nil
	}
	v, ok := p.ctrl.DirectRead(metaKey(id))
	if !ok {
		return Meta{}, false, nil
	}
	m, ok := decodeMeta(id, v.Value)
	if !ok {
		return Meta{}, false, strataerr.New(strataerr.KindSerialization, "corrupt branch metadata: "+id)
	}
	return m, true, nil
}

// List returns every known branch (default included), optionally filtered
// by state.
func (p *Primitive) List(stateFilter *State) ([]Meta, error) {
	out := []Meta{defaultMeta()}
	entries := p.ctrl.Store().ScanPrefix(metaShard, storage.TagBranchMeta, "")
	for _, e := range entries {
		m, ok := decodeMeta(e.Key.UserKey, e.Entry.Value)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	if stateFilter == nil {
		return out, nil
	}
	filtered := out[:0]
	for _, m := range out {
		if m.State == *stateFilter {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// UpdateMetadata replaces a branch's display name, metadata object, and
// cascade default in place. The default branch cannot be updated.
func (p *Primitive) UpdateMetadata(id, displayName string, metadata *value.Object, cascadeDefault graph.CascadePolicy) (value.Version, error) {
	if id == Default {
		return value.Version{}, strataerr.New(strataerr.KindConstraintViolation, "the default branch has no metadata to update")
	}
	existing, ok, err := p.Get(id)
	if err != nil {
		return value.Version{}, err
	}
	if !ok {
		return value.Version{}, strataerr.BranchNotFound(id)
	}
	if displayName != "" {
		existing.DisplayName = displayName
	}
	if metadata != nil {
		existing.Metadata = metadata
	}
	if cascadeDefault != "" {
		existing.CascadeDefault = cascadeDefault
	}
	ref := internalRef(id, "branch-meta:"+id)
	return p.ctrl.DirectWrite(metaShard, []storage.Write{{Key: metaKey(id), Value: encodeMeta(existing)}}, []value.EntityRef{ref})
}

// Delete removes a branch's index entry. It never removes the default
// branch, and it does not touch the branch's storage shard — delete is
// scoped to the index; a deleted branch's data entries simply become
// unreachable through branch-aware command dispatch.
func (p *Primitive) Delete(id string) (bool, error) {
	if id == Default {
		return false, strataerr.New(strataerr.KindConstraintViolation, "the default branch cannot be deleted")
	}
	k := metaKey(id)
	if _, exists := p.ctrl.DirectRead(k); !exists {
		return false, nil
	}
	ref := internalRef(id, "branch-meta:"+id)
	if _, err := p.ctrl.DirectWrite(metaShard, []storage.Write{{Key: k, Deleted: true}}, []value.EntityRef{ref}); err != nil {
		return false, err
	}
	return true, nil
}

// dataTags enumerates every primitive namespace fork/diff/merge walk.
// TagBranchMeta is deliberately excluded: branch metadata is global index
// state, not per-branch data.
var dataTags = []storage.TypeTag{
	storage.TagKV, storage.TagJSON, storage.TagState, storage.TagEvent,
	storage.TagGraphMeta, storage.TagGraphNode, storage.TagGraphEdgeFwd, storage.TagGraphEdgeRev, storage.TagGraphRef,
}

type scanKey struct {
	tag storage.TypeTag
	key string
}

func scanBranch(st *storage.Store, b string) map[scanKey]value.Versioned {
	out := make(map[scanKey]value.Versioned)
	for _, tag := range dataTags {
		for _, e := range st.ScanPrefix(b, tag, "") {
			out[scanKey{tag, e.Key.UserKey}] = e.Entry
		}
	}
	return out
}

// ForkMode selects how much history fork copies for each key.
type ForkMode int

const (
	// ForkLatestOnly copies only each key's current value, all stamped
	// with one freshly allocated commit version — re-allocated commit
	// versions bound to a single meta-commit.
	ForkLatestOnly ForkMode = iota
	// ForkFullHistory copies every version in each key's chain, preserving
	// original versions and timestamps. This is a documented sharp edge:
	// because the copied entries keep their source-branch versions, they
	// are not actually bound to fork's own meta-commit, and the copy does
	// not go through the WAL (branch operations already sit outside the
	// normal per-transaction envelope).
	ForkFullHistory
)

// Fork copies every storage entry from source into destination. destination
// must already be a registered branch (create it first unless it is
// "default"). Returns the new commit version for ForkLatestOnly, or the
// zero version for ForkFullHistory (no single version applies).
func (p *Primitive) Fork(source, destination string, mode ForkMode) (value.Version, error) {
	if !p.Exists(source) {
		return value.Version{}, strataerr.BranchNotFound(source)
	}
	if !p.Exists(destination) {
		return value.Version{}, strataerr.BranchNotFound(destination)
	}

	st := p.ctrl.Store()
	if mode == ForkFullHistory {
		for _, tag := range dataTags {
			for _, e := range st.ScanPrefix(source, tag, "") {
				for _, v := range st.History(storage.Key{Branch: source, Tag: tag, UserKey: e.Key.UserKey}) {
					dst := storage.Key{Branch: destination, Tag: tag, UserKey: e.Key.UserKey}
					if v.Deleted {
						st.Delete(dst, v.Version, v.Timestamp)
					} else {
						st.Put(dst, v.Value, v.Version, v.Timestamp)
					}
				}
			}
		}
		return value.Version{}, nil
	}

	entries := scanBranch(st, source)
	writes := make([]storage.Write, 0, len(entries))
	refs := make([]value.EntityRef, 0, len(entries))
	for sk, v := range entries {
		writes = append(writes, storage.Write{Key: storage.Key{Branch: destination, Tag: sk.tag, UserKey: sk.key}, Value: v.Value})
		refs = append(refs, internalRef(destination, "fork:"+destination))
	}
	if len(writes) == 0 {
		return value.Zero, nil
	}
	return p.ctrl.DirectWrite(destination, writes, refs)
}

// DiffEntry names one key whose presence or value differs between two
// branches.
type DiffEntry struct {
	Tag storage.TypeTag
	Key string
}

// Diff is the result of comparing two branches' live entries.
type Diff struct {
	OnlyInA   []DiffEntry
	OnlyInB   []DiffEntry
	Differing []DiffEntry
}

// Diff compares branches a and b and reports which keys exist only in one
// side, and which exist in both with different values.
func (p *Primitive) Diff(a, b string) (Diff, error) {
	st := p.ctrl.Store()
	entriesA := scanBranch(st, a)
	entriesB := scanBranch(st, b)

	var d Diff
	for sk, va := range entriesA {
		vb, ok := entriesB[sk]
		if !ok {
			d.OnlyInA = append(d.OnlyInA, DiffEntry{sk.tag, sk.key})
			continue
		}
		if !value.Equal(va.Value, vb.Value) {
			d.Differing = append(d.Differing, DiffEntry{sk.tag, sk.key})
		}
	}
	for sk := range entriesB {
		if _, ok := entriesA[sk]; !ok {
			d.OnlyInB = append(d.OnlyInB, DiffEntry{sk.tag, sk.key})
		}
	}
	return d, nil
}

// MergeStrategy resolves which side wins for a key differing between
// source and target.
type MergeStrategy string

const (
	LastWriterWins MergeStrategy = "last_writer_wins"
	SourceWins     MergeStrategy = "source_wins"
	TargetWins     MergeStrategy = "target_wins"
)

// Merge reconciles differences from source into target using strategy,
// writing the chosen value under target for every differing key. Keys
// present only in source are always copied into target —
// there is no target value for a strategy to weigh against. Keys present
// only in target are left untouched.
func (p *Primitive) Merge(source, target string, strategy MergeStrategy) (int, error) {
	if !p.Exists(source) {
		return 0, strataerr.BranchNotFound(source)
	}
	if !p.Exists(target) {
		return 0, strataerr.BranchNotFound(target)
	}

	st := p.ctrl.Store()
	entriesSource := scanBranch(st, source)
	entriesTarget := scanBranch(st, target)

	var writes []storage.Write
	var refs []value.EntityRef
	for sk, vs := range entriesSource {
		vt, inTarget := entriesTarget[sk]
		if !inTarget {
			writes = append(writes, storage.Write{Key: storage.Key{Branch: target, Tag: sk.tag, UserKey: sk.key}, Value: vs.Value})
			refs = append(refs, internalRef(target, "merge:"+target))
			continue
		}
		if value.Equal(vs.Value, vt.Value) {
			continue
		}
		var winner value.Value
		switch strategy {
		case SourceWins:
			winner = vs.Value
		case TargetWins:
			continue
		case LastWriterWins:
			if vs.Timestamp >= vt.Timestamp {
				winner = vs.Value
			} else {
				continue
			}
		default:
			return 0, strataerr.New(strataerr.KindInvalidInput, "unknown merge strategy: "+string(strategy))
		}
		writes = append(writes, storage.Write{Key: storage.Key{Branch: target, Tag: sk.tag, UserKey: sk.key}, Value: winner})
		refs = append(refs, internalRef(target, "merge:"+target))
	}

	if len(writes) == 0 {
		return 0, nil
	}
	if _, err := p.ctrl.DirectWrite(target, writes, refs); err != nil {
		return 0, err
	}
	return len(writes), nil
}
