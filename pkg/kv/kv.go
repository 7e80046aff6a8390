package kv

import (
	"strings"
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// Primitive implements the KV command family against a shared controller.
// Every method takes an optional *txn.Transaction: nil means "dispatch
// directly," matching the session's outside-a-transaction path; non-nil
// means the operation buffers into that transaction instead of publishing
// immediately.
//
// Writes issued inside an active transaction return value.Zero rather than
// the eventual commit version, because that version is not allocated until
// COMMIT succeeds — callers that need the real version re-read after
// commit. This is a deliberate reading of the put(...) -> version
// contract, recorded as an Open Question decision in the design ledger.
type Primitive struct {
	ctrl *txn.Controller
}

// New returns a KV primitive bound to ctrl.
func New(ctrl *txn.Controller) *Primitive {
	return &Primitive{ctrl: ctrl}
}

// ListEntry is one (key, value) pair from List, current values only.
type ListEntry struct {
	Key   string
	Value value.Value
}

func validateKey(key string) error {
	if key == "" {
		return strataerr.New(strataerr.KindInvalidInput, "key must not be empty")
	}
	if !utf8.ValidString(key) {
		return strataerr.New(strataerr.KindInvalidInput, "key must be valid UTF-8")
	}
	if strings.ContainsRune(key, 0) {
		return strataerr.New(strataerr.KindInvalidInput, "key must not contain an embedded NUL")
	}
	if strings.HasPrefix(key, storage.ReservedPrefix) {
		return strataerr.New(strataerr.KindInvalidInput, "key uses a reserved internal prefix")
	}
	return nil
}

func kvKey(branch, key string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagKV, UserKey: key}
}

// Put writes value unconditionally and returns the new version (or
// value.Zero if buffered inside an active transaction).
func (p *Primitive) Put(t *txn.Transaction, branch, key string, val value.Value) (value.Version, error) {
	if err := validateKey(key); err != nil {
		return value.Version{}, err
	}
	k := kvKey(branch, key)
	ref := value.KvRef(branch, key)

	if t != nil {
		p.ctrl.Write(t, k, val, ref)
		return value.Zero, nil
	}

	ver, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Value: val}}, []value.EntityRef{ref})
	if err != nil {
		return value.Version{}, err
	}
	return ver, nil
}

// Get returns the current value, stripped of version metadata.
func (p *Primitive) Get(t *txn.Transaction, branch, key string) (value.Value, bool, error) {
	if err := validateKey(key); err != nil {
		return value.Value{}, false, err
	}
	k := kvKey(branch, key)

	if t != nil {
		v, ok := p.ctrl.Read(t, k)
		return v, ok, nil
	}
	v, ok := p.ctrl.DirectRead(k)
	return v.Value, ok, nil
}

// GetVersioned returns the current value with its version attached.
func (p *Primitive) GetVersioned(t *txn.Transaction, branch, key string) (value.Versioned, bool, error) {
	if err := validateKey(key); err != nil {
		return value.Versioned{}, false, err
	}
	k := kvKey(branch, key)

	if t != nil {
		v, ok := p.ctrl.ReadVersioned(t, k)
		return v, ok, nil
	}
	v, ok := p.ctrl.DirectRead(k)
	return v, ok, nil
}

// Delete tombstones key, returning whether it previously existed.
func (p *Primitive) Delete(t *txn.Transaction, branch, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	k := kvKey(branch, key)
	ref := value.KvRef(branch, key)

	existed := false
	if t != nil {
		_, existed = p.ctrl.Read(t, k)
		p.ctrl.WriteDelete(t, k, ref)
		return existed, nil
	}

	_, existed = p.ctrl.DirectRead(k)
	if !existed {
		return false, nil
	}
	_, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Deleted: true}}, []value.EntityRef{ref})
	if err != nil {
		return false, err
	}
	return true, nil
}

// History returns the full version chain for key, ascending, including
// tombstones. It reads directly from storage regardless of an active
// transaction — history is an observability operation, not subject to
// conflict detection.
func (p *Primitive) History(branch, key string) ([]value.Versioned, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return p.ctrl.Store().History(kvKey(branch, key)), nil
}

// List returns every current (non-tombstoned) key/value under prefix.
func (p *Primitive) List(branch, prefix string) ([]ListEntry, error) {
	entries := p.ctrl.Store().ScanPrefix(branch, storage.TagKV, prefix)
	out := make([]ListEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ListEntry{Key: e.Key.UserKey, Value: e.Entry.Value})
	}
	return out, nil
}

// Cas writes newVal only if key's current version equals expected. Use
// value.Zero as expected to require the key be absent.
func (p *Primitive) Cas(t *txn.Transaction, branch, key string, expected value.Version, newVal value.Value) (value.Version, error) {
	if err := validateKey(key); err != nil {
		return value.Version{}, err
	}
	k := kvKey(branch, key)
	ref := value.KvRef(branch, key)

	if t != nil {
		p.ctrl.ReadForCAS(t, k, expected)
		p.ctrl.Write(t, k, newVal, ref)
		return value.Zero, nil
	}

	implicit := p.ctrl.Begin(branch)
	p.ctrl.ReadForCAS(implicit, k, expected)
	p.ctrl.Write(implicit, k, newVal, ref)
	if err := p.ctrl.Commit(implicit); err != nil {
		return value.Version{}, err
	}
	v, _ := p.ctrl.DirectRead(k)
	return v.Version, nil
}
