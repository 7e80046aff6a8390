package jsondoc

import (
	"strings"
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/serialize"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// RootPath replaces the whole document.
const RootPath = "$"

// Primitive implements the JSON document command family. Like kv.Primitive,
// a nil *txn.Transaction means "dispatch directly."
type Primitive struct {
	ctrl *txn.Controller
}

// New returns a JSON primitive bound to ctrl.
func New(ctrl *txn.Controller) *Primitive {
	return &Primitive{ctrl: ctrl}
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

func docKey(branch, key string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagJSON, UserKey: key}
}

// readDoc returns the structured document currently stored at key,
// decoding it from its canonical Value::Bytes chain form, or an empty
// object if the key has never been written (the base path operations
// mutate onto).
func (p *Primitive) readDoc(t *txn.Transaction, branch, key string) (value.Value, bool, error) {
	k := docKey(branch, key)

	var raw value.Value
	var ok bool
	if t != nil {
		raw, ok = p.ctrl.Read(t, k)
	} else {
		v, exists := p.ctrl.DirectRead(k)
		raw, ok = v.Value, exists
	}
	if !ok {
		return value.Value{}, false, nil
	}
	b, isBytes := raw.AsBytes()
	if !isBytes {
		return value.Value{}, false, strataerr.New(strataerr.KindSerialization, "stored JSON document is not canonically encoded")
	}
	doc, err := serialize.Decode(b)
	if err != nil {
		return value.Value{}, false, strataerr.New(strataerr.KindSerialization, "failed to decode stored document: "+err.Error())
	}
	return doc, true, nil
}

// Set writes value at path within key's document. path == "$" replaces the
// whole document; dotted/indexed paths create intermediate objects/arrays
// as needed.
func (p *Primitive) Set(t *txn.Transaction, branch, key, path string, newVal value.Value) (value.Version, error) {
	if err := validateKey(key); err != nil {
		return value.Version{}, err
	}

	var doc value.Value
	if path == RootPath {
		doc = newVal
	} else {
		existing, ok, err := p.readDoc(t, branch, key)
		if err != nil {
			return value.Version{}, err
		}
		if !ok {
			existing = value.NewEmptyObject()
		}
		mutated, err := value.Set(existing, path, newVal)
		if err != nil {
			return value.Version{}, strataerr.New(strataerr.KindInvalidPath, err.Error())
		}
		doc = mutated
	}

	encoded := value.Bytes(serialize.Encode(doc))
	k := docKey(branch, key)
	ref := value.JSONRef(branch, key)

	if t != nil {
		p.ctrl.Write(t, k, encoded, ref)
		return value.Zero, nil
	}
	ver, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Value: encoded}}, []value.EntityRef{ref})
	if err != nil {
		return value.Version{}, err
	}
	return ver, nil
}

// Get returns the structured value at path within key's document. path ==
// "$" returns the whole document.
func (p *Primitive) Get(t *txn.Transaction, branch, key, path string) (value.Value, bool, error) {
	if err := validateKey(key); err != nil {
		return value.Value{}, false, err
	}
	doc, ok, err := p.readDoc(t, branch, key)
	if err != nil || !ok {
		return value.Value{}, false, err
	}
	if path == RootPath {
		return doc, true, nil
	}
	v, found := value.Get(doc, path)
	return v, found, nil
}

// Delete removes path within key's document, or the whole document when
// path == "$". Returns whether anything was removed.
func (p *Primitive) Delete(t *txn.Transaction, branch, key, path string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	k := docKey(branch, key)
	ref := value.JSONRef(branch, key)

	if path == RootPath {
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
		return true, err
	}

	doc, ok, err := p.readDoc(t, branch, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	mutated, removed := value.Delete(doc, path)
	if !removed {
		return false, nil
	}
	encoded := value.Bytes(serialize.Encode(mutated))
	if t != nil {
		p.ctrl.Write(t, k, encoded, ref)
		return true, nil
	}
	_, err = p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Value: encoded}}, []value.EntityRef{ref})
	return true, err
}

// History returns the full version chain for key's document, ascending,
// with each entry decoded back to a structured Value.
func (p *Primitive) History(branch, key string) ([]value.Versioned, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	raw := p.ctrl.Store().History(docKey(branch, key))
	out := make([]value.Versioned, 0, len(raw))
	for _, v := range raw {
		if v.Deleted {
			out = append(out, v)
			continue
		}
		b, ok := v.Value.AsBytes()
		if !ok {
			return nil, strataerr.New(strataerr.KindSerialization, "stored JSON document is not canonically encoded")
		}
		doc, err := serialize.Decode(b)
		if err != nil {
			return nil, strataerr.New(strataerr.KindSerialization, "failed to decode stored document: "+err.Error())
		}
		out = append(out, value.Versioned{Value: doc, Version: v.Version, Timestamp: v.Timestamp})
	}
	return out, nil
}
