package state

import (
	"strings"
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

// Primitive implements the State command family. Like kv.Primitive, a nil
// *txn.Transaction means "dispatch directly."
type Primitive struct {
	ctrl *txn.Controller
}

// New returns a State primitive bound to ctrl.
func New(ctrl *txn.Controller) *Primitive {
	return &Primitive{ctrl: ctrl}
}

func validateCell(cell string) error {
	if cell == "" {
		return strataerr.New(strataerr.KindInvalidInput, "cell must not be empty")
	}
	if !utf8.ValidString(cell) {
		return strataerr.New(strataerr.KindInvalidInput, "cell must be valid UTF-8")
	}
	if strings.ContainsRune(cell, 0) {
		return strataerr.New(strataerr.KindInvalidInput, "cell must not contain an embedded NUL")
	}
	if strings.HasPrefix(cell, storage.ReservedPrefix) {
		return strataerr.New(strataerr.KindInvalidInput, "cell uses a reserved internal prefix")
	}
	return nil
}

func stateKey(branch, cell string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagState, UserKey: cell}
}

// externalVersion re-tags an internal Version::Txn commit version as
// Version::Counter, the variant State exposes to callers. value.Zero
// (absent) passes through unchanged.
func externalVersion(v value.Version) value.Version {
	if v.Equal(value.Zero) {
		return value.Zero
	}
	return value.Counter(v.Uint64())
}

// internalVersion reverses externalVersion, for translating a caller-
// supplied expected-version back to the form the controller's conflict
// detector compares against.
func internalVersion(v value.Version) value.Version {
	if v.Equal(value.Zero) {
		return value.Zero
	}
	return value.Txn(v.Uint64())
}

func externalize(v value.Versioned) value.Versioned {
	v.Version = externalVersion(v.Version)
	return v
}

// Set writes value unconditionally and returns the new version (or
// value.Zero if buffered inside an active transaction).
func (p *Primitive) Set(t *txn.Transaction, branch, cell string, val value.Value) (value.Version, error) {
	if err := validateCell(cell); err != nil {
		return value.Version{}, err
	}
	k := stateKey(branch, cell)
	ref := value.StateRef(branch, cell)

	if t != nil {
		p.ctrl.Write(t, k, val, ref)
		return value.Zero, nil
	}

	ver, err := p.ctrl.DirectWrite(branch, []storage.Write{{Key: k, Value: val}}, []value.EntityRef{ref})
	if err != nil {
		return value.Version{}, err
	}
	return externalVersion(ver), nil
}

// Get returns the cell's current value, stripped of version metadata.
func (p *Primitive) Get(t *txn.Transaction, branch, cell string) (value.Value, bool, error) {
	if err := validateCell(cell); err != nil {
		return value.Value{}, false, err
	}
	k := stateKey(branch, cell)

	if t != nil {
		v, ok := p.ctrl.Read(t, k)
		return v, ok, nil
	}
	v, ok := p.ctrl.DirectRead(k)
	return v.Value, ok, nil
}

// Readv returns the cell's current value with its Version::Counter
// attached.
func (p *Primitive) Readv(t *txn.Transaction, branch, cell string) (value.Versioned, bool, error) {
	if err := validateCell(cell); err != nil {
		return value.Versioned{}, false, err
	}
	k := stateKey(branch, cell)

	if t != nil {
		v, ok := p.ctrl.ReadVersioned(t, k)
		if !ok {
			return value.Versioned{}, false, nil
		}
		return externalize(v), true, nil
	}
	v, ok := p.ctrl.DirectRead(k)
	if !ok {
		return value.Versioned{}, false, nil
	}
	return externalize(v), true, nil
}

// Init writes value only if cell is currently absent, returning the new
// version. It fails with a CAS conflict if the cell already exists.
func (p *Primitive) Init(t *txn.Transaction, branch, cell string, val value.Value) (value.Version, error) {
	return p.Cas(t, branch, cell, value.Zero, val)
}

// Cas writes newVal only if cell's current version equals expected. Use
// value.Zero as expected to require the cell be absent (the Init case).
func (p *Primitive) Cas(t *txn.Transaction, branch, cell string, expected value.Version, newVal value.Value) (value.Version, error) {
	if err := validateCell(cell); err != nil {
		return value.Version{}, err
	}
	k := stateKey(branch, cell)
	ref := value.StateRef(branch, cell)
	internalExpected := internalVersion(expected)

	if t != nil {
		p.ctrl.ReadForCAS(t, k, internalExpected)
		p.ctrl.Write(t, k, newVal, ref)
		return value.Zero, nil
	}

	implicit := p.ctrl.Begin(branch)
	p.ctrl.ReadForCAS(implicit, k, internalExpected)
	p.ctrl.Write(implicit, k, newVal, ref)
	if err := p.ctrl.Commit(implicit); err != nil {
		return value.Version{}, err
	}
	v, _ := p.ctrl.DirectRead(k)
	return externalVersion(v.Version), nil
}

// History returns the full version chain for cell, ascending, including
// tombstones, with each live entry's version re-tagged as Version::Counter.
func (p *Primitive) History(branch, cell string) ([]value.Versioned, error) {
	if err := validateCell(cell); err != nil {
		return nil, err
	}
	raw := p.ctrl.Store().History(stateKey(branch, cell))
	out := make([]value.Versioned, 0, len(raw))
	for _, v := range raw {
		out = append(out, externalize(v))
	}
	return out, nil
}
