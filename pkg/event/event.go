package event

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
)

const (
	seqKeyPrefix   = "seq\x00"
	entryKeyPrefix = "evt\x00"
)

// Primitive implements the Event command family. Like kv.Primitive, a nil
// *txn.Transaction means "dispatch directly."
type Primitive struct {
	ctrl *txn.Controller
}

// New returns an Event primitive bound to ctrl.
func New(ctrl *txn.Controller) *Primitive {
	return &Primitive{ctrl: ctrl}
}

func validateStream(stream string) error {
	if stream == "" {
		return strataerr.New(strataerr.KindInvalidInput, "stream must not be empty")
	}
	if !utf8.ValidString(stream) {
		return strataerr.New(strataerr.KindInvalidInput, "stream must be valid UTF-8")
	}
	if strings.ContainsRune(stream, 0) {
		return strataerr.New(strataerr.KindInvalidInput, "stream must not contain an embedded NUL")
	}
	if strings.HasPrefix(stream, storage.ReservedPrefix) {
		return strataerr.New(strataerr.KindInvalidInput, "stream uses a reserved internal prefix")
	}
	return nil
}

func counterKey(branch, stream string) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagEvent, UserKey: seqKeyPrefix + stream}
}

func entryPrefix(stream string) string {
	return entryKeyPrefix + stream + "\x00"
}

func entryKey(branch, stream string, seq uint64) storage.Key {
	return storage.Key{Branch: branch, Tag: storage.TagEvent, UserKey: entryPrefix(stream) + padSeq(seq)}
}

func padSeq(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

func parseSeqSuffix(stream, userKey string) (uint64, bool) {
	prefix := entryPrefix(stream)
	if !strings.HasPrefix(userKey, prefix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(userKey[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func counterValue(v value.Value) uint64 {
	n, ok := v.AsInt()
	if !ok || n < 0 {
		return 0
	}
	return uint64(n)
}

// Append adds payload (which must be a Value::Object) to the end of
// stream, returning its allocated Version::Sequence. Buffered inside an
// active transaction it returns value.Zero, mirroring every other
// primitive's deferred-version convention.
func (p *Primitive) Append(t *txn.Transaction, branch, stream string, payload value.Value) (value.Version, error) {
	if err := validateStream(stream); err != nil {
		return value.Version{}, err
	}
	if _, isObj := payload.AsObject(); !isObj {
		return value.Version{}, strataerr.New(strataerr.KindInvalidInput, "event payload must be a Value::Object")
	}
	ck := counterKey(branch, stream)

	if t != nil {
		cur, _ := p.ctrl.Read(t, ck)
		next := counterValue(cur) + 1
		ref := value.EventRef(branch, stream, next)
		p.ctrl.Write(t, ck, value.Int(int64(next)), ref)
		p.ctrl.Write(t, entryKey(branch, stream, next), payload, ref)
		return value.Zero, nil
	}

	for {
		implicit := p.ctrl.Begin(branch)
		curV, exists := p.ctrl.ReadVersioned(implicit, ck)
		observed := value.Zero
		n := uint64(0)
		if exists {
			n = counterValue(curV.Value)
			observed = curV.Version
		}
		next := n + 1
		ref := value.EventRef(branch, stream, next)
		p.ctrl.ReadForCAS(implicit, ck, observed)
		p.ctrl.Write(implicit, ck, value.Int(int64(next)), ref)
		p.ctrl.Write(implicit, entryKey(branch, stream, next), payload, ref)

		err := p.ctrl.Commit(implicit)
		if err == nil {
			return value.Sequence(next), nil
		}
		if strataerr.Is(err, strataerr.KindConflict) {
			continue
		}
		return value.Version{}, err
	}
}

// Get returns one event by sequence number. Events are immutable once
// appended, so this reads directly from storage regardless of an active
// transaction — there is no write to conflict with.
func (p *Primitive) Get(branch, stream string, seq uint64) (value.Versioned, bool, error) {
	if err := validateStream(stream); err != nil {
		return value.Versioned{}, false, err
	}
	v, ok := p.ctrl.Store().Get(entryKey(branch, stream, seq))
	if !ok {
		return value.Versioned{}, false, nil
	}
	v.Version = value.Sequence(seq)
	return v, true, nil
}

// Range returns events from stream in ascending sequence order, optionally
// bounded by start/end (inclusive, nil meaning unbounded) and capped at
// limit (nil meaning unbounded).
func (p *Primitive) Range(branch, stream string, start, end, limit *uint64) ([]value.Versioned, error) {
	if err := validateStream(stream); err != nil {
		return nil, err
	}
	entries := p.ctrl.Store().ScanPrefix(branch, storage.TagEvent, entryPrefix(stream))
	out := make([]value.Versioned, 0, len(entries))
	for _, e := range entries {
		seq, ok := parseSeqSuffix(stream, e.Key.UserKey)
		if !ok {
			continue
		}
		if start != nil && seq < *start {
			continue
		}
		if end != nil && seq > *end {
			continue
		}
		v := e.Entry
		v.Version = value.Sequence(seq)
		out = append(out, v)
		if limit != nil && uint64(len(out)) >= *limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of events appended to stream so far.
func (p *Primitive) Len(branch, stream string) (uint64, error) {
	if err := validateStream(stream); err != nil {
		return 0, err
	}
	v, ok := p.ctrl.Store().Get(counterKey(branch, stream))
	if !ok {
		return 0, nil
	}
	return counterValue(v.Value), nil
}

// LatestSequence returns the most recently allocated sequence number for
// stream, or ok = false if nothing has ever been appended.
func (p *Primitive) LatestSequence(branch, stream string) (uint64, bool, error) {
	n, err := p.Len(branch, stream)
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return n, true, nil
}
