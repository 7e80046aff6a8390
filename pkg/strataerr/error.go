package strataerr

import (
	"fmt"

	"github.com/strata-db/strata/pkg/value"
)

// Kind is the closed taxonomy of error kinds the engine can return.
type Kind uint8

const (
	KindNotFound Kind = iota
	KindWrongType
	KindVersionConflict
	KindConflict
	KindTransactionNotActive
	KindBranchNotFound
	KindDimensionMismatch
	KindConstraintViolation
	KindInvalidInput
	KindInvalidPath
	KindHistoryTrimmed
	KindIO
	KindSerialization
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindWrongType:
		return "WrongType"
	case KindVersionConflict:
		return "VersionConflict"
	case KindConflict:
		return "Conflict"
	case KindTransactionNotActive:
		return "TransactionNotActive"
	case KindBranchNotFound:
		return "BranchNotFound"
	case KindDimensionMismatch:
		return "DimensionMismatch"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidPath:
		return "InvalidPath"
	case KindHistoryTrimmed:
		return "HistoryTrimmed"
	case KindIO:
		return "Io"
	case KindSerialization:
		return "Serialization"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// NotFoundSub discriminates what kind of thing was not found.
type NotFoundSub uint8

const (
	NotFoundKey NotFoundSub = iota
	NotFoundBranch
	NotFoundCollection
	NotFoundStream
	NotFoundCell
)

// Error is Strata's single error envelope type. Conflict/version-mismatch
// detail fields are populated only for the Kinds that carry them; they are
// zero-valued otherwise.
type Error struct {
	Kind    Kind
	Message string

	Ref         *value.EntityRef // populated for NotFound / Conflict / CASConflict
	NotFoundSub NotFoundSub

	ExpectedVersion  value.Version
	ActualVersion    value.Version
	HaveExpected     bool // whether ExpectedVersion/ActualVersion are meaningful
	ConflictIsCAS    bool // Conflict carries this to distinguish CAS vs read-write
}

func (e *Error) Error() string {
	if e.Ref != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Ref.String())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs a bare Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf constructs a bare Error with formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound constructs a NotFound error carrying the typed ref and sub-kind.
func NotFound(sub NotFoundSub, ref value.EntityRef) *Error {
	return &Error{
		Kind:        KindNotFound,
		Message:     "not found",
		Ref:         &ref,
		NotFoundSub: sub,
	}
}

// VersionConflict constructs a VersionConflict error distinguishing the
// expected and actual Version variants (e.g. Counter(5) vs Txn(5)).
func VersionConflict(expected, actual value.Version) *Error {
	return &Error{
		Kind:            KindVersionConflict,
		Message:         fmt.Sprintf("expected version %s(%d), got %s(%d)", expected.TypeName(), expected.Uint64(), actual.TypeName(), actual.Uint64()),
		ExpectedVersion: expected,
		ActualVersion:   actual,
		HaveExpected:    true,
	}
}

// ReadWriteConflict constructs a validator Conflict for a stale read-set entry.
func ReadWriteConflict(ref value.EntityRef) *Error {
	return &Error{Kind: KindConflict, Message: "read-write conflict", Ref: &ref}
}

// CASConflict constructs a validator Conflict for a stale cas-set entry.
func CASConflict(ref value.EntityRef) *Error {
	return &Error{Kind: KindConflict, Message: "cas conflict", Ref: &ref, ConflictIsCAS: true}
}

// BranchNotFound constructs the error for a write to a non-existent,
// non-default branch.
func BranchNotFound(branch string) *Error {
	ref := value.BranchRef(branch)
	return &Error{Kind: KindBranchNotFound, Message: "branch not found", Ref: &ref}
}

// TransactionNotActive constructs the error for a txn-only command issued
// with no active transaction.
func TransactionNotActive() *Error {
	return New(KindTransactionNotActive, "no active transaction")
}

// Io wraps a storage-layer failure, discarding its source chain and keeping
// only the message.
func Io(err error) *Error {
	return New(KindIO, err.Error())
}

// Is reports whether err is a *Error of the given kind, for use with
// errors.Is-style call sites that only care about the kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
