package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
)

// EntryType discriminates the seven WAL record shapes.
type EntryType byte

const (
	EntryBegin EntryType = iota + 1
	EntryPut
	EntryDelete
	EntryCommit
	EntryAbort
	EntryBranchMeta
	EntryCheckpoint
)

func (t EntryType) String() string {
	switch t {
	case EntryBegin:
		return "Begin"
	case EntryPut:
		return "Put"
	case EntryDelete:
		return "Delete"
	case EntryCommit:
		return "Commit"
	case EntryAbort:
		return "Abort"
	case EntryBranchMeta:
		return "BranchMeta"
	case EntryCheckpoint:
		return "Checkpoint"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// Entry is one decoded WAL record, reused across every entry type via its
// typed payload fields; only the fields relevant to Type are populated.
type Entry struct {
	Type EntryType

	TxnID           uint64
	SnapshotVersion value.Version // Begin
	CommitVersion   value.Version // Commit

	Branch  string // Put, Delete, BranchMeta
	Tag     storage.TypeTag
	Key     string
	Payload []byte // Put: canonical-encoded value bytes. BranchMeta: operation payload.
	Version value.Version // Put, Delete

	BranchOp byte // BranchMeta operation-kind

	SnapshotOffset  uint64 // Checkpoint
}

// Frame writes `{ length-prefix, entry-type, payload-bytes, crc32 }` for e
// to buf, matching the on-disk contract exactly.
func Frame(e Entry) []byte {
	body := encodeBody(e)

	var out bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	out.Write(lenBuf[:])
	out.WriteByte(byte(e.Type))
	out.Write(body)

	crc := crc32.ChecksumIEEE(append([]byte{byte(e.Type)}, body...))
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out.Write(crcBuf[:])

	return out.Bytes()
}

// ErrCRCMismatch signals a corrupt entry; recovery stops replay on sight of
// this error rather than skipping the entry.
var ErrCRCMismatch = fmt.Errorf("wal: CRC mismatch")

// ErrUnknownEntryType signals a forward-incompatible or corrupt entry type.
var ErrUnknownEntryType = fmt.Errorf("wal: unknown entry type")

// ReadEntry reads one framed entry from r. io.EOF (wrapped) signals a clean
// end of segment.
func ReadEntry(r *bytes.Reader) (Entry, int, error) {
	start := r.Len()

	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return Entry{}, 0, err
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])

	typeByte, err := r.ReadByte()
	if err != nil {
		return Entry{}, 0, fmt.Errorf("wal: read entry type: %w", err)
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := readFull(r, body); err != nil {
			return Entry{}, 0, fmt.Errorf("wal: read entry body: %w", err)
		}
	}

	var crcBuf [4]byte
	if _, err := readFull(r, crcBuf[:]); err != nil {
		return Entry{}, 0, fmt.Errorf("wal: read entry crc: %w", err)
	}
	wantCRC := binary.BigEndian.Uint32(crcBuf[:])
	gotCRC := crc32.ChecksumIEEE(append([]byte{typeByte}, body...))
	if gotCRC != wantCRC {
		return Entry{}, 0, ErrCRCMismatch
	}

	et := EntryType(typeByte)
	e, err := decodeBody(et, body)
	if err != nil {
		return Entry{}, 0, err
	}
	consumed := start - r.Len()
	return e, consumed, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func encodeBody(e Entry) []byte {
	var buf bytes.Buffer
	switch e.Type {
	case EntryBegin:
		putUint64(&buf, e.TxnID)
		putUint64(&buf, e.SnapshotVersion.Uint64())
	case EntryPut:
		putString(&buf, e.Branch)
		buf.WriteByte(byte(e.Tag))
		putString(&buf, e.Key)
		putBytes(&buf, e.Payload)
		buf.WriteByte(byte(e.Version.Kind()))
		putUint64(&buf, e.Version.Uint64())
	case EntryDelete:
		putString(&buf, e.Branch)
		buf.WriteByte(byte(e.Tag))
		putString(&buf, e.Key)
		buf.WriteByte(byte(e.Version.Kind()))
		putUint64(&buf, e.Version.Uint64())
	case EntryCommit:
		putUint64(&buf, e.TxnID)
		putUint64(&buf, e.CommitVersion.Uint64())
	case EntryAbort:
		putUint64(&buf, e.TxnID)
	case EntryBranchMeta:
		putString(&buf, e.Branch)
		buf.WriteByte(e.BranchOp)
		putBytes(&buf, e.Payload)
	case EntryCheckpoint:
		putUint64(&buf, e.SnapshotOffset)
		buf.WriteByte(byte(e.SnapshotVersion.Kind()))
		putUint64(&buf, e.SnapshotVersion.Uint64())
	}
	return buf.Bytes()
}

func decodeBody(t EntryType, body []byte) (Entry, error) {
	r := bytes.NewReader(body)
	e := Entry{Type: t}
	var err error
	switch t {
	case EntryBegin:
		if e.TxnID, err = getUint64(r); err != nil {
			return e, err
		}
		n, err := getUint64(r)
		if err != nil {
			return e, err
		}
		e.SnapshotVersion = value.Txn(n)
	case EntryPut:
		if e.Branch, err = getString(r); err != nil {
			return e, err
		}
		tag, err := r.ReadByte()
		if err != nil {
			return e, fmt.Errorf("wal: read tag: %w", err)
		}
		e.Tag = storage.TypeTag(tag)
		if e.Key, err = getString(r); err != nil {
			return e, err
		}
		if e.Payload, err = getBytes(r); err != nil {
			return e, err
		}
		e.Version, err = getVersion(r)
		if err != nil {
			return e, err
		}
	case EntryDelete:
		if e.Branch, err = getString(r); err != nil {
			return e, err
		}
		tag, err := r.ReadByte()
		if err != nil {
			return e, fmt.Errorf("wal: read tag: %w", err)
		}
		e.Tag = storage.TypeTag(tag)
		if e.Key, err = getString(r); err != nil {
			return e, err
		}
		e.Version, err = getVersion(r)
		if err != nil {
			return e, err
		}
	case EntryCommit:
		if e.TxnID, err = getUint64(r); err != nil {
			return e, err
		}
		n, err := getUint64(r)
		if err != nil {
			return e, err
		}
		e.CommitVersion = value.Txn(n)
	case EntryAbort:
		if e.TxnID, err = getUint64(r); err != nil {
			return e, err
		}
	case EntryBranchMeta:
		if e.Branch, err = getString(r); err != nil {
			return e, err
		}
		e.BranchOp, err = r.ReadByte()
		if err != nil {
			return e, fmt.Errorf("wal: read branch op: %w", err)
		}
		if e.Payload, err = getBytes(r); err != nil {
			return e, err
		}
	case EntryCheckpoint:
		if e.SnapshotOffset, err = getUint64(r); err != nil {
			return e, err
		}
		e.SnapshotVersion, err = getVersion(r)
		if err != nil {
			return e, err
		}
	default:
		return e, ErrUnknownEntryType
	}
	return e, nil
}

func getVersion(r *bytes.Reader) (value.Version, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return value.Version{}, fmt.Errorf("wal: read version kind: %w", err)
	}
	n, err := getUint64(r)
	if err != nil {
		return value.Version{}, err
	}
	switch value.VersionKind(kind) {
	case value.VersionSequence:
		return value.Sequence(n), nil
	case value.VersionCounter:
		return value.Counter(n), nil
	default:
		return value.Txn(n), nil
	}
}

func putUint64(buf *bytes.Buffer, n uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	buf.Write(tmp[:])
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("wal: read uint64: %w", err)
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func getString(r *bytes.Reader) (string, error) {
	b, err := getBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wal: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if n > 0 {
		if _, err := readFull(r, b); err != nil {
			return nil, fmt.Errorf("wal: read bytes: %w", err)
		}
	}
	return b, nil
}
