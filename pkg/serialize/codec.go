package serialize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/strata-db/strata/pkg/value"
)

// tag bytes, one per value.Kind, written before every node's payload.
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagArray
	tagObject
)

// Encode produces the canonical binary form of v.
func Encode(v value.Value) []byte {
	var buf bytes.Buffer
	encodeInto(&buf, v)
	return buf.Bytes()
}

func encodeInto(buf *bytes.Buffer, v value.Value) {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteByte(tagNull)
	case value.KindBool:
		b, _ := v.AsBool()
		buf.WriteByte(tagBool)
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.KindInt:
		i, _ := v.AsInt()
		buf.WriteByte(tagInt)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(i))
		buf.Write(tmp[:])
	case value.KindFloat:
		f, _ := v.AsFloat()
		buf.WriteByte(tagFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
		buf.Write(tmp[:])
	case value.KindString:
		s, _ := v.AsString()
		buf.WriteByte(tagString)
		writeLenPrefixed(buf, []byte(s))
	case value.KindBytes:
		b, _ := v.AsBytes()
		buf.WriteByte(tagBytes)
		writeLenPrefixed(buf, b)
	case value.KindArray:
		arr, _ := v.AsArray()
		buf.WriteByte(tagArray)
		writeUvarint(buf, uint64(len(arr)))
		for _, elem := range arr {
			encodeInto(buf, elem)
		}
	case value.KindObject:
		obj, _ := v.AsObject()
		buf.WriteByte(tagObject)
		keys := obj.Keys()
		writeUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			writeLenPrefixed(buf, []byte(k))
			val, _ := obj.Get(k)
			encodeInto(buf, val)
		}
	}
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:written])
}

// Decode parses the canonical binary form back into a value.Value.
func Decode(data []byte) (value.Value, error) {
	r := bytes.NewReader(data)
	v, err := decodeFrom(r)
	if err != nil {
		return value.Null(), err
	}
	if r.Len() != 0 {
		return value.Null(), fmt.Errorf("serialize: %d trailing bytes after decode", r.Len())
	}
	return v, nil
}

func decodeFrom(r *bytes.Reader) (value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.Null(), fmt.Errorf("serialize: read tag: %w", err)
	}
	switch tag {
	case tagNull:
		return value.Null(), nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Null(), fmt.Errorf("serialize: read bool: %w", err)
		}
		return value.Bool(b != 0), nil
	case tagInt:
		var tmp [8]byte
		if _, err := r.Read(tmp[:]); err != nil {
			return value.Null(), fmt.Errorf("serialize: read int: %w", err)
		}
		return value.Int(int64(binary.BigEndian.Uint64(tmp[:]))), nil
	case tagFloat:
		var tmp [8]byte
		if _, err := r.Read(tmp[:]); err != nil {
			return value.Null(), fmt.Errorf("serialize: read float: %w", err)
		}
		return value.Float(math.Float64frombits(binary.BigEndian.Uint64(tmp[:]))), nil
	case tagString:
		b, err := readLenPrefixed(r)
		if err != nil {
			return value.Null(), fmt.Errorf("serialize: read string: %w", err)
		}
		return value.String(string(b)), nil
	case tagBytes:
		b, err := readLenPrefixed(r)
		if err != nil {
			return value.Null(), fmt.Errorf("serialize: read bytes: %w", err)
		}
		return value.Bytes(b), nil
	case tagArray:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return value.Null(), fmt.Errorf("serialize: read array length: %w", err)
		}
		elems := make([]value.Value, 0, n)
		for i := uint64(0); i < n; i++ {
			elem, err := decodeFrom(r)
			if err != nil {
				return value.Null(), err
			}
			elems = append(elems, elem)
		}
		return value.Array(elems...), nil
	case tagObject:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return value.Null(), fmt.Errorf("serialize: read object length: %w", err)
		}
		obj := value.NewObject()
		for i := uint64(0); i < n; i++ {
			kb, err := readLenPrefixed(r)
			if err != nil {
				return value.Null(), fmt.Errorf("serialize: read object key: %w", err)
			}
			val, err := decodeFrom(r)
			if err != nil {
				return value.Null(), err
			}
			obj.Set(string(kb), val)
		}
		return value.ObjectValue(obj), nil
	default:
		return value.Null(), fmt.Errorf("serialize: unknown tag %d", tag)
	}
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
