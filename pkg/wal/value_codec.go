package wal

import (
	"github.com/strata-db/strata/pkg/serialize"
	"github.com/strata-db/strata/pkg/value"
)

// encodePutValue renders v via the canonical binary serialization so it can
// travel as a WAL entry's payload bytes.
func encodePutValue(v value.Value) []byte {
	return serialize.Encode(v)
}

func decodePutValue(b []byte) (value.Value, error) {
	return serialize.Decode(b)
}
