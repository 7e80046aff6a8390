package serialize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/pkg/value"
)

func TestRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Null(),
		value.Bool(true),
		value.Bool(false),
		value.Int(-42),
		value.Int(math.MaxInt64),
		value.Float(3.14159),
		value.Float(math.Inf(1)),
		value.String(""),
		value.String("hello, strata"),
		value.Bytes([]byte{0, 1, 2, 255}),
	}
	for _, v := range cases {
		encoded := Encode(v)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.True(t, value.Equal(v, decoded))
	}
}

func TestRoundTripNaN(t *testing.T) {
	v := value.Float(math.NaN())
	decoded, err := Decode(Encode(v))
	require.NoError(t, err)
	f, ok := decoded.AsFloat()
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
	// NaN != NaN by value-identity.
	require.False(t, value.Equal(v, decoded))
}

func TestRoundTripNestedObject(t *testing.T) {
	obj := value.NewObject()
	obj.Set("name", value.String("Alice"))
	obj.Set("age", value.Int(30))
	inner := value.NewObject()
	inner.Set("city", value.String("NYC"))
	obj.Set("address", value.ObjectValue(inner))
	obj.Set("tags", value.Array(value.String("a"), value.String("b")))

	v := value.ObjectValue(obj)
	decoded, err := Decode(Encode(v))
	require.NoError(t, err)
	require.True(t, value.Equal(v, decoded))
}

func TestRoundTripArrayOfMixed(t *testing.T) {
	v := value.Array(value.Int(1), value.String("x"), value.Bool(true), value.Null(), value.NewEmptyObject())
	decoded, err := Decode(Encode(v))
	require.NoError(t, err)
	require.True(t, value.Equal(v, decoded))
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.Error(t, err)
}

func TestDecodeTrailingBytes(t *testing.T) {
	encoded := Encode(value.Int(1))
	encoded = append(encoded, 0x00)
	_, err := Decode(encoded)
	require.Error(t, err)
}
