package main

import (
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/strata-db/strata/pkg/value"
)

// parseValue turns a CLI-supplied string into a value.Value. An empty
// string becomes Null; anything that parses as JSON becomes its structural
// equivalent (object/array/number/bool/null); anything else is taken
// literally as a string, so `strata kv put greeting hello` doesn't require
// quoting.
func parseValue(raw string) (value.Value, error) {
	if raw == "" {
		return value.Null(), nil
	}
	var generic interface{}
	if err := gojson.Unmarshal([]byte(raw), &generic); err != nil {
		return value.String(raw), nil
	}
	return toValue(generic), nil
}

func toValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.Int(int64(t))
		}
		return value.Float(t)
	case string:
		return value.String(t)
	case []interface{}:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = toValue(e)
		}
		return value.Array(elems...)
	case map[string]interface{}:
		obj := value.NewObject()
		for k, e := range t {
			obj.Set(k, toValue(e))
		}
		return value.ObjectValue(obj)
	default:
		return value.Null()
	}
}

// formatValue renders a value.Value back to a human-readable string for
// CLI output, via the same JSON codec used to parse it.
func formatValue(v value.Value) string {
	generic := fromValue(v)
	b, err := gojson.MarshalIndent(generic, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", generic)
	}
	return string(b)
}

func fromValue(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b
	case value.KindArray:
		arr, _ := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = fromValue(e)
		}
		return out
	case value.KindObject:
		obj, _ := v.AsObject()
		out := map[string]interface{}{}
		for _, k := range obj.Keys() {
			ev, _ := obj.Get(k)
			out[k] = fromValue(ev)
		}
		return out
	default:
		return nil
	}
}
