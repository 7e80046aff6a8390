package value

import (
	"strconv"
	"strings"
)

// pathToken is one step of a parsed path: either an object field or an
// array index.
type pathToken struct {
	field string
	index int
	isIdx bool
}

// ParsePath parses a dotted/bracket path such as "$", "a.b", "a[0].b",
// "[2]" into a sequence of tokens. "$" alone parses to an empty token list
// (the root).
func ParsePath(path string) ([]pathToken, bool) {
	if path == "$" || path == "" {
		return nil, true
	}
	rest := path
	if strings.HasPrefix(rest, "$") {
		rest = rest[1:]
		rest = strings.TrimPrefix(rest, ".")
	}
	var toks []pathToken
	for len(rest) > 0 {
		switch {
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, false
			}
			idxStr := rest[1:end]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			toks = append(toks, pathToken{index: idx, isIdx: true})
			rest = rest[end+1:]
			rest = strings.TrimPrefix(rest, ".")
		default:
			end := strings.IndexAny(rest, ".[")
			var field string
			if end < 0 {
				field = rest
				rest = ""
			} else {
				field = rest[:end]
				rest = rest[end:]
				rest = strings.TrimPrefix(rest, ".")
			}
			if field == "" {
				return nil, false
			}
			toks = append(toks, pathToken{field: field})
		}
	}
	return toks, true
}

// Get traverses v by path, returning (value, present). "Absent" (present =
// false) is distinct from "present but Null" (present = true, value is
// Null).
func Get(v Value, path string) (Value, bool) {
	toks, ok := ParsePath(path)
	if !ok {
		return Null(), false
	}
	cur := v
	for _, t := range toks {
		if t.isIdx {
			arr, isArr := cur.AsArray()
			if !isArr || t.index < 0 || t.index >= len(arr) {
				return Null(), false
			}
			cur = arr[t.index]
		} else {
			obj, isObj := cur.AsObject()
			if !isObj {
				return Null(), false
			}
			next, present := obj.Get(t.field)
			if !present {
				return Null(), false
			}
			cur = next
		}
	}
	return cur, true
}

// Set traverses v by path and returns a new Value with newVal placed at
// that path, creating intermediate Objects/Arrays as needed. path = "$"
// replaces the root entirely.
func Set(v Value, path string, newVal Value) (Value, error) {
	toks, ok := ParsePath(path)
	if !ok {
		return Null(), errInvalidPath(path)
	}
	if len(toks) == 0 {
		return newVal, nil
	}
	return setRec(v, toks, newVal)
}

func setRec(cur Value, toks []pathToken, newVal Value) (Value, error) {
	t := toks[0]
	if t.isIdx {
		var arr []Value
		if existing, isArr := cur.AsArray(); isArr {
			arr = append([]Value(nil), existing...)
		}
		for len(arr) <= t.index {
			arr = append(arr, Null())
		}
		if t.index < 0 {
			return Null(), errInvalidPath("negative array index")
		}
		if len(toks) == 1 {
			arr[t.index] = newVal
		} else {
			updated, err := setRec(arr[t.index], toks[1:], newVal)
			if err != nil {
				return Null(), err
			}
			arr[t.index] = updated
		}
		return Array(arr...), nil
	}
	var obj *Object
	if existing, isObj := cur.AsObject(); isObj {
		obj = existing.Clone()
	} else {
		obj = NewObject()
	}
	if len(toks) == 1 {
		obj.Set(t.field, newVal)
	} else {
		child, _ := obj.Get(t.field)
		updated, err := setRec(child, toks[1:], newVal)
		if err != nil {
			return Null(), err
		}
		obj.Set(t.field, updated)
	}
	return ObjectValue(obj), nil
}

// Delete traverses v by path and returns a new Value with that path
// removed, along with whether the path was present. path = "$" is not
// removable this way (callers use a tombstone write instead).
func Delete(v Value, path string) (Value, bool) {
	toks, ok := ParsePath(path)
	if !ok || len(toks) == 0 {
		return v, false
	}
	return deleteRec(v, toks)
}

func deleteRec(cur Value, toks []pathToken) (Value, bool) {
	t := toks[0]
	if t.isIdx {
		arr, isArr := cur.AsArray()
		if !isArr || t.index < 0 || t.index >= len(arr) {
			return cur, false
		}
		cp := append([]Value(nil), arr...)
		if len(toks) == 1 {
			cp = append(cp[:t.index], cp[t.index+1:]...)
			return Array(cp...), true
		}
		updated, removed := deleteRec(cp[t.index], toks[1:])
		if !removed {
			return cur, false
		}
		cp[t.index] = updated
		return Array(cp...), true
	}
	obj, isObj := cur.AsObject()
	if !isObj {
		return cur, false
	}
	cp := obj.Clone()
	if len(toks) == 1 {
		removed := cp.Delete(t.field)
		return ObjectValue(cp), removed
	}
	child, present := cp.Get(t.field)
	if !present {
		return cur, false
	}
	updated, removed := deleteRec(child, toks[1:])
	if !removed {
		return cur, false
	}
	cp.Set(t.field, updated)
	return ObjectValue(cp), true
}

type pathError string

func (e pathError) Error() string { return string(e) }

func errInvalidPath(msg string) error { return pathError("invalid path: " + msg) }
