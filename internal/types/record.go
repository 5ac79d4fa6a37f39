package types

import "strings"

// Record is one decoded CloudTrail event. Values follow encoding/json's
// generic decoding: map[string]any, []any, string, float64, bool and nil.
//
// Lookups never panic. An absent key, a JSON null, or a missing parent object
// all read as "absent"; Present tests for a key regardless of its value. A
// parent that exists but is not an object, or a leaf of the wrong JSON type,
// is reported as a *FieldTypeError.
type Record map[string]any

// Value returns the raw value at path.
func (r Record) Value(path ...string) (any, bool, error) {
	var cur any = map[string]any(r)
	for i, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, &FieldTypeError{
				Path: strings.Join(path[:i], "."),
				Want: "object",
				Got:  JSONKind(cur),
			}
		}
		v, exists := obj[key]
		if !exists || v == nil {
			return nil, false, nil
		}
		cur = v
	}
	return cur, true, nil
}

// Has reports whether a non-null value exists at path. Shape mismatches along
// the path read as absent.
func (r Record) Has(path ...string) bool {
	_, ok, err := r.Value(path...)
	return ok && err == nil
}

// Present reports whether the key at path exists, even when its value is
// null. A missing or non-object parent reads as not present.
func (r Record) Present(path ...string) bool {
	if len(path) == 0 {
		return false
	}
	obj := map[string]any(r)
	for _, key := range path[:len(path)-1] {
		next, ok := obj[key].(map[string]any)
		if !ok {
			return false
		}
		obj = next
	}
	_, ok := obj[path[len(path)-1]]
	return ok
}

// String returns the string at path.
func (r Record) String(path ...string) (string, bool, error) {
	v, ok, err := r.Value(path...)
	if err != nil || !ok {
		return "", false, err
	}
	s, isStr := v.(string)
	if !isStr {
		return "", false, &FieldTypeError{Path: strings.Join(path, "."), Want: "string", Got: JSONKind(v)}
	}
	return s, true, nil
}

// Object returns the nested object at path.
func (r Record) Object(path ...string) (Record, bool, error) {
	v, ok, err := r.Value(path...)
	if err != nil || !ok {
		return nil, false, err
	}
	m, isObj := v.(map[string]any)
	if !isObj {
		return nil, false, &FieldTypeError{Path: strings.Join(path, "."), Want: "object", Got: JSONKind(v)}
	}
	return Record(m), true, nil
}

// StringOr returns the string at path, or def when it is absent or not a string.
func (r Record) StringOr(def string, path ...string) string {
	s, ok, err := r.String(path...)
	if err != nil || !ok {
		return def
	}
	return s
}

// JSONKind names the JSON type of a generically decoded value.
func JSONKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any, Record:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}
