// Package rawevent models the opaque, pre-normalization event boundary
// (spec §3, §9 "dynamically-typed raw events"). A Value is a tagged tree
// over JSON scalars, objects, and arrays; it is the only place in the
// pipeline unstructured data is allowed to live. Values stop at the
// normalizer (and the field-alias resolver it calls) and the raw-batch run
// artifact — the detector and registry never see a Value.
package rawevent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value wraps one decoded JSON value (object, array, string, number, bool,
// or null) and provides dot-path lookup without repeated type assertions at
// call sites.
type Value struct {
	raw any
}

// Batch is an ordered list of raw events, preserving input order so the
// normalizer can break timestamp ties by original index (spec §4.2 step 6).
type Batch []Value

// Parse decodes a single JSON object into a Value.
func Parse(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return Value{raw: v}, nil
}

// ParseBatch decodes a JSON array of objects into a Batch, preserving order.
func ParseBatch(data []byte) (Batch, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	batch := make(Batch, 0, len(raw))
	for _, item := range raw {
		v, err := Parse(item)
		if err != nil {
			return nil, err
		}
		batch = append(batch, v)
	}
	return batch, nil
}

// Of wraps an already-decoded value (used by tests and by the dot-path walk).
func Of(raw any) Value { return Value{raw: raw} }

// IsObject reports whether the value is a JSON object.
func (v Value) IsObject() bool {
	_, ok := v.raw.(map[string]any)
	return ok
}

// Object returns the value as a map, or nil if it is not an object.
func (v Value) Object() map[string]any {
	m, _ := v.raw.(map[string]any)
	return m
}

// Field looks up a direct (non-dot-path) key on an object value.
func (v Value) Field(key string) (Value, bool) {
	m := v.Object()
	if m == nil {
		return Value{}, false
	}
	raw, ok := m[key]
	if !ok {
		return Value{}, false
	}
	return Value{raw: raw}, true
}

// Lookup resolves a dot-path (e.g. "winlog.event_data.TargetUserName")
// against the value, walking nested objects. Returns false if any segment
// is missing or the path traverses a non-object.
func (v Value) Lookup(dotPath string) (Value, bool) {
	cur := v
	for _, seg := range strings.Split(dotPath, ".") {
		next, ok := cur.Field(seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// String returns the value as a string if it is a JSON string, number, or
// bool (coerced to its textual form); ok is false for objects, arrays, and
// null. Field alias resolution treats any scalar as textual.
func (v Value) String() (string, bool) {
	switch t := v.raw.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Number returns the value as a float64 if it is a JSON number.
func (v Value) Number() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok
}

// IsNull reports whether the value is JSON null or entirely absent.
func (v Value) IsNull() bool {
	return v.raw == nil
}

// Raw exposes the underlying decoded value, for callers (tests, dot-path
// traversal) that need the bare Go representation.
func (v Value) Raw() any { return v.raw }
