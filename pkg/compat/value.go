package compat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the runtime shape of a specification value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	return []string{"invalid", "string", "number", "bool", "array", "object"}[k]
}

// Value is a tagged union over the shapes a specification field may take.
// Specification payloads arrive as arbitrary JSON; decoding them into Value
// makes the field comparator's type dispatch exhaustive instead of relying
// on runtime reflection over interface{}.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number constructs a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array constructs an array value.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object constructs an object value.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports the value's runtime shape.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload. The second return is false when the
// value is not a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsArray returns the array payload.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsObject returns the object payload.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Equal reports deep equality between two values of the same kind.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// maxSummaryElems bounds how many array elements appear in a display summary
// before the rest is elided.
const maxSummaryElems = 4

// Summary renders the value for human-readable messages. Large arrays and
// objects are elided so comparator messages stay a single line.
func (v Value) Summary() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindArray:
		if len(v.arr) > maxSummaryElems {
			return fmt.Sprintf("[%d items]", len(v.arr))
		}
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.Summary()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxSummaryElems {
			return fmt.Sprintf("{%d keys}", len(keys))
		}
		return "{" + strings.Join(keys, ", ") + "}"
	}
	return "<invalid>"
}

// canonical renders a value as a set-membership token for array overlap
// computation. Numbers and strings that print identically are considered the
// same element.
func (v Value) canonical() string {
	switch v.kind {
	case KindString:
		return "s:" + v.str
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	default:
		data, _ := json.Marshal(v)
		return v.kind.String() + ":" + string(data)
	}
}

// UnmarshalJSON decodes arbitrary JSON into the tagged union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalJSON encodes the union back to its plain JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	}
	return nil, fmt.Errorf("cannot marshal invalid value")
}

// FromInterface converts a decoded JSON value (as produced by
// encoding/json into interface{}) into a tagged Value.
func FromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, fmt.Errorf("null is not a valid specification value")
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	case []interface{}:
		elems := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return Array(elems...), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			fields[k] = ev
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported specification value type %T", raw)
	}
}
