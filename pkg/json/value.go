package json

import (
	"math"
	"strconv"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object, kept in document order.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value that remembers object key order. Numbers keep their
// literal text so integers of any width survive until they are cast to a
// column type. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	text    string
	items   []Value
	members []Member
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number returns a number value from its literal text.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Int returns a number value for an integer.
func Int(i int64) Value { return Number(strconv.FormatInt(i, 10)) }

// Float returns a number value for a float.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'g', -1, 64)) }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array returns an array value.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Object returns an object value with members in the given order.
func Object(members ...Member) Value {
	if members == nil {
		members = []Member{}
	}
	return Value{kind: KindObject, members: members}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; false for non-boolean values.
func (v Value) Bool() bool { return v.kind == KindBool && v.boolean }

// Text returns the string payload for strings and the literal for numbers.
func (v Value) Text() string { return v.text }

// Items returns the elements of an array.
func (v Value) Items() []Value { return v.items }

// Members returns the members of an object in document order.
func (v Value) Members() []Member { return v.members }

// Get returns the value stored under key in an object. When a key repeats,
// the last occurrence wins, as with encoding/json.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for i := len(v.members) - 1; i >= 0; i-- {
		if v.members[i].Key == key {
			return v.members[i].Value, true
		}
	}
	return Value{}, false
}

// Int64 converts a number to int64. Integral floats such as 3.0 are
// accepted.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, errors.Newf(errors.ErrorTypeData, "cannot convert %s to integer", v.kind)
	}
	return ParseInt(v.text)
}

// Float64 converts a number to float64.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, errors.Newf(errors.ErrorTypeData, "cannot convert %s to number", v.kind)
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeData, "invalid number").WithDetail("value", v.text)
	}
	return f, nil
}

// ParseInt parses an integer literal, accepting integral float notation.
func ParseInt(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeData, "invalid integer").WithDetail("value", s)
	}
	if f != math.Trunc(f) {
		return 0, errors.New(errors.ErrorTypeData, "number is not an integer").WithDetail("value", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= 1<<63 || f < -(1<<63) {
		return 0, errors.New(errors.ErrorTypeData, "integer out of range").WithDetail("value", s)
	}
	return int64(f), nil
}

// Interface converts v into plain Go values: nil, bool, int64 or float64,
// string, []interface{} and map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(v.text, 64)
		return f
	case KindString:
		return v.text
	case KindArray:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether v and o are structurally identical, including object
// member order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolean == o.boolean
	case KindNumber, KindString:
		return v.text == o.text
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != o.members[i].Key || !v.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// UnmarshalJSON lets Value be embedded in structs decoded with Unmarshal.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
