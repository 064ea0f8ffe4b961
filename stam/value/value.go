// Package value holds annotation data values and the predicates that filter them.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/teranos/stam/errors"
)

// Kind discriminates the variants of a DataValue.
type Kind uint8

const (
	NullKind Kind = iota
	StringKind
	BoolKind
	IntKind
	FloatKind
	ListKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case BoolKind:
		return "bool"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case ListKind:
		return "list"
	}
	return "unknown"
}

// DataValue is a typed scalar or an ordered list of values. It is held by
// value and treated as immutable.
type DataValue struct {
	kind Kind
	s    string
	b    bool
	i    int64
	f    float64
	list []DataValue
}

func Null() DataValue { return DataValue{kind: NullKind} }
func String(s string) DataValue { return DataValue{kind: StringKind, s: s} }
func Bool(b bool) DataValue { return DataValue{kind: BoolKind, b: b} }
func Int(i int64) DataValue { return DataValue{kind: IntKind, i: i} }
func Float(f float64) DataValue { return DataValue{kind: FloatKind, f: f} }
func List(vs ...DataValue) DataValue {
	return DataValue{kind: ListKind, list: append([]DataValue(nil), vs...)}
}

// Of converts a plain Go value into a DataValue.
func Of(v any) (DataValue, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case DataValue:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case []any:
		items := make([]DataValue, 0, len(x))
		for _, item := range x {
			dv, err := Of(item)
			if err != nil {
				return DataValue{}, err
			}
			items = append(items, dv)
		}
		return List(items...), nil
	case []string:
		items := make([]DataValue, 0, len(x))
		for _, item := range x {
			items = append(items, String(item))
		}
		return List(items...), nil
	case []int:
		items := make([]DataValue, 0, len(x))
		for _, item := range x {
			items = append(items, Int(int64(item)))
		}
		return List(items...), nil
	case []int64:
		items := make([]DataValue, 0, len(x))
		for _, item := range x {
			items = append(items, Int(item))
		}
		return List(items...), nil
	case []float64:
		items := make([]DataValue, 0, len(x))
		for _, item := range x {
			items = append(items, Float(item))
		}
		return List(items...), nil
	}
	return DataValue{}, errors.NewValueTypeMismatchError("cannot hold %T as a data value", v)
}

func (v DataValue) Kind() Kind { return v.kind }

func (v DataValue) IsNull() bool { return v.kind == NullKind }

func (v DataValue) AsString() (string, bool) { return v.s, v.kind == StringKind }
func (v DataValue) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }
func (v DataValue) AsInt() (int64, bool) { return v.i, v.kind == IntKind }

// AsFloat returns the value as a float. Ints convert; other kinds do not.
func (v DataValue) AsFloat() (float64, bool) {
	switch v.kind {
	case FloatKind:
		return v.f, true
	case IntKind:
		return float64(v.i), true
	}
	return 0, false
}

// AsList returns a copy of the list items.
func (v DataValue) AsList() ([]DataValue, bool) {
	if v.kind != ListKind {
		return nil, false
	}
	return append([]DataValue(nil), v.list...), true
}

// IsNumeric reports whether the value is an int or a float.
func (v DataValue) IsNumeric() bool {
	return v.kind == IntKind || v.kind == FloatKind
}

// Equal compares kind and content. An int never equals a float.
func (v DataValue) Equal(other DataValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case StringKind:
		return v.s == other.s
	case BoolKind:
		return v.b == other.b
	case IntKind:
		return v.i == other.i
	case FloatKind:
		return v.f == other.f || (math.IsNaN(v.f) && math.IsNaN(other.f))
	case ListKind:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Key is a canonical encoding used to deduplicate identical values.
func (v DataValue) Key() string {
	var b strings.Builder
	v.writeKey(&b)
	return b.String()
}

func (v DataValue) writeKey(b *strings.Builder) {
	switch v.kind {
	case NullKind:
		b.WriteString("n")
	case StringKind:
		b.WriteString("s")
		b.WriteString(strconv.Itoa(len(v.s)))
		b.WriteByte(':')
		b.WriteString(v.s)
	case BoolKind:
		if v.b {
			b.WriteString("t")
		} else {
			b.WriteString("f")
		}
	case IntKind:
		b.WriteString("i")
		b.WriteString(strconv.FormatInt(v.i, 10))
		b.WriteByte(';')
	case FloatKind:
		b.WriteString("d")
		b.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		b.WriteByte(';')
	case ListKind:
		b.WriteString("l")
		b.WriteString(strconv.Itoa(len(v.list)))
		b.WriteByte('[')
		for _, item := range v.list {
			item.writeKey(b)
		}
		b.WriteByte(']')
	}
}

func (v DataValue) String() string {
	switch v.kind {
	case NullKind:
		return "null"
	case StringKind:
		return v.s
	case BoolKind:
		return strconv.FormatBool(v.b)
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ListKind:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return ""
}

// Interface returns the plain Go value, the inverse of Of.
func (v DataValue) Interface() any {
	switch v.kind {
	case StringKind:
		return v.s
	case BoolKind:
		return v.b
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case ListKind:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}
