package exec

import (
	"encoding/json"
	"fmt"
)

// ValueKind identifies the dynamic type carried by a Value.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is the dynamically typed value carried by every expression in the
// graph. The zero Value is Unknown, matching PLEXIL's UNKNOWN value: every
// expression starts and can return to this state, and arithmetic/logical
// operators propagate it rather than panicking on a missing operand.
type Value struct {
	kind  ValueKind
	b     bool
	i     int64
	f     float64
	s     string
	array []Value
}

// Unknown returns the UNKNOWN value.
func Unknown() Value { return Value{} }

func BoolValue(b bool) Value     { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value     { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func ArrayValue(vs []Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindArray, array: cp}
}

func (v Value) Kind() ValueKind  { return v.kind }
func (v Value) IsUnknown() bool  { return v.kind == KindUnknown }
func (v Value) IsKnown() bool    { return v.kind != KindUnknown }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	default:
		return 0, false
	}
}

func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindUnknown:
		return "UNKNOWN"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindArray:
		return fmt.Sprintf("%v", v.array)
	default:
		return "?"
	}
}

func (v Value) StrValue() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

// Equal reports whether two values are equal. UNKNOWN is never equal to
// anything, including another UNKNOWN, matching ternary lookup semantics.
func (v Value) Equal(o Value) bool {
	if v.kind == KindUnknown || o.kind == KindUnknown {
		return false
	}
	if v.kind != o.kind {
		if (v.kind == KindInt || v.kind == KindFloat) && (o.kind == KindInt || o.kind == KindFloat) {
			vf, _ := v.Float()
			of, _ := o.Float()
			return vf == of
		}
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.array) != len(o.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(o.array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// wireValue is the single JSON encoding of a Value, shared by every
// component that has to cross a process boundary (pkg/operators' WASM
// bridge, pkg/transport/grpcexec's codec) instead of each inventing its
// own Value wire format.
type wireValue struct {
	Kind  string      `json:"kind"`
	Bool  bool        `json:"bool,omitempty"`
	Int   int64       `json:"int,omitempty"`
	Float float64     `json:"float,omitempty"`
	Str   string      `json:"str,omitempty"`
	Array []wireValue `json:"array,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		w.Bool = v.b
	case KindInt:
		w.Int = v.i
	case KindFloat:
		w.Float = v.f
	case KindString:
		w.Str = v.s
	case KindArray:
		w.Array = make([]wireValue, len(v.array))
		for i, e := range v.array {
			w.Array[i] = e.toWire()
		}
	}
	return json.Marshal(w)
}

func (v Value) toWire() wireValue {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		w.Bool = v.b
	case KindInt:
		w.Int = v.i
	case KindFloat:
		w.Float = v.f
	case KindString:
		w.Str = v.s
	case KindArray:
		w.Array = make([]wireValue, len(v.array))
		for i, e := range v.array {
			w.Array[i] = e.toWire()
		}
	}
	return w
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = w.toValue()
	return nil
}

func (w wireValue) toValue() Value {
	switch w.Kind {
	case "bool":
		return BoolValue(w.Bool)
	case "int":
		return IntValue(w.Int)
	case "float":
		return FloatValue(w.Float)
	case "string":
		return StringValue(w.Str)
	case "array":
		vs := make([]Value, len(w.Array))
		for i, e := range w.Array {
			vs[i] = e.toValue()
		}
		return ArrayValue(vs)
	default:
		return Unknown()
	}
}
