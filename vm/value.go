package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// Value: tagged representation of every TulipScript value
// ---------------------------------------------------------------------------

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindNumber: "number",
	KindString: "string",
	KindObject: "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a TulipScript value. The zero Value is null.
//
// Primitive kinds are stored inline; heap objects (arrays, maps, closures,
// structs) are referenced through obj and therefore share identity when
// copied.
type Value struct {
	kind Kind
	num  float64
	str  string
	obj  Object
}

// Null is the null value.
var Null = Value{}

// True and False are the boolean values.
var (
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool}
)

// FromBool returns the boolean value for b.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromNumber returns a number value.
func FromNumber(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// FromString returns a string value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromObject wraps a heap object. A nil object yields null.
func FromObject(o Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindObject, obj: o}
}

// Kind returns the value's dynamic kind.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsObject() bool { return v.kind == KindObject }

// Bool returns the boolean payload. Only meaningful when IsBool.
func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Number returns the numeric payload. Only meaningful when IsNumber.
func (v Value) Number() float64 { return v.num }

// Str returns the string payload. Only meaningful when IsString.
func (v Value) Str() string { return v.str }

// Object returns the heap object, or nil for primitive values.
func (v Value) Object() Object { return v.obj }

// IsInteger reports whether v is a number with no fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && !math.IsInf(v.num, 0) && v.num == math.Trunc(v.num)
}

// Truthy reports whether v counts as true in a condition.
// Only null and false are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.num != 0
	default:
		return true
	}
}

// TypeName returns the script-visible type name, as reported by type().
func (v Value) TypeName() string {
	if v.kind == KindObject {
		return v.obj.TypeName()
	}
	return v.kind.String()
}

// Equal implements the == operator. Primitives compare by value,
// objects by identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool, KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	default:
		return a.obj == b.obj
	}
}

// String implements fmt.Stringer using the script rendering.
func (v Value) String() string {
	return Render(v)
}
