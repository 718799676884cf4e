package wire

import (
	"math"
	"strconv"
)

// Value is a literal argument value. The set of implementations is closed.
type Value interface {
	isValue()
}

// String is a quoted string literal.
type String string

// Bool is a lowercase true/false literal.
type Bool bool

// Enum is a bare identifier emitted without quotes.
type Enum string

// List is a bracketed, comma-separated list of values.
type List []Value

// Object is a braced input object with ordered fields.
type Object Fields

// Number is a decimal numeric literal. Build it with Int or Float.
type Number struct {
	i       int64
	f       float64
	isFloat bool
}

type unset struct{}

// Unset marks a field the encoder must skip.
var Unset Value = unset{}

func (String) isValue() {}
func (Bool) isValue()   {}
func (Enum) isValue()   {}
func (List) isValue()   {}
func (Object) isValue() {}
func (Number) isValue() {}
func (unset) isValue()  {}

// Int returns an integer Number.
func Int(v int64) Number { return Number{i: v} }

// Float returns a floating point Number.
func Float(v float64) Number { return Number{f: v, isFloat: true} }

func (n Number) literal() (string, bool) {
	if !n.isFloat {
		return strconv.FormatInt(n.i, 10), true
	}
	if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
		return "", false
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64), true
}

// Strings builds a List of String values.
func Strings(values ...string) List {
	out := make(List, 0, len(values))
	for _, v := range values {
		out = append(out, String(v))
	}
	return out
}

// Enums builds a List of Enum values.
func Enums(values ...string) List {
	out := make(List, 0, len(values))
	for _, v := range values {
		out = append(out, Enum(v))
	}
	return out
}

// OptString returns String(*v), or Unset when v is nil.
func OptString(v *string) Value {
	if v == nil {
		return Unset
	}
	return String(*v)
}

// OptInt returns Int(*v), or Unset when v is nil.
func OptInt(v *int) Value {
	if v == nil {
		return Unset
	}
	return Int(int64(*v))
}

// OptBool returns Bool(*v), or Unset when v is nil.
func OptBool(v *bool) Value {
	if v == nil {
		return Unset
	}
	return Bool(*v)
}

// NonEmpty returns String(v), or Unset when v is empty. Use it only for
// optional descriptive fields where an empty string carries no meaning.
func NonEmpty(v string) Value {
	if v == "" {
		return Unset
	}
	return String(v)
}
