package document

import (
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindDocument
)

var kindNames = [...]string{
	KindMissing:  "missing",
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindString:   "string",
	KindArray:    "array",
	KindDocument: "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged document value. The zero Value is Missing.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	doc  *Document
}

// Missing returns the value of an absent field.
func Missing() Value { return Value{} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns a numeric value from an integer.
func Int(n int64) Value { return Value{kind: KindNumber, n: float64(n)} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value holding the given elements.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// DocumentValue wraps a document. A nil document yields Null.
func DocumentValue(d *Document) Value {
	if d == nil {
		return Null()
	}
	return Value{kind: KindDocument, doc: d}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsMissing() bool  { return v.kind == KindMissing }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) IsArray() bool    { return v.kind == KindArray }
func (v Value) IsDocument() bool { return v.kind == KindDocument }

// IsNullish reports whether v is Null or Missing.
func (v Value) IsNullish() bool { return v.kind == KindNull || v.kind == KindMissing }

// BoolValue returns the boolean payload; false for other kinds.
func (v Value) BoolValue() bool { return v.kind == KindBool && v.b }

// NumberValue returns the numeric payload; 0 for other kinds.
func (v Value) NumberValue() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// StringValue returns the string payload; "" for other kinds.
func (v Value) StringValue() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// ArrayValue returns the elements of an array; nil for other kinds.
// Callers must not modify the returned slice.
func (v Value) ArrayValue() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// DocumentValue returns the wrapped document; nil for other kinds.
func (v Value) DocumentValue() *Document {
	if v.kind != KindDocument {
		return nil
	}
	return v.doc
}

// IntValue returns the number as an int64 when it is integral.
func (v Value) IntValue() (int64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.n) || math.IsInf(v.n, 0) || v.n != math.Trunc(v.n) {
		return 0, false
	}
	return int64(v.n), true
}

// Truthy reports the boolean interpretation of v. Missing, Null, false,
// zero and the empty string are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindMissing, KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	default:
		return true
	}
}

// OrNull converts Missing to Null and returns other values unchanged.
func (v Value) OrNull() Value {
	if v.kind == KindMissing {
		return Null()
	}
	return v
}

// String renders v as compact JSON. Missing renders as "missing".
func (v Value) String() string {
	if v.kind == KindMissing {
		return "missing"
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(b)
}
