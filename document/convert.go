package document

import (
	"fmt"
	"math"
	"sort"
)

// FromGo converts a plain Go value into a Value. Maps are converted with
// their keys sorted, since Go maps carry no order; build documents with Doc
// when field order matters.
func FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Document:
		return DocumentValue(x)
	case Field:
		return DocumentValue(Doc(x))
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case string:
		return String(x)
	case []Value:
		return Array(x...)
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromGo(e)
		}
		return Array(out...)
	case []string:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = String(e)
		}
		return Array(out...)
	case []int:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Int(int64(e))
		}
		return Array(out...)
	case []*Document:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = DocumentValue(e)
		}
		return Array(out...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := New(len(keys))
		for _, k := range keys {
			d.Set(k, FromGo(x[k]))
		}
		return DocumentValue(d)
	default:
		return String(fmt.Sprint(v))
	}
}

// ToGo converts a Value to plain Go types: nil, bool, int64 (integral
// numbers), float64, string, []any and map[string]any. Missing and Null
// both become nil; document field order is lost.
func ToGo(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if i, ok := v.IntValue(); ok && math.Abs(v.n) < 1<<53 {
			return i
		}
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToGo(e)
		}
		return out
	case KindDocument:
		out := make(map[string]any, v.doc.Len())
		for _, f := range v.doc.Fields() {
			out[f.Name] = ToGo(f.Value)
		}
		return out
	default:
		return nil
	}
}
