package document

import (
	"math"
	"strings"
)

// canonical sort rank of each kind, lowest first.
var kindRank = [...]int{
	KindMissing:  0,
	KindNull:     1,
	KindNumber:   2,
	KindString:   3,
	KindDocument: 4,
	KindArray:    5,
	KindBool:     6,
}

// Equal reports structural equality: same kind and same content,
// recursively for arrays and documents. Document field order is significant.
// NaN equals NaN so that grouping keys stay stable.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindMissing, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n || (math.IsNaN(a.n) && math.IsNaN(b.n))
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindDocument:
		return EqualDocuments(a.doc, b.doc)
	}
	return false
}

// EqualDocuments compares two documents field by field, in order.
func EqualDocuments(a, b *Document) bool {
	if a.Len() != b.Len() {
		return false
	}
	af, bf := a.Fields(), b.Fields()
	for i := range af {
		if af[i].Name != bf[i].Name || !Equal(af[i].Value, bf[i].Value) {
			return false
		}
	}
	return true
}

// Compare orders two values: negative when a < b, zero when equal, positive
// when a > b. Values of different kinds order by kind rank
// (missing < null < number < string < object < array < bool).
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return kindRank[a.kind] - kindRank[b.kind]
	}
	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		return compareFloat(a.n, b.n)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return len(a.arr) - len(b.arr)
	case KindDocument:
		af, bf := a.doc.Fields(), b.doc.Fields()
		for i := 0; i < len(af) && i < len(bf); i++ {
			if c := strings.Compare(af[i].Name, bf[i].Name); c != 0 {
				return c
			}
			if c := Compare(af[i].Value, bf[i].Value); c != 0 {
				return c
			}
		}
		return len(af) - len(bf)
	}
	return 0
}

// NaN sorts below every other number.
func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
