package document

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a 64-bit digest of v such that Equal(a, b) implies
// Hash(a) == Hash(b). Hash tables built on it must still confirm matches
// with Equal.
func Hash(v Value) uint64 {
	h := xxhash.New()
	writeHash(h, v)
	return h.Sum64()
}

func writeHash(h *xxhash.Digest, v Value) {
	var buf [9]byte
	buf[0] = byte(v.kind)
	switch v.kind {
	case KindBool:
		if v.b {
			buf[1] = 1
		}
		_, _ = h.Write(buf[:2])
	case KindNumber:
		n := v.n
		if n == 0 {
			n = 0 // fold -0
		}
		bits := math.Float64bits(n)
		if math.IsNaN(n) {
			bits = 0x7ff8000000000001
		}
		binary.LittleEndian.PutUint64(buf[1:], bits)
		_, _ = h.Write(buf[:9])
	case KindString:
		binary.LittleEndian.PutUint64(buf[1:], uint64(len(v.s)))
		_, _ = h.Write(buf[:9])
		_, _ = h.WriteString(v.s)
	case KindArray:
		binary.LittleEndian.PutUint64(buf[1:], uint64(len(v.arr)))
		_, _ = h.Write(buf[:9])
		for _, e := range v.arr {
			writeHash(h, e)
		}
	case KindDocument:
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.doc.Len()))
		_, _ = h.Write(buf[:9])
		for _, f := range v.doc.Fields() {
			_, _ = h.WriteString(f.Name)
			_, _ = h.Write([]byte{0})
			writeHash(h, f.Value)
		}
	default:
		_, _ = h.Write(buf[:1])
	}
}

// Set is an insertion-ordered set of values under structural equality.
type Set struct {
	buckets map[uint64][]int
	items   []Value
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{buckets: make(map[uint64][]int)}
}

// Add inserts v unless an equal value is present. It reports whether v was added.
func (s *Set) Add(v Value) bool {
	_, added := s.Insert(v)
	return added
}

// Insert is like Add and also returns the position of v in Values.
func (s *Set) Insert(v Value) (int, bool) {
	h := Hash(v)
	for _, i := range s.buckets[h] {
		if Equal(s.items[i], v) {
			return i, false
		}
	}
	s.buckets[h] = append(s.buckets[h], len(s.items))
	s.items = append(s.items, v)
	return len(s.items) - 1, true
}

// Contains reports whether an equal value is present.
func (s *Set) Contains(v Value) bool {
	for _, i := range s.buckets[Hash(v)] {
		if Equal(s.items[i], v) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct values.
func (s *Set) Len() int { return len(s.items) }

// Values returns the distinct values in first-insertion order.
func (s *Set) Values() []Value { return s.items }
