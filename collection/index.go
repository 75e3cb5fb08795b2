package collection

import (
	"slices"

	"github.com/kbukum/viewkit/document"
)

// HashIndex maps equality keys to the positions of the values indexed under
// them. Positions must be added in non-decreasing order; each key keeps its
// positions sorted and free of duplicates.
type HashIndex struct {
	buckets map[uint64][]indexEntry
}

type indexEntry struct {
	key       document.Value
	positions []int
}

// NewHashIndex returns an empty index.
func NewHashIndex() *HashIndex {
	return &HashIndex{buckets: make(map[uint64][]indexEntry)}
}

// Add indexes the value at pos under every key from IndexKeys.
func (h *HashIndex) Add(v document.Value, pos int) {
	for _, k := range IndexKeys(v) {
		hash := document.Hash(k)
		bucket := h.buckets[hash]
		found := false
		for i := range bucket {
			if document.Equal(bucket[i].key, k) {
				ps := bucket[i].positions
				// an array may yield the same key twice for one position
				if ps[len(ps)-1] != pos {
					bucket[i].positions = append(ps, pos)
				}
				found = true
				break
			}
		}
		if !found {
			h.buckets[hash] = append(bucket, indexEntry{key: k, positions: []int{pos}})
		}
	}
}

// Find returns the positions indexed under key.
func (h *HashIndex) Find(key document.Value) []int {
	for _, e := range h.buckets[document.Hash(key)] {
		if document.Equal(e.key, key) {
			return e.positions
		}
	}
	return nil
}

// FindAny returns the sorted, distinct positions indexed under any of keys.
func (h *HashIndex) FindAny(keys ...document.Value) []int {
	if len(keys) == 1 {
		return h.Find(keys[0])
	}
	seen := make(map[int]bool)
	var out []int
	for _, k := range keys {
		for _, p := range h.Find(k) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of distinct keys.
func (h *HashIndex) Len() int {
	n := 0
	for _, b := range h.buckets {
		n += len(b)
	}
	return n
}
