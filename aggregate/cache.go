package aggregate

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kbukum/viewkit/document"
)

// CompileCache keeps compiled stage lists keyed by their definition, so
// that re-reading a view does not re-parse its pipeline. Compiled stages
// are immutable and safe to share between pipelines and goroutines.
type CompileCache struct {
	entries *lru.Cache[uint64, []cacheEntry]
}

type cacheEntry struct {
	def    document.Value
	stages []compiledStage
}

// NewCompileCache returns a cache holding up to size distinct hash buckets.
func NewCompileCache(size int) (*CompileCache, error) {
	if size <= 0 {
		size = 128
	}
	entries, err := lru.New[uint64, []cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CompileCache{entries: entries}, nil
}

func (c *CompileCache) get(def document.Value) ([]compiledStage, bool) {
	bucket, ok := c.entries.Get(document.Hash(def))
	if !ok {
		return nil, false
	}
	for _, e := range bucket {
		if document.Equal(e.def, def) {
			return e.stages, true
		}
	}
	return nil, false
}

func (c *CompileCache) put(def document.Value, stages []compiledStage) {
	h := document.Hash(def)
	bucket, _ := c.entries.Peek(h)
	next := make([]cacheEntry, 0, len(bucket)+1)
	next = append(next, bucket...)
	c.entries.Add(h, append(next, cacheEntry{def: def, stages: stages}))
}

// Len returns the number of cached buckets.
func (c *CompileCache) Len() int { return c.entries.Len() }
