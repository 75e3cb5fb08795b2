package collection

import (
	"context"
	"sync"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/stream"
)

// Memory is an in-memory collection. Scans observe a snapshot taken when
// the scan starts; concurrent inserts are visible to later scans only.
type Memory struct {
	name    string
	mu      sync.RWMutex
	docs    []*document.Document
	indexes map[string]*HashIndex
}

var (
	_ Indexed  = (*Memory)(nil)
	_ Writable = (*Memory)(nil)
)

// NewMemory returns a collection holding docs.
func NewMemory(name string, docs ...*document.Document) *Memory {
	return &Memory{name: name, docs: docs, indexes: make(map[string]*HashIndex)}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Scan(_ context.Context) (stream.Iterator[*document.Document], error) {
	m.mu.RLock()
	snapshot := m.docs[:len(m.docs):len(m.docs)]
	m.mu.RUnlock()
	return stream.Slice(snapshot), nil
}

// Len returns the number of documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Insert(_ context.Context, docs ...*document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		pos := len(m.docs)
		m.docs = append(m.docs, d)
		for field, idx := range m.indexes {
			idx.Add(d.Lookup(field), pos)
		}
	}
	return nil
}

// CreateIndex builds an equality index on a dotted field path. Creating an
// existing index is a no-op.
func (m *Memory) CreateIndex(_ context.Context, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[field]; ok {
		return nil
	}
	idx := NewHashIndex()
	for pos, d := range m.docs {
		idx.Add(d.Lookup(field), pos)
	}
	m.indexes[field] = idx
	return nil
}

func (m *Memory) HasIndex(field string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[field]
	return ok
}

// FindEqual uses the field's index when present and scans otherwise.
func (m *Memory) FindEqual(_ context.Context, field string, keys ...document.Value) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*document.Document
	if idx, ok := m.indexes[field]; ok {
		for _, p := range idx.FindAny(keys...) {
			out = append(out, m.docs[p])
		}
		return out, nil
	}
	for _, d := range m.docs {
		if Matches(d.Lookup(field), keys...) {
			out = append(out, d)
		}
	}
	return out, nil
}
