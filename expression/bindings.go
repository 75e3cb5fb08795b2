package expression

import (
	"sort"

	"github.com/kbukum/viewkit/document"
)

// Bindings is an immutable variable environment. Each With call returns a
// new environment that shadows its parent, so one environment can be shared
// by every stage of a correlated sub-pipeline without copying.
type Bindings struct {
	parent *Bindings
	name   string
	value  document.Value
}

// NewBindings returns an empty environment.
func NewBindings() *Bindings { return nil }

// With returns a new environment with name bound to v.
func (b *Bindings) With(name string, v document.Value) *Bindings {
	return &Bindings{parent: b, name: name, value: v}
}

// Lookup resolves a variable, searching from the innermost binding outward.
func (b *Bindings) Lookup(name string) (document.Value, bool) {
	for cur := b; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return document.Missing(), false
}

// Names returns the visible variable names, sorted.
func (b *Bindings) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for cur := b; cur != nil; cur = cur.parent {
		if !seen[cur.name] {
			seen[cur.name] = true
			names = append(names, cur.name)
		}
	}
	sort.Strings(names)
	return names
}
