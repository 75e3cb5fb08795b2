package definition

import (
	"github.com/kbukum/viewkit/document"
)

// ViewDef declares a view over a collection or another view.
type ViewDef struct {
	Name     string
	Source   string
	Pipeline []document.Value
}

// IndexDef declares equality indexes on a collection, one per key field.
type IndexDef struct {
	Collection string
	Fields     []string
}

// DataDef holds documents to insert into a collection.
type DataDef struct {
	Collection string
	Documents  []*document.Document
}

// Definitions is everything a set of definition files declares, in
// declaration order.
type Definitions struct {
	Collections []string
	Indexes     []IndexDef
	Views       []ViewDef
	Data        []DataDef
}

// Merge appends other's declarations to d.
func (d *Definitions) Merge(other *Definitions) {
	if other == nil {
		return
	}
	d.Collections = append(d.Collections, other.Collections...)
	d.Indexes = append(d.Indexes, other.Indexes...)
	d.Views = append(d.Views, other.Views...)
	d.Data = append(d.Data, other.Data...)
}

// Empty reports whether nothing is declared.
func (d *Definitions) Empty() bool {
	return len(d.Collections) == 0 && len(d.Indexes) == 0 && len(d.Views) == 0 && len(d.Data) == 0
}

// View returns the first view declared under name.
func (d *Definitions) View(name string) (ViewDef, bool) {
	for _, v := range d.Views {
		if v.Name == name {
			return v, true
		}
	}
	return ViewDef{}, false
}
