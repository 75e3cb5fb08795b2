package document

// Field is a single named value of a document.
type Field struct {
	Name  string
	Value Value
}

// F builds a field, converting plain Go values with FromGo.
func F(name string, v any) Field {
	return Field{Name: name, Value: FromGo(v)}
}

// Document is an ordered mapping from field name to Value.
type Document struct {
	fields []Field
}

// New returns an empty document with room for n fields.
func New(n int) *Document {
	return &Document{fields: make([]Field, 0, n)}
}

// Doc builds a document from fields in order. Later duplicates replace
// earlier ones in place.
func Doc(fields ...Field) *Document {
	d := New(len(fields))
	for _, f := range fields {
		d.Set(f.Name, f.Value)
	}
	return d
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

func (d *Document) indexOf(name string) int {
	if d == nil {
		return -1
	}
	for i := range d.fields {
		if d.fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the top-level field value, or Missing.
func (d *Document) Get(name string) Value {
	if i := d.indexOf(name); i >= 0 {
		return d.fields[i].Value
	}
	return Missing()
}

// Has reports whether the top-level field exists.
func (d *Document) Has(name string) bool { return d.indexOf(name) >= 0 }

// Set assigns a top-level field in place, keeping its position when it
// already exists. Setting Missing removes the field.
// Set mutates d; use it only on documents the caller owns.
func (d *Document) Set(name string, v Value) {
	if v.IsMissing() {
		d.Delete(name)
		return
	}
	if i := d.indexOf(name); i >= 0 {
		d.fields[i].Value = v
		return
	}
	d.fields = append(d.fields, Field{Name: name, Value: v})
}

// Delete removes a top-level field in place.
func (d *Document) Delete(name string) {
	if i := d.indexOf(name); i >= 0 {
		d.fields = append(d.fields[:i], d.fields[i+1:]...)
	}
}

// Fields returns the fields in order. Callers must not modify the slice.
func (d *Document) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Len())
	for _, f := range d.Fields() {
		keys = append(keys, f.Name)
	}
	return keys
}

// Clone returns a shallow copy. Nested values are shared, which is safe
// because values are never modified after construction.
func (d *Document) Clone() *Document {
	if d == nil {
		return New(0)
	}
	c := &Document{fields: make([]Field, len(d.fields), len(d.fields)+1)}
	copy(c.fields, d.fields)
	return c
}

// ID returns the value of the _id field, or nil when absent. It is used to
// annotate errors with the offending document.
func (d *Document) ID() any {
	v := d.Get("_id")
	if v.IsMissing() {
		return nil
	}
	return ToGo(v)
}

// String renders d as compact JSON.
func (d *Document) String() string {
	return DocumentValue(d).String()
}
