package document

import "strings"

// SplitPath splits a dotted field path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup resolves a dotted path against the document. See Resolve.
func (d *Document) Lookup(path string) Value {
	return Resolve(DocumentValue(d), SplitPath(path))
}

// Resolve walks segments through v.
//
// Through a document, a segment selects the named field. Through an array,
// the remaining path is applied to every element and the results are
// collected into an array, skipping elements where the path is Missing;
// this is the implicit broadcast of nested field access. Through a scalar,
// or a field that does not exist, the result is Missing.
func Resolve(v Value, segments []string) Value {
	if len(segments) == 0 {
		return v
	}
	switch v.kind {
	case KindDocument:
		child := v.doc.Get(segments[0])
		if child.IsMissing() {
			return Missing()
		}
		return Resolve(child, segments[1:])
	case KindArray:
		out := make([]Value, 0, len(v.arr))
		for _, elem := range v.arr {
			if elem.kind != KindDocument && elem.kind != KindArray {
				continue
			}
			r := Resolve(elem, segments)
			if r.IsMissing() {
				continue
			}
			out = append(out, r)
		}
		return Array(out...)
	default:
		return Missing()
	}
}

// SetPath returns a copy of d with the dotted path set to v. Intermediate
// fields that are missing or scalars are replaced by new documents. Through
// an array the remaining path is set on every document element, recursing
// into nested arrays and leaving other elements as they are. Setting Missing
// removes the leaf field. d itself is not modified.
func (d *Document) SetPath(path string, v Value) *Document {
	return setSegments(d, SplitPath(path), v)
}

func setSegments(d *Document, segments []string, v Value) *Document {
	out := d.Clone()
	if len(segments) == 0 {
		return out
	}
	if len(segments) == 1 {
		out.Set(segments[0], v)
		return out
	}
	child := out.Get(segments[0])
	switch {
	case child.kind == KindArray:
		out.Set(segments[0], setInArray(child, segments[1:], v))
	case child.kind == KindDocument:
		out.Set(segments[0], DocumentValue(setSegments(child.doc, segments[1:], v)))
	case !v.IsMissing():
		out.Set(segments[0], DocumentValue(setSegments(nil, segments[1:], v)))
	}
	return out
}

func setInArray(arr Value, segments []string, v Value) Value {
	out := make([]Value, len(arr.arr))
	for i, el := range arr.arr {
		switch el.kind {
		case KindDocument:
			out[i] = DocumentValue(setSegments(el.doc, segments, v))
		case KindArray:
			out[i] = setInArray(el, segments, v)
		default:
			out[i] = el
		}
	}
	return Array(out...)
}

// RemovePath returns a copy of d without the dotted path, removing it from
// every document element of the arrays the path crosses.
func (d *Document) RemovePath(path string) *Document {
	return setSegments(d, SplitPath(path), Missing())
}

// LookupField resolves a dotted path through documents only. Unlike Lookup
// it does not broadcast over arrays: a path that crosses an array, or a
// field that does not exist, is Missing.
func (d *Document) LookupField(path string) Value {
	v := DocumentValue(d)
	for _, seg := range SplitPath(path) {
		if v.kind != KindDocument {
			return Missing()
		}
		v = v.doc.Get(seg)
	}
	return v
}

// Include returns a document holding only the dotted path of d, keeping the
// structure around it. Through an array the remaining path is applied to
// every element: document elements keep only the path (and are empty when
// it is absent), nested arrays recurse and other elements are dropped.
// Returns nil when the path is absent.
func (d *Document) Include(path string) *Document {
	return include(DocumentValue(d), SplitPath(path)).DocumentValue()
}

func include(v Value, segments []string) Value {
	if len(segments) == 0 {
		return v
	}
	switch v.kind {
	case KindDocument:
		child := v.doc.Get(segments[0])
		if child.IsMissing() {
			return Missing()
		}
		r := include(child, segments[1:])
		if r.IsMissing() {
			return Missing()
		}
		return DocumentValue(Doc(Field{Name: segments[0], Value: r}))
	case KindArray:
		out := make([]Value, 0, len(v.arr))
		for _, el := range v.arr {
			switch el.kind {
			case KindDocument:
				r := include(el, segments)
				if r.IsMissing() {
					r = DocumentValue(New(0))
				}
				out = append(out, r)
			case KindArray:
				out = append(out, include(el, segments))
			}
		}
		return Array(out...)
	default:
		return Missing()
	}
}

// MergePaths returns a copy of d with the fields of other added. A field
// present in both is merged recursively when both values are documents,
// element by element when both are arrays of the same length, and replaced
// by other's value otherwise. It combines the results of Include.
func (d *Document) MergePaths(other *Document) *Document {
	out := d.Clone()
	for _, f := range other.Fields() {
		out.Set(f.Name, mergeValues(out.Get(f.Name), f.Value))
	}
	return out
}

func mergeValues(a, b Value) Value {
	switch {
	case a.kind == KindDocument && b.kind == KindDocument:
		return DocumentValue(a.doc.MergePaths(b.doc))
	case a.kind == KindArray && b.kind == KindArray && len(a.arr) == len(b.arr):
		out := make([]Value, len(a.arr))
		for i := range a.arr {
			out[i] = mergeValues(a.arr[i], b.arr[i])
		}
		return Array(out...)
	default:
		return b
	}
}
