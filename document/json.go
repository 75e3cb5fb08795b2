package document

import (
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
	yaml "go.yaml.in/yaml/v3"
)

// MarshalJSON encodes v as JSON, preserving document field order.
// Missing and non-finite numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return appendJSON(make([]byte, 0, 64), v)
}

// MarshalJSON encodes d as a JSON object, preserving field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return appendJSON(make([]byte, 0, 64), DocumentValue(d))
}

// UnmarshalJSON decodes JSON into d, preserving field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}
	d.fields = parsed.fields
	return nil
}

func appendJSON(buf []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindMissing, KindNull:
		return append(buf, "null"...), nil
	case KindBool:
		return strconv.AppendBool(buf, v.b), nil
	case KindNumber:
		return appendNumber(buf, v.n), nil
	case KindString:
		s, err := json.Marshal(v.s)
		if err != nil {
			return nil, err
		}
		return append(buf, s...), nil
	case KindArray:
		buf = append(buf, '[')
		var err error
		for i, e := range v.arr {
			if i > 0 {
				buf = append(buf, ',')
			}
			if buf, err = appendJSON(buf, e); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case KindDocument:
		buf = append(buf, '{')
		for i, f := range v.doc.Fields() {
			if i > 0 {
				buf = append(buf, ',')
			}
			name, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			buf = append(buf, name...)
			buf = append(buf, ':')
			if buf, err = appendJSON(buf, f.Value); err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	}
	return nil, fmt.Errorf("document: cannot encode kind %s", v.kind)
}

func appendNumber(buf []byte, n float64) []byte {
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return append(buf, "null"...)
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		return strconv.AppendInt(buf, int64(n), 10)
	default:
		return strconv.AppendFloat(buf, n, 'g', -1, 64)
	}
}

// Parse decodes JSON or YAML text into a Value, preserving mapping order.
func Parse(data []byte) (Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Missing(), fmt.Errorf("document: parse: %w", err)
	}
	if root.Kind == 0 {
		return Null(), nil
	}
	return FromYAMLNode(&root)
}

// ParseDocument decodes a single JSON or YAML mapping.
func ParseDocument(data []byte) (*Document, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if !v.IsDocument() {
		return nil, fmt.Errorf("document: expected an object, got %s", v.Kind())
	}
	return v.DocumentValue(), nil
}

// ParseDocuments decodes a JSON or YAML sequence of mappings.
func ParseDocuments(data []byte) ([]*Document, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("document: expected an array, got %s", v.Kind())
	}
	out := make([]*Document, 0, len(v.arr))
	for i, e := range v.arr {
		if !e.IsDocument() {
			return nil, fmt.Errorf("document: element %d is %s, not an object", i, e.Kind())
		}
		out = append(out, e.doc)
	}
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(text string) Value {
	v, err := Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return v
}

// MustParseDocument is like ParseDocument but panics on error.
func MustParseDocument(text string) *Document {
	d, err := ParseDocument([]byte(text))
	if err != nil {
		panic(err)
	}
	return d
}
