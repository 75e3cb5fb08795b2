package aggregate

import (
	"context"
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
)

// unwindStage emits one document per element of an array field.
type unwindStage struct {
	path       string
	preserve   bool
	indexField string
}

func parseUnwind(arg document.Value, _ int) (stage, error) {
	const kind = "$unwind"
	s := &unwindStage{}
	switch arg.Kind() {
	case document.KindString:
		ref, err := expression.ParsePath(kind, arg.StringValue())
		if err != nil {
			return nil, err
		}
		s.path = ref.Path
	case document.KindDocument:
		d := arg.DocumentValue()
		if err := checkKnownFields(kind, d, "path", "preserveNullAndEmptyArrays", "includeArrayIndex"); err != nil {
			return nil, err
		}
		p, err := stringOption(kind, d, "path", true)
		if err != nil {
			return nil, err
		}
		ref, err := expression.ParsePath(kind, p)
		if err != nil {
			return nil, err
		}
		s.path = ref.Path
		if v := d.Get("preserveNullAndEmptyArrays"); !v.IsMissing() {
			if v.Kind() != document.KindBool {
				return nil, errors.InvalidExpression(kind, "'preserveNullAndEmptyArrays' must be a boolean")
			}
			s.preserve = v.BoolValue()
		}
		if s.indexField, err = stringOption(kind, d, "includeArrayIndex", false); err != nil {
			return nil, err
		}
		if strings.HasPrefix(s.indexField, "$") {
			return nil, errors.InvalidExpression(kind, "'includeArrayIndex' must be a field name")
		}
	default:
		return nil, errors.InvalidExpression(kind, "expects a '$path' string or an object with 'path'")
	}
	return s, nil
}

// A non-empty array yields one copy per element, in element order, with the
// field replaced by the element. Missing, null and empty arrays are dropped,
// or kept once with the field set to null when preserving. Any other value
// passes through as a single-element array would; so does a path that
// crosses an array, which is not unwound.
func (s *unwindStage) apply(env *runEnv, in docStream) docStream {
	return env.perDocument(in, func(_ context.Context, d *document.Document) ([]*document.Document, error) {
		v := d.LookupField(s.path)
		if v.IsMissing() && !d.Lookup(s.path).IsMissing() {
			return one(s.withIndex(d, document.Null())), nil
		}
		switch {
		case v.IsArray() && len(v.ArrayValue()) > 0:
			elems := v.ArrayValue()
			out := make([]*document.Document, len(elems))
			for i, el := range elems {
				out[i] = s.withIndex(d.SetPath(s.path, el), document.Int(int64(i)))
			}
			return out, nil
		case v.IsNullish() || v.IsArray():
			if !s.preserve {
				return nil, nil
			}
			return one(s.withIndex(d.SetPath(s.path, document.Null()), document.Null())), nil
		default:
			if s.indexField == "" {
				return one(d), nil
			}
			return one(s.withIndex(d, document.Null())), nil
		}
	})
}

func (s *unwindStage) withIndex(d *document.Document, idx document.Value) *document.Document {
	if s.indexField == "" {
		return d
	}
	return d.SetPath(s.indexField, idx)
}
