package aggregate

import (
	"context"
	"sort"
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
	"github.com/kbukum/viewkit/stream"
)

type sortKey struct {
	path string
	desc bool
}

// sortStage orders its whole input by one or more keys. Equal documents
// keep their input order.
type sortStage struct {
	keys []sortKey
}

func parseSort(arg document.Value, _ int) (stage, error) {
	const kind = "$sort"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, errors.InvalidExpression(kind, "stage document must have at least one key")
	}
	s := &sortStage{}
	for _, f := range d.Fields() {
		if f.Name == "" || strings.HasPrefix(f.Name, "$") {
			return nil, errors.InvalidExpression(kind, "invalid sort key '"+f.Name+"'")
		}
		dir, ok := f.Value.IntValue()
		if !ok || (dir != 1 && dir != -1) {
			return nil, errors.InvalidExpression(kind, "sort direction for '"+f.Name+"' must be 1 or -1")
		}
		s.keys = append(s.keys, sortKey{path: f.Name, desc: dir < 0})
	}
	return s, nil
}

func (s *sortStage) apply(_ *runEnv, in docStream) docStream {
	return stream.Deferred(in, func(ctx context.Context, it stream.Iterator[*document.Document]) ([]*document.Document, error) {
		docs, err := stream.CollectIter(ctx, it)
		if err != nil {
			return nil, err
		}
		keys := make([][]document.Value, len(docs))
		for i, d := range docs {
			keys[i] = make([]document.Value, len(s.keys))
			for j, k := range s.keys {
				keys[i][j] = d.Lookup(k.path)
			}
		}
		order := make([]int, len(docs))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ka, kb := keys[order[a]], keys[order[b]]
			for j, k := range s.keys {
				c := document.Compare(ka[j], kb[j])
				if c == 0 {
					continue
				}
				if k.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		out := make([]*document.Document, len(docs))
		for i, p := range order {
			out[i] = docs[p]
		}
		return out, nil
	})
}

type limitStage struct{ n int64 }

func parseLimit(arg document.Value, _ int) (stage, error) {
	n, ok := arg.IntValue()
	if !ok || n <= 0 {
		return nil, errors.InvalidExpression("$limit", "argument must be a positive integer")
	}
	return &limitStage{n: n}, nil
}

func (s *limitStage) apply(_ *runEnv, in docStream) docStream { return stream.Limit(in, s.n) }

type skipStage struct{ n int64 }

func parseSkip(arg document.Value, _ int) (stage, error) {
	n, ok := arg.IntValue()
	if !ok || n < 0 {
		return nil, errors.InvalidExpression("$skip", "argument must be a non-negative integer")
	}
	return &skipStage{n: n}, nil
}

func (s *skipStage) apply(_ *runEnv, in docStream) docStream { return stream.Skip(in, s.n) }

// countStage emits a single document holding the number of inputs, or
// nothing when the input is empty.
type countStage struct{ field string }

func parseCount(arg document.Value, _ int) (stage, error) {
	const kind = "$count"
	if arg.Kind() != document.KindString {
		return nil, errors.InvalidExpression(kind, "argument must be a field name string")
	}
	name := arg.StringValue()
	switch {
	case name == "":
		return nil, errors.InvalidExpression(kind, "field name must be non-empty")
	case strings.HasPrefix(name, "$"):
		return nil, errors.InvalidExpression(kind, "field name must not start with '$'")
	case strings.Contains(name, "."):
		return nil, errors.InvalidExpression(kind, "field name must not contain '.'")
	case name == "_id":
		return nil, errors.InvalidExpression(kind, "field name must not be _id")
	}
	return &countStage{field: name}, nil
}

func (s *countStage) apply(_ *runEnv, in docStream) docStream {
	return stream.Deferred(in, func(ctx context.Context, it stream.Iterator[*document.Document]) ([]*document.Document, error) {
		var n int64
		for {
			_, ok, err := it.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			n++
		}
		if n == 0 {
			return nil, nil
		}
		return one(document.Doc(document.F(s.field, n))), nil
	})
}

// documentsStage replaces the (empty) input with literal documents. It is
// only valid as the first stage.
type documentsStage struct {
	docs expression.Expr
}

func parseDocuments(arg document.Value, index int) (stage, error) {
	const kind = "$documents"
	if index != 0 {
		return nil, errors.InvalidExpression(kind, "stage is only valid as the first stage of a pipeline")
	}
	e, err := expression.Parse(arg)
	if err != nil {
		return nil, err
	}
	return &documentsStage{docs: e}, nil
}

func (s *documentsStage) apply(env *runEnv, in docStream) docStream {
	return stream.FromOpen(func(ctx context.Context) (stream.Iterator[*document.Document], error) {
		// The input is never read but must be drained of errors and released.
		if _, err := stream.Collect(ctx, in); err != nil {
			return nil, err
		}
		v, err := env.eval(s.docs, document.New(0))
		if err != nil {
			return nil, err
		}
		if !v.IsArray() {
			return nil, errors.TypeMismatch("$documents", "array", v.Kind().String())
		}
		elems := v.ArrayValue()
		docs := make([]*document.Document, len(elems))
		for i, e := range elems {
			d := e.DocumentValue()
			if d == nil {
				return nil, errors.TypeMismatch("$documents", "object", e.Kind().String())
			}
			docs[i] = d
		}
		return stream.Slice(docs), nil
	})
}
