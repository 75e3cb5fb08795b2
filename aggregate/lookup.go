package aggregate

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
	"github.com/kbukum/viewkit/stream"
)

// lookupStage joins each input document with documents of a foreign
// collection and stores them as an array under as.
//
// With localField/foreignField it is an equi-join. With pipeline the matched
// (or, without localField, all) foreign documents are fed through a
// sub-pipeline that sees the let variables evaluated against the input
// document.
type lookupStage struct {
	from         string
	localField   string
	foreignField string
	lets         []expression.NamedExpr
	pipeline     []compiledStage
	correlated   bool
	as           string
}

func parseLookup(arg document.Value, _ int) (stage, error) {
	const kind = "$lookup"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if err := checkKnownFields(kind, d, "from", "localField", "foreignField", "let", "pipeline", "as"); err != nil {
		return nil, err
	}
	s := &lookupStage{}

	if s.as, err = stringOption(kind, d, "as", true); err != nil {
		return nil, err
	}
	if strings.HasPrefix(s.as, "$") {
		return nil, errors.InvalidExpression(kind, "'as' must be a field name, not a path expression")
	}
	if s.from, err = stringOption(kind, d, "from", false); err != nil {
		return nil, err
	}
	if s.localField, err = stringOption(kind, d, "localField", false); err != nil {
		return nil, err
	}
	if s.foreignField, err = stringOption(kind, d, "foreignField", false); err != nil {
		return nil, err
	}
	switch {
	case s.localField != "" && s.foreignField == "":
		return nil, errors.MissingRequiredField(kind, "foreignField")
	case s.foreignField != "" && s.localField == "":
		return nil, errors.MissingRequiredField(kind, "localField")
	}

	if p := d.Get("pipeline"); !p.IsMissing() {
		if s.pipeline, err = compileSubPipeline(kind, p); err != nil {
			return nil, err
		}
		s.correlated = true
	}
	if lets := d.Get("let"); !lets.IsMissing() {
		if !s.correlated {
			return nil, errors.MissingRequiredField(kind, "pipeline")
		}
		ld := lets.DocumentValue()
		if ld == nil {
			return nil, errors.InvalidExpression(kind, "'let' must be an object")
		}
		for _, f := range ld.Fields() {
			if err := expression.ValidateVariableName(f.Name); err != nil {
				return nil, err
			}
			e, err := expression.Parse(f.Value)
			if err != nil {
				return nil, err
			}
			s.lets = append(s.lets, expression.NamedExpr{Name: f.Name, Expr: e})
		}
	}

	if !s.correlated && s.localField == "" {
		return nil, errors.MissingRequiredField(kind, "localField")
	}
	if s.from == "" && !(s.correlated && startsWithDocuments(s.pipeline)) {
		return nil, errors.MissingRequiredField(kind, "from")
	}
	return s, nil
}

func startsWithDocuments(stages []compiledStage) bool {
	return len(stages) > 0 && stages[0].kind == "$documents"
}

// The foreign side is loaded once per stage invocation, on the first input
// document, and shared read-only by every worker afterwards.
func (s *lookupStage) apply(env *runEnv, in docStream) docStream {
	return stream.FromFunc(func(ctx context.Context) stream.Iterator[*document.Document] {
		st := &lookupState{stage: s, env: env}
		return env.perDocument(in, st.join).Iter(ctx)
	})
}

type lookupState struct {
	stage *lookupStage
	env   *runEnv

	once sync.Once
	err  error
	// indexed is set when the foreign collection indexes foreignField;
	// otherwise docs holds the foreign documents and index, for equi-joins,
	// maps foreignField keys to positions in docs.
	indexed collection.Indexed
	docs    []*document.Document
	index   *collection.HashIndex
}

func (st *lookupState) load(ctx context.Context) error {
	st.once.Do(func() { st.err = st.loadForeign(ctx) })
	return st.err
}

func (st *lookupState) loadForeign(ctx context.Context) error {
	s := st.stage
	if s.from == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}
	coll, err := st.env.resolver.Get(ctx, s.from)
	if err != nil {
		return err
	}
	if s.foreignField != "" {
		if ix, ok := coll.(collection.Indexed); ok && ix.HasIndex(s.foreignField) {
			st.indexed = ix
			return nil
		}
	}
	docs, err := stream.Collect(ctx, collection.Stream(coll))
	if err != nil {
		return readError(s.from, err)
	}
	st.docs = docs
	if s.foreignField != "" {
		st.index = collection.NewHashIndex()
		for pos, d := range docs {
			st.index.Add(d.Lookup(s.foreignField), pos)
		}
	}
	return nil
}

func (st *lookupState) join(ctx context.Context, d *document.Document) ([]*document.Document, error) {
	if err := st.load(ctx); err != nil {
		return nil, err
	}
	s := st.stage
	var matched []*document.Document
	if s.localField != "" {
		var err error
		if matched, err = st.equalMatches(ctx, d.Lookup(s.localField)); err != nil {
			return nil, err
		}
	} else {
		matched = st.docs
	}
	if s.correlated {
		var err error
		if matched, err = st.runSubPipeline(ctx, d, matched); err != nil {
			return nil, err
		}
	}
	vals := make([]document.Value, len(matched))
	for i, m := range matched {
		vals[i] = document.DocumentValue(m)
	}
	return one(d.SetPath(s.as, document.Array(vals...))), nil
}

// equalMatches returns, in foreign collection order and at most once each,
// the foreign documents matching a local value. A missing local value
// matches nothing and null matches only null, unlike $match; an array
// matches on any element or on the whole array.
func (st *lookupState) equalMatches(ctx context.Context, local document.Value) ([]*document.Document, error) {
	keys := collection.IndexKeys(local)
	if len(keys) == 0 {
		return nil, nil
	}
	if st.indexed != nil {
		if err := ctx.Err(); err != nil {
			return nil, errors.Cancelled(err)
		}
		docs, err := st.indexed.FindEqual(ctx, st.stage.foreignField, keys...)
		if err != nil {
			return nil, readError(st.stage.from, err)
		}
		return docs, nil
	}
	positions := st.index.FindAny(keys...)
	out := make([]*document.Document, len(positions))
	for i, p := range positions {
		out[i] = st.docs[p]
	}
	return out, nil
}

func (st *lookupState) runSubPipeline(ctx context.Context, d *document.Document, source []*document.Document) ([]*document.Document, error) {
	env := st.env
	vars := env.vars
	for _, l := range st.stage.lets {
		v, err := env.eval(l.Expr, d)
		if err != nil {
			return nil, err
		}
		vars = vars.With(l.Name, v)
	}
	nested, err := enterNested(ctx, "$lookup", env.opts.maxDepth)
	if err != nil {
		return nil, err
	}
	sub := buildStages(env.withVars(vars), st.stage.pipeline, stream.FromSlice(source), false)
	return stream.Collect(nested, sub)
}

// readError classifies an error returned while reading a collection.
func readError(name string, err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Cancelled(err)
	}
	return errors.Storage(name, err)
}

// stringOption reads an optional or required non-empty string field.
func stringOption(kind string, d *document.Document, name string, required bool) (string, error) {
	v := d.Get(name)
	if v.IsMissing() {
		if required {
			return "", errors.MissingRequiredField(kind, name)
		}
		return "", nil
	}
	if v.Kind() != document.KindString || v.StringValue() == "" {
		return "", errors.InvalidExpression(kind, "'"+name+"' must be a non-empty string")
	}
	return v.StringValue(), nil
}
