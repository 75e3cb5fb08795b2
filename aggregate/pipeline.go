package aggregate

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
	"github.com/kbukum/viewkit/stream"
)

// Pipeline is a compiled, immutable sequence of stages. A Pipeline may be
// run any number of times, concurrently.
type Pipeline struct {
	stages []compiledStage
	opts   *options
}

// StageInfo describes one compiled stage.
type StageInfo struct {
	Index      int
	Kind       string
	Definition document.Value
}

// Compile validates and compiles stage definitions. Every definition must
// be a document with exactly one field naming the stage kind.
func Compile(defs []document.Value, opts ...Option) (*Pipeline, error) {
	o := newOptions(opts)
	var key document.Value
	if o.cache != nil {
		key = document.Array(defs...)
		if stages, ok := o.cache.get(key); ok {
			return &Pipeline{stages: stages, opts: o}, nil
		}
	}
	stages, err := compileStages(defs)
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.put(key, stages)
	}
	return &Pipeline{stages: stages, opts: o}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// static pipelines.
func MustCompile(defs []document.Value, opts ...Option) *Pipeline {
	p, err := Compile(defs, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseStages decodes a JSON or YAML array of stage definitions.
func ParseStages(data []byte) ([]document.Value, error) {
	v, err := document.Parse(data)
	if err != nil {
		return nil, errors.InvalidExpression("", "pipeline: "+err.Error())
	}
	if !v.IsArray() {
		return nil, errors.InvalidExpression("", "pipeline must be an array of stages")
	}
	return v.ArrayValue(), nil
}

// Name returns the label given with WithName.
func (p *Pipeline) Name() string { return p.opts.name }

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Stages describes the compiled stages in order.
func (p *Pipeline) Stages() []StageInfo {
	out := make([]StageInfo, len(p.stages))
	for i, cs := range p.stages {
		out[i] = StageInfo{Index: cs.index, Kind: cs.kind, Definition: cs.def}
	}
	return out
}

// Definitions returns the stage definitions the pipeline was compiled from.
func (p *Pipeline) Definitions() []document.Value {
	out := make([]document.Value, len(p.stages))
	for i, cs := range p.stages {
		out[i] = document.DocumentValue(document.Doc(document.Field{Name: cs.kind, Value: cs.def}))
	}
	return out
}

// Run executes the pipeline over source and returns the lazily produced
// output. Nothing is read until the first call to Next; the caller must
// Close the iterator. A nil source yields no input documents, which is
// useful for pipelines starting with $documents. Foreign collections named
// by $lookup are resolved through resolver.
func (p *Pipeline) Run(ctx context.Context, source collection.Collection, resolver collection.Resolver) stream.Iterator[*document.Document] {
	return p.RunWith(ctx, source, resolver, nil)
}

// RunWith is like Run with variables bound for every expression.
func (p *Pipeline) RunWith(ctx context.Context, source collection.Collection, resolver collection.Resolver, vars *expression.Bindings) stream.Iterator[*document.Document] {
	if resolver == nil {
		resolver = noResolver
	}
	env := &runEnv{resolver: resolver, vars: vars, opts: p.opts, runID: uuid.NewString()}
	return runObserved(ctx, env, buildStages(env, p.stages, sourceStream(source), true))
}

// Collect runs p and gathers its whole output. On error no documents are
// returned.
func Collect(ctx context.Context, p *Pipeline, source collection.Collection, resolver collection.Resolver) ([]*document.Document, error) {
	docs, err := stream.CollectIter(ctx, p.Run(ctx, source, resolver))
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// upstreamError marks an error read from a stage's input.
type upstreamError struct{ err error }

func (e upstreamError) Error() string { return e.err.Error() }
func (e upstreamError) Unwrap() error { return e.err }

var noResolver = collection.ResolverFunc(func(_ context.Context, name string) (collection.Collection, error) {
	return nil, errors.UnknownCollection(name)
})

func sourceStream(source collection.Collection) docStream {
	if source == nil {
		return stream.FromSlice[*document.Document](nil)
	}
	name := source.Name()
	return stream.MapErr(collection.Stream(source), func(err error) error {
		return readError(name, err)
	})
}

// buildStages chains stages onto src. Each stage checks for cancellation
// before pulling from its predecessor, and errors are tagged with the
// index and kind of the stage that raised them. Errors a stage merely
// passes on from its predecessor keep their tag.
func buildStages(env *runEnv, stages []compiledStage, src docStream, observe bool) docStream {
	s := src
	for _, cs := range stages {
		in := stream.MapErr(s, func(err error) error { return upstreamError{err} })
		s = cs.impl.apply(env, stream.Guard(in))
		s = stream.MapErr(s, func(err error) error {
			var up upstreamError
			if stderrors.As(err, &up) {
				return up.err
			}
			return errors.AtStage(err, cs.index, cs.kind)
		})
		if observe {
			s = observeStage(env, cs, s)
		}
	}
	return s
}
