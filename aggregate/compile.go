package aggregate

import (
	"context"
	"sort"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
	"github.com/kbukum/viewkit/stream"
)

type docStream = *stream.Stream[*document.Document]

// stage is one compiled pipeline step. apply wires the step onto its input
// stream; no work happens until the result is pulled.
type stage interface {
	apply(env *runEnv, in docStream) docStream
}

type compiledStage struct {
	index int
	kind  string
	def   document.Value
	impl  stage
}

// stageParser compiles the argument of a stage. index is the stage position.
type stageParser func(arg document.Value, index int) (stage, error)

var stageParsers = make(map[string]stageParser)

func registerStage(kind string, p stageParser) {
	stageParsers[kind] = p
}

func init() {
	registerStage("$match", parseMatch)
	registerStage("$lookup", parseLookup)
	registerStage("$unwind", parseUnwind)
	registerStage("$group", parseGroup)
	registerStage("$project", parseProject)
	registerStage("$addFields", parseAddFields)
	registerStage("$set", parseAddFields)
	registerStage("$replaceRoot", parseReplaceRoot)
	registerStage("$replaceWith", parseReplaceWith)
	registerStage("$sort", parseSort)
	registerStage("$limit", parseLimit)
	registerStage("$skip", parseSkip)
	registerStage("$count", parseCount)
	registerStage("$facet", parseFacet)
	registerStage("$documents", parseDocuments)
}

// StageKinds returns the supported stage operators.
func StageKinds() []string {
	kinds := make([]string, 0, len(stageParsers))
	for k := range stageParsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func compileStages(defs []document.Value) ([]compiledStage, error) {
	out := make([]compiledStage, 0, len(defs))
	for i, def := range defs {
		d := def.DocumentValue()
		if d == nil || d.Len() != 1 {
			return nil, errors.AtStage(
				errors.InvalidExpression("", "a pipeline stage must be an object with exactly one field"), i, "")
		}
		f := d.Fields()[0]
		parse, ok := stageParsers[f.Name]
		if !ok {
			return nil, errors.AtStage(errors.UnknownStageKind(f.Name), i, f.Name)
		}
		impl, err := parse(f.Value, i)
		if err != nil {
			return nil, errors.AtStage(err, i, f.Name)
		}
		out = append(out, compiledStage{index: i, kind: f.Name, def: f.Value, impl: impl})
	}
	return out, nil
}

// compileSubPipeline compiles the stage array of $lookup or $facet.
func compileSubPipeline(op string, v document.Value) ([]compiledStage, error) {
	if !v.IsArray() {
		return nil, errors.InvalidExpression(op, "pipeline must be an array of stages")
	}
	return compileStages(v.ArrayValue())
}

// runEnv is the per-run state shared by every stage of one run.
type runEnv struct {
	resolver collection.Resolver
	vars     *expression.Bindings
	opts     *options
	runID    string
}

func (env *runEnv) eval(e expression.Expr, d *document.Document) (document.Value, error) {
	return expression.Evaluate(e, d, env.vars)
}

// withVars returns a copy of env for a nested run with different variables.
// Nested runs execute sequentially on the caller's worker.
func (env *runEnv) withVars(vars *expression.Bindings) *runEnv {
	c := *env
	c.vars = vars
	if env.opts.workers > 1 {
		o := *env.opts
		o.workers = 1
		c.opts = &o
	}
	return &c
}

// perDocument applies fn to every input document, on the worker pool when
// more than one worker is configured, and concatenates the outputs in input
// order. Errors are annotated with the offending document's _id.
func (env *runEnv) perDocument(in docStream, fn func(ctx context.Context, d *document.Document) ([]*document.Document, error)) docStream {
	tagged := func(ctx context.Context, d *document.Document) ([]*document.Document, error) {
		out, err := fn(ctx, d)
		if err != nil {
			return nil, errors.WithDocument(err, d.ID())
		}
		return out, nil
	}
	batches := stream.OrderedMap(in, env.opts.workers, tagged)
	return stream.FlatMap(batches, func(_ context.Context, ds []*document.Document) (stream.Iterator[*document.Document], error) {
		return stream.Slice(ds), nil
	})
}

func one(d *document.Document) []*document.Document { return []*document.Document{d} }

// stageObject requires the stage argument to be an object.
func stageObject(kind string, arg document.Value) (*document.Document, error) {
	d := arg.DocumentValue()
	if d == nil {
		return nil, errors.InvalidExpression(kind, "argument must be an object, got "+arg.Kind().String())
	}
	return d, nil
}

func checkKnownFields(kind string, d *document.Document, known ...string) error {
	for _, k := range d.Keys() {
		found := false
		for _, n := range known {
			if k == n {
				found = true
				break
			}
		}
		if !found {
			return errors.InvalidExpression(kind, "unrecognized option '"+k+"'")
		}
	}
	return nil
}
