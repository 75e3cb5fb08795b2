package aggregate

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/stream"
)

type facetBranch struct {
	name   string
	stages []compiledStage
}

// facetStage runs several sub-pipelines over the same materialized input
// and emits one document with an array field per branch.
type facetStage struct {
	branches []facetBranch
}

func parseFacet(arg document.Value, _ int) (stage, error) {
	const kind = "$facet"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, errors.InvalidExpression(kind, "stage document must have at least one branch")
	}
	s := &facetStage{}
	for _, f := range d.Fields() {
		if f.Name == "" || strings.HasPrefix(f.Name, "$") || strings.Contains(f.Name, ".") {
			return nil, errors.InvalidExpression(kind, "invalid branch name '"+f.Name+"'")
		}
		stages, err := compileSubPipeline(kind, f.Value)
		if err != nil {
			return nil, err
		}
		for _, cs := range stages {
			if cs.kind == "$facet" || cs.kind == "$documents" {
				return nil, errors.InvalidExpression(kind, cs.kind+" is not allowed inside a facet branch")
			}
		}
		s.branches = append(s.branches, facetBranch{name: f.Name, stages: stages})
	}
	return s, nil
}

func (s *facetStage) apply(env *runEnv, in docStream) docStream {
	return stream.Deferred(in, func(ctx context.Context, it stream.Iterator[*document.Document]) ([]*document.Document, error) {
		docs, err := stream.CollectIter(ctx, it)
		if err != nil {
			return nil, err
		}
		sub := env.withVars(env.vars)
		results := make([][]*document.Document, len(s.branches))
		g, gctx := errgroup.WithContext(ctx)
		if env.opts.workers > 1 {
			g.SetLimit(env.opts.workers)
		}
		for i, b := range s.branches {
			g.Go(func() error {
				out, err := stream.Collect(gctx, buildStages(sub, b.stages, stream.FromSlice(docs), false))
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		out := document.New(len(s.branches))
		for i, b := range s.branches {
			vals := make([]document.Value, len(results[i]))
			for j, d := range results[i] {
				vals[j] = document.DocumentValue(d)
			}
			out.Set(b.name, document.Array(vals...))
		}
		return one(out), nil
	})
}
