package view

import (
	"context"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/stream"
)

// View is a virtual, read-only collection: every Scan runs the pipeline
// over a fresh read of the source.
type View struct {
	name     string
	source   string
	pipeline *aggregate.Pipeline
	registry *Registry
}

var _ collection.Collection = (*View)(nil)

func (v *View) Name() string { return v.name }

// Source returns the name of the collection or view the pipeline reads.
func (v *View) Source() string { return v.source }

// Pipeline returns the compiled pipeline.
func (v *View) Pipeline() *aggregate.Pipeline { return v.pipeline }

// Scan runs the view. The view is entered into the run frame before its
// source is resolved, so a view that reaches itself fails here.
func (v *View) Scan(ctx context.Context) (stream.Iterator[*document.Document], error) {
	r := v.registry
	framed, err := aggregate.EnterView(ctx, v.name, r.maxDepth)
	if err != nil {
		return nil, err
	}
	src, err := r.Get(framed, v.source)
	if err != nil {
		return nil, err
	}
	it := v.pipeline.Run(framed, src, r)
	return &framedIter{source: it, frame: aggregate.FrameFromContext(framed)}, nil
}

// framedIter re-attaches the view's frame to the caller's context on every
// pull, so that nested reads see the chain of views while cancellation
// still follows the caller.
type framedIter struct {
	source stream.Iterator[*document.Document]
	frame  *aggregate.Frame
}

func (it *framedIter) Next(ctx context.Context) (*document.Document, bool, error) {
	return it.source.Next(aggregate.ContextWithFrame(ctx, it.frame))
}

func (it *framedIter) Close() error { return it.source.Close() }
