package aggregate

import (
	"context"

	"github.com/kbukum/viewkit/errors"
)

// Frame describes the nesting of the run in progress: how many runs enclose
// it and which views are being read, outermost first. Frames are immutable.
type Frame struct {
	Depth int
	Views []string
}

type frameKey struct{}

// FrameFromContext returns the current frame; the zero frame at top level.
func FrameFromContext(ctx context.Context) *Frame {
	if f, ok := ctx.Value(frameKey{}).(*Frame); ok {
		return f
	}
	return &Frame{}
}

// ContextWithFrame attaches f to ctx.
func ContextWithFrame(ctx context.Context, f *Frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// EnterView returns a context for reading the named view. It fails when the
// view is already being read further up the chain or when the nesting limit
// would be exceeded.
func EnterView(ctx context.Context, name string, maxDepth int) (context.Context, error) {
	f := FrameFromContext(ctx)
	for _, v := range f.Views {
		if v == name {
			return ctx, errors.CyclicViewReference(name, f.Views)
		}
	}
	if maxDepth > 0 && f.Depth >= maxDepth {
		return ctx, errors.DepthExceeded(name, maxDepth)
	}
	views := make([]string, len(f.Views), len(f.Views)+1)
	copy(views, f.Views)
	return ContextWithFrame(ctx, &Frame{Depth: f.Depth + 1, Views: append(views, name)}), nil
}

// enterNested returns a context one level deeper for a correlated sub-pipeline.
func enterNested(ctx context.Context, what string, maxDepth int) (context.Context, error) {
	f := FrameFromContext(ctx)
	if maxDepth > 0 && f.Depth >= maxDepth {
		return ctx, errors.DepthExceeded(what, maxDepth)
	}
	return ContextWithFrame(ctx, &Frame{Depth: f.Depth + 1, Views: f.Views}), nil
}
