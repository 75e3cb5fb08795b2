package view

import (
	"context"
	"sync"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/stream"
)

// Registry holds view definitions on top of a base resolver of raw
// collections. It is itself a collection.Resolver and is safe for
// concurrent use.
type Registry struct {
	base     collection.Resolver
	maxDepth int
	pipeOpts []aggregate.Option
	log      *logger.Logger

	mu    sync.RWMutex
	views map[string]*View
	order []string
}

var _ collection.Resolver = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithMaxDepth bounds how deeply views and correlated sub-pipelines nest.
func WithMaxDepth(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithPipelineOptions applies opts when compiling every view pipeline.
func WithPipelineOptions(opts ...aggregate.Option) Option {
	return func(r *Registry) { r.pipeOpts = append(r.pipeOpts, opts...) }
}

// WithLogger logs view definitions.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry over base.
func NewRegistry(base collection.Resolver, opts ...Option) *Registry {
	r := &Registry{
		base:     base,
		maxDepth: aggregate.DefaultMaxDepth,
		views:    make(map[string]*View),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	return r
}

// DefineView compiles stages and registers them as the view name over
// source. The source is resolved when the view is read, so it may be a
// collection or view that does not exist yet.
func (r *Registry) DefineView(name, source string, stages []document.Value) (*View, error) {
	if name == "" {
		return nil, errors.InvalidDefinition(name, "view name must not be empty")
	}
	if source == "" {
		return nil, errors.InvalidDefinition(name, "view source must not be empty")
	}
	opts := make([]aggregate.Option, 0, len(r.pipeOpts)+2)
	opts = append(opts, r.pipeOpts...)
	opts = append(opts, aggregate.WithName(name), aggregate.WithMaxDepth(r.maxDepth))
	p, err := aggregate.Compile(stages, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.views[name]; exists {
		return nil, errors.InvalidDefinition(name, "view is already defined")
	}
	v := &View{name: name, source: source, pipeline: p, registry: r}
	r.views[name] = v
	r.order = append(r.order, name)
	r.log.Debug("view defined", logger.Fields(
		logger.FieldView, name,
		logger.FieldCollection, source,
		"stages", p.Len(),
	))
	return v, nil
}

// DropView removes a view definition. It reports whether the view existed.
func (r *Registry) DropView(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[name]; !ok {
		return false
	}
	delete(r.views, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// View returns the named view definition.
func (r *Registry) View(name string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	return v, ok
}

// Names returns the defined views in definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Get resolves name to a view, or to a collection of the base resolver.
func (r *Registry) Get(ctx context.Context, name string) (collection.Collection, error) {
	if v, ok := r.View(name); ok {
		return v, nil
	}
	if r.base == nil {
		return nil, errors.UnknownCollection(name)
	}
	return r.base.Get(ctx, name)
}

// Read opens the named view or collection.
func (r *Registry) Read(ctx context.Context, name string) (stream.Iterator[*document.Document], error) {
	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Scan(ctx)
}

// Collect reads the whole named view or collection.
func (r *Registry) Collect(ctx context.Context, name string) ([]*document.Document, error) {
	it, err := r.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	docs, err := stream.CollectIter(ctx, it)
	if err != nil {
		return nil, err
	}
	return docs, nil
}
