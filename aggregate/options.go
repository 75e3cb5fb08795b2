package aggregate

import (
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
)

// DefaultMaxDepth bounds nested runs when no limit is configured.
const DefaultMaxDepth = 16

type options struct {
	name     string
	maxDepth int
	workers  int
	log      *logger.Logger
	metrics  *observability.Metrics
	tracing  bool
	cache    *CompileCache
}

// Option configures compilation and execution.
type Option func(*options)

// WithName labels runs in logs, spans and metrics, usually with the view name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMaxDepth bounds the nesting of correlated sub-pipelines and views.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithWorkers sets the number of workers used by per-document stages and
// by $group partial tables. One means sequential execution.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger enables run and stage logging.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records run and stage metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracing creates a span per run and per stage.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracing = enabled }
}

// WithCache reuses compiled stages for identical definitions.
func WithCache(c *CompileCache) Option {
	return func(o *options) { o.cache = c }
}

func newOptions(opts []Option) *options {
	o := &options{maxDepth: DefaultMaxDepth, workers: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
