package aggregate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/stream"
)

// observedIter counts the documents pulled through it and reports once,
// when the source is exhausted, fails or is closed.
type observedIter struct {
	source stream.Iterator[*document.Document]
	docs   int64
	done   bool
	report func(docs int64, err error)
}

func (it *observedIter) Next(ctx context.Context) (*document.Document, bool, error) {
	d, ok, err := it.source.Next(ctx)
	switch {
	case err != nil:
		it.finish(err)
	case !ok:
		it.finish(nil)
	default:
		it.docs++
	}
	return d, ok, err
}

func (it *observedIter) Close() error {
	err := it.source.Close()
	it.finish(nil)
	return err
}

func (it *observedIter) finish(err error) {
	if it.done {
		return
	}
	it.done = true
	it.report(it.docs, err)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// observeStage decorates a stage output with debug logging, a span and
// stage metrics, depending on which are enabled.
func observeStage(env *runEnv, cs compiledStage, s docStream) docStream {
	o := env.opts
	if o.log == nil && o.metrics == nil && !o.tracing {
		return s
	}
	return stream.FromFunc(func(ctx context.Context) stream.Iterator[*document.Document] {
		start := time.Now()
		var span trace.Span
		if o.tracing {
			ctx, span = observability.StartSpan(ctx, observability.SpanStage)
			span.SetAttributes(
				attribute.String(observability.AttrRunID, env.runID),
				attribute.Int(observability.AttrStageIndex, cs.index),
				attribute.String(observability.AttrStageKind, cs.kind),
			)
		}
		return &observedIter{
			source: s.Iter(ctx),
			report: func(docs int64, err error) {
				d := time.Since(start)
				if span != nil {
					span.SetAttributes(attribute.Int64(observability.AttrDocuments, docs))
					if err != nil {
						span.RecordError(err)
						span.SetAttributes(attribute.String(observability.AttrErrorCode, string(errors.CodeOf(err))))
					}
					span.End()
				}
				if o.metrics != nil {
					o.metrics.RecordStage(ctx, cs.kind, statusOf(err), docs, d)
				}
				if o.log != nil {
					o.log.Debug("stage finished", logger.Fields(
						logger.FieldRunID, env.runID,
						logger.FieldStage, cs.index,
						logger.FieldStageKind, cs.kind,
						logger.FieldDocuments, docs,
						logger.FieldDuration, d.Milliseconds(),
						logger.FieldStatus, statusOf(err),
					))
				}
			},
		}
	})
}

// runObserved returns the run iteration, wrapping it with the run span,
// run metrics and an info log line when the run ends. The stage chain is
// built on the first pull.
func runObserved(ctx context.Context, env *runEnv, s docStream) stream.Iterator[*document.Document] {
	o := env.opts
	if o.log == nil && o.metrics == nil && !o.tracing {
		return stream.Lazy(ctx, s)
	}
	rc := observability.NewRunContext(o.name, env.runID, o.metrics)
	ctx = observability.WithRunContext(ctx, rc)
	var span trace.Span
	if o.tracing || o.metrics != nil {
		ctx, span = rc.StartRun(ctx)
	}
	return &observedIter{
		source: stream.Lazy(ctx, s),
		report: func(docs int64, err error) {
			code := string(errors.CodeOf(err))
			if span != nil {
				rc.EndRun(ctx, span, docs, code, err)
			}
			if o.log == nil {
				return
			}
			log := o.log.WithContext(ctx)
			fields := logger.Fields(
				logger.FieldView, o.name,
				logger.FieldRunID, env.runID,
				logger.FieldDocuments, docs,
				logger.FieldDuration, rc.Duration().Milliseconds(),
			)
			if err != nil {
				fields[logger.FieldErrorCode] = code
				log.Error("pipeline run failed", logger.MergeWithError(fields, err))
				return
			}
			log.Info("pipeline run completed", fields)
		},
	}
}
