package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability context for one pipeline run.
type RunContext struct {
	View      string
	RunID     string
	StartTime time.Time
	Metrics   *Metrics
}

// NewRunContext creates a run context.
// If metrics is nil, metric recording is silently skipped.
func NewRunContext(view, runID string, metrics *Metrics) *RunContext {
	return &RunContext{
		View:      view,
		RunID:     runID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartRun starts the run span and records the run start metric.
func (rc *RunContext) StartRun(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanPipelineRun)
	span.SetAttributes(
		attribute.String(AttrView, rc.View),
		attribute.String(AttrRunID, rc.RunID),
	)
	if rc.Metrics != nil {
		rc.Metrics.RecordRunStart(ctx)
	}
	return ctx, span
}

// EndRun ends the span and records run-end metrics.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, documents int64, code string, err error) {
	duration := time.Since(rc.StartTime)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetAttributes(
			attribute.String(AttrErrorMessage, err.Error()),
			attribute.String(AttrErrorCode, code),
		)
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDocuments, documents),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordRunEnd(ctx, rc.View, status, duration)
		if err != nil {
			rc.Metrics.RecordError(ctx, code, "pipeline")
		}
	}
}

// Duration returns the elapsed time since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
