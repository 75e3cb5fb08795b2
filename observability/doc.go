// Package observability carries viewkit's OpenTelemetry wiring: OTLP
// trace and metric export, the run and stage spans the engine emits,
// the engine's metric instruments, and backend health reports.
//
// Export is opt-in. The CLI enables it from the telemetry config section:
//
//	tp, err := observability.InitTracer(ctx, cfg.TracerConfig())
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, cfg.MeterConfig())
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(mp.Meter("viewkit"))
//
// A pipeline run opens a pipeline.run span with one pipeline.stage child
// per stage; RunContext ties the span to the run metrics:
//
//	rc := observability.NewRunContext("claims_view", runID, metrics)
//	ctx, span := rc.StartRun(ctx)
//	defer rc.EndRun(ctx, span, n, code, err)
package observability
