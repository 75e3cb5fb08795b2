// Package errors provides the error taxonomy of the aggregation engine.
// Every failure surfaces as an *AppError carrying a machine-readable code,
// and, for run-time failures, the index and kind of the stage that raised it.
package errors
