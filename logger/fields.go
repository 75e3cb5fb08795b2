package logger

import "time"

// Field keys shared by every component.
const (
	FieldComponent  = "component"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
	FieldRunID      = "run_id"
	FieldView       = "view"
	FieldCollection = "collection"
	FieldStage      = "stage"
	FieldStageKind  = "kind"
	FieldDocuments  = "documents"
	FieldOperation  = "operation"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldErrorCode  = "error_code"
	FieldDuration   = "duration_ms"
	FieldDriver     = "driver"
)

// Fields builds a field map from alternating keys and values. Pairs with
// a non-string key and a trailing odd argument are dropped.
//
//	logger.Fields(logger.FieldView, "orders", logger.FieldDocuments, 42)
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields describes a failed operation.
func ErrorFields(op string, err error) map[string]any {
	return MergeWithError(map[string]any{FieldOperation: op}, err)
}

// MergeWithError sets the error field on fields, allocating when nil.
func MergeWithError(fields map[string]any, err error) map[string]any {
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields[FieldError] = err.Error()
	return fields
}

// MergeWithDuration sets the duration field, in milliseconds.
func MergeWithDuration(fields map[string]any, d time.Duration) map[string]any {
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
