package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Detail keys attached by the engine.
const (
	DetailStage      = "stage"
	DetailStageKind  = "stage_kind"
	DetailStagePath  = "stage_path"
	DetailStageKinds = "stage_kinds"
	DetailDocumentID = "document_id"
	DetailCollection = "collection"
	DetailVariable   = "variable"
	DetailOperator   = "operator"
	DetailField      = "field"
	DetailChain      = "chain"
)

// AppError is the unified engine error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if path, ok := e.Details[DetailStagePath].([]int); ok && len(path) > 1 {
		kinds, _ := e.Details[DetailStageKinds].([]string)
		b.WriteString(" (stage")
		for i, idx := range path {
			if i > 0 {
				b.WriteString(" >")
			}
			fmt.Fprintf(&b, " %d", idx)
			if i < len(kinds) {
				b.WriteString(" " + kinds[i])
			}
		}
		b.WriteString(")")
	} else if idx, ok := e.Details[DetailStage]; ok {
		fmt.Fprintf(&b, " (stage %v %v)", idx, e.Details[DetailStageKind])
	}
	if id, ok := e.Details[DetailDocumentID]; ok {
		fmt.Fprintf(&b, " (document %v)", id)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// --- Constructors ---

// UnknownStageKind creates an error for an unsupported stage operator.
func UnknownStageKind(kind string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownStageKind, Message: fmt.Sprintf("unknown pipeline stage %q", kind),
		Details: map[string]any{DetailStageKind: kind},
	}
}

// InvalidExpression creates an error for a malformed operator or stage argument.
func InvalidExpression(operator, reason string) *AppError {
	details := make(map[string]any)
	if operator != "" {
		details[DetailOperator] = operator
	}
	msg := reason
	if operator != "" {
		msg = fmt.Sprintf("%s: %s", operator, reason)
	}
	return &AppError{Code: ErrCodeInvalidExpression, Message: msg, Details: details}
}

// TypeMismatch creates an error for a value of the wrong type.
func TypeMismatch(operator, expected, got string) *AppError {
	return &AppError{
		Code: ErrCodeTypeMismatch, Message: fmt.Sprintf("%s expects %s, got %s", operator, expected, got),
		Details: map[string]any{DetailOperator: operator},
	}
}

// UndefinedVariable creates an error for an unbound $$name reference.
func UndefinedVariable(name string) *AppError {
	return &AppError{
		Code: ErrCodeUndefinedVariable, Message: fmt.Sprintf("use of undefined variable $$%s", name),
		Details: map[string]any{DetailVariable: name},
	}
}

// UnknownCollection creates an error for a name the resolver does not know.
func UnknownCollection(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownCollection, Message: fmt.Sprintf("collection or view %q is not defined", name),
		Details: map[string]any{DetailCollection: name},
	}
}

// CyclicViewReference creates an error for a view that reads from itself or nests too deep.
func CyclicViewReference(name string, chain []string) *AppError {
	c := append([]string(nil), chain...)
	return &AppError{
		Code: ErrCodeCyclicViewReference,
		Message: fmt.Sprintf("view %q is referenced recursively (%s)", name,
			strings.Join(append(c, name), " -> ")),
		Details: map[string]any{DetailCollection: name, DetailChain: c},
	}
}

// DepthExceeded creates a CyclicViewReference error for nesting beyond the limit.
func DepthExceeded(name string, limit int) *AppError {
	return &AppError{
		Code:    ErrCodeCyclicViewReference,
		Message: fmt.Sprintf("nesting limit of %d exceeded while resolving %q", limit, name),
		Details: map[string]any{DetailCollection: name, "limit": limit},
	}
}

// MissingRequiredField creates an error for a stage lacking a mandatory field.
func MissingRequiredField(stage, field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingRequiredField, Message: fmt.Sprintf("%s requires field %q", stage, field),
		Details: map[string]any{DetailField: field, DetailStageKind: stage},
	}
}

// InvalidDefinition creates an error for a definition that cannot be registered.
func InvalidDefinition(name, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidDefinition, Message: fmt.Sprintf("definition %q: %s", name, reason),
		Details: map[string]any{DetailCollection: name},
	}
}

// InvalidConfig creates an error for configuration that failed validation.
func InvalidConfig(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfig, Message: message}
}

// Cancelled creates an error for a run interrupted by its context.
func Cancelled(cause error) *AppError {
	return &AppError{Code: ErrCodeCancelled, Message: "pipeline run cancelled", Cause: cause}
}

// Storage creates an error for a failed backend read.
func Storage(collection string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStorage, Message: fmt.Sprintf("reading collection %q failed", collection),
		Details: map[string]any{DetailCollection: collection}, Cause: cause,
	}
}

// --- Helpers ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// AtStage attaches the position of the stage that raised err. An error that
// already carries a position was raised by a pipeline nested in this stage:
// the stage becomes the reported one and is prepended to the stage path, so
// the path runs from the top-level stage down to the innermost one.
// Context errors become Cancelled; other foreign errors become Storage errors.
func AtStage(err error, index int, kind string) error {
	if err == nil {
		return nil
	}
	appErr, ok := AsAppError(err)
	if !ok {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			appErr = Cancelled(err)
		} else {
			appErr = &AppError{Code: ErrCodeStorage, Message: "stage failed", Cause: err}
		}
	}
	path, _ := appErr.Details[DetailStagePath].([]int)
	kinds, _ := appErr.Details[DetailStageKinds].([]string)
	appErr.WithDetail(DetailStage, index)
	appErr.WithDetail(DetailStageKind, kind)
	appErr.WithDetail(DetailStagePath, append([]int{index}, path...))
	appErr.WithDetail(DetailStageKinds, append([]string{kind}, kinds...))
	return appErr
}

// WithDocument attaches the identifier of the offending document when unset.
func WithDocument(err error, id any) error {
	if err == nil || id == nil {
		return err
	}
	if appErr, ok := AsAppError(err); ok {
		if _, set := appErr.Details[DetailDocumentID]; !set {
			appErr.WithDetail(DetailDocumentID, id)
		}
		return appErr
	}
	return err
}

// DetailKeys returns the sorted detail keys, mainly for log output.
func (e *AppError) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
