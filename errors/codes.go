package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Compilation errors, raised while turning a declarative pipeline into stages.
const (
	// ErrCodeUnknownStageKind indicates a stage document whose operator is not supported.
	ErrCodeUnknownStageKind ErrorCode = "UNKNOWN_STAGE_KIND"
	// ErrCodeInvalidExpression indicates a malformed operator arity or shape.
	ErrCodeInvalidExpression ErrorCode = "INVALID_EXPRESSION"
	// ErrCodeMissingRequiredField indicates a stage lacks a mandatory field.
	ErrCodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
)

// Evaluation errors, raised while a pipeline run is in progress.
const (
	// ErrCodeTypeMismatch indicates a value of the wrong type reached an operator.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodeUndefinedVariable indicates a $$name reference with no binding in scope.
	ErrCodeUndefinedVariable ErrorCode = "UNDEFINED_VARIABLE"
)

// Resolution errors.
const (
	// ErrCodeUnknownCollection indicates a collection or view name that cannot be resolved.
	ErrCodeUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"
	// ErrCodeCyclicViewReference indicates a view reading from itself, directly or
	// transitively, or nesting beyond the configured depth.
	ErrCodeCyclicViewReference ErrorCode = "CYCLIC_VIEW_REFERENCE"
	// ErrCodeInvalidDefinition indicates a view, index or collection definition
	// that cannot be registered.
	ErrCodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"
)

// Runtime errors.
const (
	// ErrCodeCancelled indicates the run observed context cancellation.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeStorage indicates a collection backend failed to read.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeInvalidConfig indicates engine configuration that failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

var compileCodes = map[ErrorCode]bool{
	ErrCodeUnknownStageKind:     true,
	ErrCodeInvalidExpression:    true,
	ErrCodeMissingRequiredField: true,
}

// IsCompileCode returns true if the code is raised before any document is read.
func IsCompileCode(code ErrorCode) bool {
	return compileCodes[code]
}
