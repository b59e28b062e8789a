// Package apperror provides the structured failure type shared by all layers.
// Errors carry a stable machine-readable code, a severity, and the component/
// operation that raised them; the HTTP layer is the single place they are
// converted into response envelopes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error identifier.
type Code string

// Error codes. The set is closed; clients switch on these values.
const (
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeNoWorkspace           Code = "AUTH_NO_WORKSPACE"
	CodeWorkspaceSelection    Code = "WORKSPACE_SELECTION_REQUIRED"
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeExternalService       Code = "EXTERNAL_SERVICE_ERROR"
	CodeInternal              Code = "INTERNAL_SERVER_ERROR"
)

// Severity classifies how an error is logged and alerted on.
type Severity string

// Severity levels from least to most serious. low and medium are client-class
// failures; high and critical indicate server-side faults.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError is the structured failure value. Create at the point of failure,
// propagate by returning, and let the outermost HTTP layer consume it exactly
// once. Intermediate layers must not swallow or reshape it.
type AppError struct {
	Code     Code
	Message  string
	Severity Severity
	// Status is the HTTP status this error should map to. Zero means
	// "derive from severity" (low/medium → 400, high/critical → 500).
	Status int
	// Component and Operation identify where the error was raised,
	// e.g. ("api.products", "create").
	Component string
	Operation string
	// Details holds ad hoc diagnostic fields. Field-level validation
	// detail uses the typed Fields slice instead.
	Details map[string]any
	// Fields lists individual input violations for VALIDATION_ERROR.
	Fields []FieldError
	Cause  error
}

// FieldError is one violated input field in a validation failure.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the response status for the error: the explicit Status
// when set, otherwise 400 for low/medium severity and 500 for high/critical.
func (e *AppError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Severity {
	case SeverityLow, SeverityMedium:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// In records the component and operation that raised the error.
func (e *AppError) In(component, operation string) *AppError {
	e.Component = component
	e.Operation = operation
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds one diagnostic key-value pair.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// As extracts an *AppError from err's chain, or (nil, false).
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ── Constructors ──────────────────────────────────────────────────────────────

// Unauthenticated is the 401 failure: no valid identity on the request.
func Unauthenticated(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{Code: CodeUnauthenticated, Message: message, Severity: SeverityLow, Status: http.StatusUnauthorized}
}

// Forbidden is the 403 failure: valid identity, insufficient role or permission.
// The message is surfaced verbatim, so never include sensitive detail.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return &AppError{Code: CodeForbidden, Message: message, Severity: SeverityLow, Status: http.StatusForbidden}
}

// NoWorkspace is raised when an authenticated user belongs to no workspace.
// Distinct from Unauthenticated: the client must complete workspace setup.
func NoWorkspace() *AppError {
	return &AppError{
		Code:     CodeNoWorkspace,
		Message:  "no workspace membership; create or join a workspace first",
		Severity: SeverityMedium,
		Status:   http.StatusConflict,
	}
}

// WorkspaceSelectionRequired is raised when a user with multiple memberships
// hits a route without an explicit workspace signal. Never silently pick one:
// defaulting to an arbitrary membership would leak one tenant's data into
// another tenant's request.
func WorkspaceSelectionRequired() *AppError {
	return &AppError{
		Code:     CodeWorkspaceSelection,
		Message:  "multiple workspace memberships; specify a workspace",
		Severity: SeverityMedium,
		Status:   http.StatusConflict,
	}
}

// Validation is the 400 failure for malformed input. fields must list every
// violated field, not just the first.
func Validation(fields []FieldError) *AppError {
	return &AppError{
		Code:     CodeValidation,
		Message:  "request validation failed",
		Severity: SeverityMedium,
		Status:   http.StatusBadRequest,
		Fields:   fields,
	}
}

// NotFound is the 404 failure for a missing resource.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:     CodeNotFound,
		Message:  resource + " not found",
		Severity: SeverityLow,
		Status:   http.StatusNotFound,
	}
}

// Conflict is the 409 failure for state conflicts (duplicates, stale updates).
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Severity: SeverityMedium, Status: http.StatusConflict}
}

// ExternalService wraps a failure from a third-party API (classifier, tariff
// lookup). 502: the client did nothing wrong and may retry.
func ExternalService(service string, cause error) *AppError {
	return &AppError{
		Code:     CodeExternalService,
		Message:  service + " is unavailable",
		Severity: SeverityHigh,
		Status:   http.StatusBadGateway,
		Cause:    cause,
		Details:  map[string]any{"service": service},
	}
}

// Internal wraps an unexpected failure. The cause is logged server-side;
// clients see only the generic message.
func Internal(cause error) *AppError {
	return &AppError{
		Code:     CodeInternal,
		Message:  "internal error",
		Severity: SeverityHigh,
		Status:   http.StatusInternalServerError,
		Cause:    cause,
	}
}
