// ABOUTME: Tests for AppError construction, wrapping, and HTTP status mapping.
// ABOUTME: Pure unit tests, no database required.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  *AppError
		want int
	}{
		{"unauthenticated", Unauthenticated(""), http.StatusUnauthorized},
		{"forbidden", Forbidden(""), http.StatusForbidden},
		{"no workspace", NoWorkspace(), http.StatusConflict},
		{"workspace selection", WorkspaceSelectionRequired(), http.StatusConflict},
		{"validation", Validation(nil), http.StatusBadRequest},
		{"not found", NotFound("product"), http.StatusNotFound},
		{"conflict", Conflict("email already registered"), http.StatusConflict},
		{"external service", ExternalService("classifier", errors.New("timeout")), http.StatusBadGateway},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestSeverityFallbackStatus(t *testing.T) {
	t.Parallel()
	// With no explicit status, severity decides the class.
	low := &AppError{Code: CodeConflict, Severity: SeverityLow}
	if got := low.HTTPStatus(); got != http.StatusBadRequest {
		t.Errorf("low severity status = %d, want 400", got)
	}
	crit := &AppError{Code: CodeInternal, Severity: SeverityCritical}
	if got := crit.HTTPStatus(); got != http.StatusInternalServerError {
		t.Errorf("critical severity status = %d, want 500", got)
	}
}

func TestUnwrapChain(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := ExternalService("tariff API", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is must reach the wrapped cause")
	}
	wrapped := fmt.Errorf("handler: %w", err)
	got, ok := As(wrapped)
	if !ok {
		t.Fatal("As must find AppError through fmt.Errorf wrapping")
	}
	if got.Code != CodeExternalService {
		t.Errorf("code = %s, want %s", got.Code, CodeExternalService)
	}
}

func TestAsNonAppError(t *testing.T) {
	t.Parallel()
	if _, ok := As(errors.New("plain")); ok {
		t.Error("As must not match plain errors")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	t.Parallel()
	err := Internal(errors.New("pg: connection closed"))
	want := "INTERNAL_SERVER_ERROR: internal error: pg: connection closed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBuilderMethods(t *testing.T) {
	t.Parallel()
	err := NotFound("workspace").In("api.workspaces", "get").WithDetail("workspace_id", "ws_123")
	if err.Component != "api.workspaces" || err.Operation != "get" {
		t.Errorf("In() not recorded: %q/%q", err.Component, err.Operation)
	}
	if err.Details["workspace_id"] != "ws_123" {
		t.Error("WithDetail not recorded")
	}
}

func TestValidationCarriesAllFields(t *testing.T) {
	t.Parallel()
	fields := []FieldError{
		{Path: "title", Message: "expected length >= 1"},
		{Path: "declared_value", Message: "expected number >= 0"},
	}
	err := Validation(fields)
	if len(err.Fields) != 2 {
		t.Fatalf("fields = %d, want 2 (all violations reported)", len(err.Fields))
	}
	if err.Code != CodeValidation {
		t.Errorf("code = %s, want %s", err.Code, CodeValidation)
	}
}
