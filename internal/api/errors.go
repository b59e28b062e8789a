// ABOUTME: Error envelope rendering — the single place AppError values become HTTP responses.
// ABOUTME: Overrides huma.NewError so validation and handler errors share one envelope shape.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Milo6x/dutyleak/internal/apperror"
)

// errorEnvelope is the JSON error response shape for every endpoint.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      apperror.Code         `json:"code"`
	Message   string                `json:"message"`
	Severity  apperror.Severity     `json:"severity"`
	RequestID string                `json:"request_id,omitempty"`
	Fields    []apperror.FieldError `json:"fields,omitempty"`
}

// statusError adapts an AppError to huma's StatusError so huma handlers can
// return domain errors and have them rendered as the standard envelope.
type statusError struct {
	status   int
	envelope errorEnvelope
}

func (e *statusError) Error() string { return e.envelope.Error.Message }

func (e *statusError) GetStatus() int { return e.status }

// ContentType keeps error responses on plain application/json rather than
// huma's default application/problem+json.
func (e *statusError) ContentType(string) string { return "application/json" }

// MarshalJSON renders the envelope, not the wrapper.
func (e *statusError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.envelope)
}

// appErr converts an *apperror.AppError into a huma StatusError carrying the
// standard envelope. High-severity causes are logged; the client sees only the
// public message.
func appErr(e *apperror.AppError) huma.StatusError {
	if e.Severity == apperror.SeverityHigh || e.Severity == apperror.SeverityCritical {
		slog.Error("request failed", "code", e.Code, "component", e.Component,
			"operation", e.Operation, "error", e.Error())
	}
	return &statusError{
		status: e.HTTPStatus(),
		envelope: errorEnvelope{Error: errorBody{
			Code:     e.Code,
			Message:  e.Message,
			Severity: e.Severity,
			Fields:   e.Fields,
		}},
	}
}

// writeError renders err as the standard envelope on a plain chi handler path.
// Non-AppError values are logged and collapsed to a generic 500 so internal
// detail never leaks to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appE, ok := apperror.As(err)
	if !ok {
		appE = apperror.Internal(err)
	}
	if appE.Severity == apperror.SeverityHigh || appE.Severity == apperror.SeverityCritical {
		slog.ErrorContext(r.Context(), "request failed", "code", appE.Code,
			"component", appE.Component, "operation", appE.Operation, "error", appE.Error())
	}
	writeJSON(w, appE.HTTPStatus(), errorEnvelope{Error: errorBody{
		Code:      appE.Code,
		Message:   appE.Message,
		Severity:  appE.Severity,
		RequestID: middleware.GetReqID(r.Context()),
		Fields:    appE.Fields,
	}})
}

// init replaces huma's error constructor so framework-generated errors
// (request validation, body parse failures) use the same envelope as handler
// errors. Validation failures report every violated field, not just the first.
func init() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		body := errorBody{
			Code:     codeForStatus(status),
			Message:  message,
			Severity: severityForStatus(status),
		}
		for _, e := range errs {
			if e == nil {
				continue
			}
			if d, ok := e.(huma.ErrorDetailer); ok {
				detail := d.ErrorDetail()
				body.Fields = append(body.Fields, apperror.FieldError{
					Path:    detail.Location,
					Message: detail.Message,
				})
				continue
			}
			body.Fields = append(body.Fields, apperror.FieldError{Message: e.Error()})
		}
		if status == http.StatusUnprocessableEntity || (status == http.StatusBadRequest && len(body.Fields) > 0) {
			body.Code = apperror.CodeValidation
			body.Message = "request validation failed"
		}
		return &statusError{status: status, envelope: errorEnvelope{Error: body}}
	}
}

func codeForStatus(status int) apperror.Code {
	switch status {
	case http.StatusUnauthorized:
		return apperror.CodeUnauthenticated
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusConflict:
		return apperror.CodeConflict
	case http.StatusTooManyRequests:
		return apperror.CodeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return apperror.CodeExternalService
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.CodeValidation
	default:
		return apperror.CodeInternal
	}
}

func severityForStatus(status int) apperror.Severity {
	switch {
	case status >= 500:
		return apperror.SeverityHigh
	case status == http.StatusConflict:
		return apperror.SeverityMedium
	default:
		return apperror.SeverityLow
	}
}
