// ABOUTME: JSON request/response helpers for plain chi handlers.
// ABOUTME: Huma routes marshal through the framework; these serve the chi side.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Milo6x/dutyleak/internal/apperror"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response", "error", err)
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields and
// trailing garbage. Returns a VALIDATION_ERROR AppError on malformed input.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Validation([]apperror.FieldError{
			{Path: "body", Message: "invalid JSON: " + err.Error()},
		})
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.Validation([]apperror.FieldError{
			{Path: "body", Message: "unexpected data after JSON body"},
		})
	}
	return nil
}
