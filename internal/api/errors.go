//
//
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Error codes.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// API error sentinels for transport/security/lookup conditions
var (
	ErrBadRequest   = errors.New(CodeBadRequest)
	ErrUnauthorized = errors.New(CodeUnauthorized)
	ErrForbidden    = errors.New(CodeForbidden)
	ErrNotFound     = errors.New(CodeNotFound)
)

// ToAPIError converts an error to an HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	var verr *telemetry.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, marshalErrorResponse(CodeBadRequest, verr.Error(),
			map[string]string{"field": verr.Field})
	}

	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, telemetry.ErrInvalidTelemetry):
		return http.StatusBadRequest, marshalErrorResponse(CodeBadRequest, "Malformed or missing required parameter", nil)
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, marshalErrorResponse(CodeUnauthorized, "Authentication required", nil)
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, marshalErrorResponse(CodeForbidden, "Insufficient permissions", nil)
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse(CodeNotFound, "Resource not found", nil)
	}

	return http.StatusInternalServerError, marshalErrorResponse(CodeInternal, "Internal server error", nil)
}

// writeAPIError writes err through ToAPIError.
func writeAPIError(w http.ResponseWriter, err error) {
	status, body := ToAPIError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	body, err := json.Marshal(Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: uuid.NewString(),
	})
	if err != nil {
		body, _ = json.Marshal(map[string]interface{}{
			"result":        "error",
			"code":          CodeInternal,
			"message":       "Failed to marshal error response",
			"correlationId": uuid.NewString(),
		})
	}
	return body
}
