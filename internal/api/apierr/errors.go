package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnknownKind        = "UNKNOWN_KIND"
	CodeUnknownAudience    = "UNKNOWN_AUDIENCE"
	CodeEmptyAudience      = "EMPTY_AUDIENCE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeAPIDisabled        = "API_DISABLED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodePersonNotFound     = "PERSON_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeSessionConflict    = "SESSION_CONFLICT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Specific sentinels first, their families below
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrPersonNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePersonNotFound, "Person not found"}}
	case errors.Is(err, model.ErrNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
	case errors.Is(err, model.ErrSessionConflict):
		return &httpError{http.StatusConflict, APIError{CodeSessionConflict, "An active session with this kind and date already exists"}}
	case errors.Is(err, model.ErrConflict):
		return &httpError{http.StatusConflict, APIError{CodeSessionConflict, "Conflict"}}
	case errors.Is(err, model.ErrUnknownKind):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownKind, "Kind must be one of city, sport, rating"}}
	case errors.Is(err, model.ErrUnknownAudience):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownAudience, "Audience must be one of all, registered, not_registered"}}
	case errors.Is(err, model.ErrEmptyAudience):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeEmptyAudience, "No recipients match"}}
	case errors.Is(err, model.ErrValidation):
		return &httpError{http.StatusBadRequest, APIError{CodeValidationFailed, err.Error()}}
	case errors.Is(err, model.ErrStorageUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStorageUnavailable, "Storage is temporarily unavailable"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or missing token"}}
	case errors.Is(err, auth.ErrDisabled):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeAPIDisabled, "Organizer API is not configured"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
