package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/mcoot/gamenight/internal/api/apierr"
	"github.com/mcoot/gamenight/internal/model"
)

var validate = validator.New()

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return apierr.NewUnauthorizedError()
}

// decodeBody decodes and validates a JSON request body
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewInvalidRequestError("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return NewInvalidRequestError(err.Error())
	}
	return nil
}

// sessionID reads the {id} path variable
func sessionID(r *http.Request) (model.SessionID, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, NewInvalidRequestError("Session id must be a number")
	}
	return model.SessionID(id), nil
}
