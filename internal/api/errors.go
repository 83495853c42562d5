package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the errcode field of error bodies.
const (
	CodeNotFound      = "M_NOT_FOUND"
	CodeMissingParam  = "M_MISSING_PARAM"
	CodeNotJSON       = "M_NOT_JSON"
	CodeBadJSON       = "M_BAD_JSON"
	CodeForbidden     = "M_FORBIDDEN"
	CodeUnknownToken  = "M_UNKNOWN_TOKEN"
	CodeMissingToken  = "M_MISSING_TOKEN"
	CodeLimitExceeded = "M_LIMIT_EXCEEDED"
	CodeUnknown       = "M_UNKNOWN"
)

// Error is a client-visible error carrying an HTTP status and a wire errcode.
// It marshals to the {errcode, error} body shape.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with an explicit status and code.
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

func MissingParam(message string) *Error {
	return NewError(http.StatusBadRequest, CodeMissingParam, message)
}

func NotJSON(message string) *Error {
	return NewError(http.StatusBadRequest, CodeNotJSON, message)
}

func BadJSON(message string) *Error {
	return NewError(http.StatusBadRequest, CodeBadJSON, message)
}

func Forbidden(message string) *Error {
	return NewError(http.StatusForbidden, CodeForbidden, message)
}

func UnknownToken(message string) *Error {
	return NewError(http.StatusUnauthorized, CodeUnknownToken, message)
}

func MissingToken(message string) *Error {
	return NewError(http.StatusUnauthorized, CodeMissingToken, message)
}

func LimitExceeded(message string) *Error {
	return NewError(http.StatusTooManyRequests, CodeLimitExceeded, message)
}

func Unknown(message string) *Error {
	return NewError(http.StatusInternalServerError, CodeUnknown, message)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an {errcode, error} body. Errors that are not
// *Error are reported as M_UNKNOWN without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Unknown("internal server error")
	}
	WriteJSON(w, apiErr.Status, apiErr)
}
