package response

import (
	"encoding/json"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodeOutOfStock         Code = "OUT_OF_STOCK"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Status returns the HTTP status that goes with an error code.
func (c Code) Status() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeEmailExists, CodeOutOfStock:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func OK(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, code Code, message string) {
	write(w, code.Status(), Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

func ErrorWithDetails(w http.ResponseWriter, code Code, message string, details any) {
	write(w, code.Status(), Envelope{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Unavailable reports a failed dependency check without the error body.
func Unavailable(w http.ResponseWriter, data any) {
	write(w, http.StatusServiceUnavailable, Envelope{Data: data})
}
