package utils

import (
	"encoding/json"
	"net/http"

	"github.com/nflow-health/nflow/internal/pkg/errors"
)

// ExposeInternalErrors adds the wrapped cause of 5xx errors to responses.
// Only enabled in development.
var ExposeInternalErrors bool

// SuccessResponse represents a successful API response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Cause   string      `json:"cause,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) error {
	return WriteJSON(w, status, SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// WriteSuccessWithMessage writes a successful JSON response with a message
func WriteSuccessWithMessage(w http.ResponseWriter, status int, message string, data interface{}) error {
	return WriteJSON(w, status, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteError writes an error JSON response from AppError
func WriteError(w http.ResponseWriter, err *errors.AppError) error {
	detail := ErrorDetail{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
	if ExposeInternalErrors && err.StatusCode >= http.StatusInternalServerError && err.Internal != nil {
		detail.Cause = err.Internal.Error()
	}
	return WriteJSON(w, err.StatusCode, ErrorResponse{
		Success: false,
		Error:   detail,
	})
}

// WriteErr writes any error, converting it to an AppError first
func WriteErr(w http.ResponseWriter, err error) error {
	return WriteError(w, errors.From(err))
}

// WriteErrorMessage writes a simple error message
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
