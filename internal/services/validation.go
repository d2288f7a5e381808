package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code"`              // Stable error kind
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	code := "invalid_request"
	if statusCode >= http.StatusInternalServerError {
		code = "internal_error"
	}
	errorResp := ErrorResponse{Error: message, Code: code}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Code = "validation_failed"
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	writeJSON(w, statusCode, errorResp)
}

// SendServiceError renders a ledger error with its kind and matching status.
// Internal errors are not echoed to the caller.
func SendServiceError(w http.ResponseWriter, err error) {
	kind := Kind(err)
	message := err.Error()
	if kind == "internal_error" {
		message = "internal server error"
	}
	writeJSON(w, HTTPStatus(err), ErrorResponse{Error: message, Code: kind})
}

// SendJSON writes a success payload.
func SendJSON(w http.ResponseWriter, statusCode int, payload any) {
	writeJSON(w, statusCode, payload)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
