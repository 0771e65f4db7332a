package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the error body of the account and admin APIs
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail represents a validation error detail
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeAuthorization  = "ERR_001"
	ErrCodeAuthentication = "ERR_002"
	ErrCodeValidation     = "ERR_003"
	ErrCodeInternal       = "ERR_004"
	ErrCodeNotFound       = "ERR_005"
	ErrCodeConflict       = "ERR_006"
	ErrCodeInvalidRequest = "ERR_007"
)

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, code string, message string, details []ErrorDetail, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidationErrors is a slice of validation errors
type ValidationErrors []ValidationError

// Add adds a validation error to the slice
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, NewValidationError(field, message))
}

// HasErrors returns true if there are any validation errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToErrorDetails converts validation errors to error details
func (v ValidationErrors) ToErrorDetails() []ErrorDetail {
	details := make([]ErrorDetail, len(v))
	for i, err := range v {
		details[i] = ErrorDetail{
			Field:   err.Field,
			Message: err.Message,
		}
	}
	return details
}

// FromValidator turns the field errors of a failed validate.Struct call into details
func FromValidator(err error) ValidationErrors {
	var out ValidationErrors
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		out.Add("", err.Error())
		return out
	}
	for _, fe := range fieldErrors {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "uri":
		return "must be an absolute URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "failed the " + fe.Tag() + " rule"
}
