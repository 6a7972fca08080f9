package errors

import (
	"fmt"
)

// ErrorCategory represents the category of gateway error for handling
type ErrorCategory string

const (
	CategoryDeclined       ErrorCategory = "declined"
	CategoryCanceled       ErrorCategory = "canceled"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryNetworkError   ErrorCategory = "network_error"
	CategorySystemError    ErrorCategory = "system_error"
)

// GatewayError represents an external payment gateway failure with enough
// context to decide whether the call can be retried
type GatewayError struct {
	Details        map[string]interface{}
	Code           string
	Message        string
	GatewayMessage string
	Gateway        string
	Category       ErrorCategory
	IsRetriable    bool
}

func (e *GatewayError) Error() string {
	if e.GatewayMessage != "" {
		return fmt.Sprintf("%s: %s (gateway: %s)", e.Code, e.Message, e.GatewayMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewGatewayError creates a new gateway error
func NewGatewayError(gateway, code, message string, category ErrorCategory, retriable bool) *GatewayError {
	return &GatewayError{
		Gateway:     gateway,
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Details:     make(map[string]interface{}),
	}
}

// WithGatewayMessage attaches the raw gateway-side message
func (e *GatewayError) WithGatewayMessage(msg string) *GatewayError {
	e.GatewayMessage = msg
	return e
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
