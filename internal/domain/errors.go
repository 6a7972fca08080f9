package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Agreement Errors (AGREEMENT_*)
	ErrorCodeAgreementNotFound   ErrorCode = "AGREEMENT_NOT_FOUND"
	ErrorCodeAgreementFullyPaid  ErrorCode = "AGREEMENT_FULLY_PAID"
	ErrorCodeAgreementNotPayable ErrorCode = "AGREEMENT_NOT_PAYABLE"

	// Installment Errors (INSTALLMENT_*)
	ErrorCodeInstallmentNotFound    ErrorCode = "INSTALLMENT_NOT_FOUND"
	ErrorCodeInstallmentAlreadyPaid ErrorCode = "INSTALLMENT_ALREADY_PAID"

	// Payment Record Errors (RECORD_*)
	ErrorCodeRecordNotFound         ErrorCode = "RECORD_NOT_FOUND"
	ErrorCodeRecordAlreadyProcessed ErrorCode = "RECORD_ALREADY_PROCESSED"

	// Authorization Errors (AUTH_*)
	ErrorCodeAuthPayerMismatch ErrorCode = "AUTH_PAYER_MISMATCH"
	ErrorCodeAuthAccessDenied  ErrorCode = "AUTH_ACCESS_DENIED"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid   ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField    ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationScheduleInvalid ErrorCode = "VALIDATION_SCHEDULE_INVALID"

	// Currency Errors (RATE_*)
	ErrorCodeRateUnavailable ErrorCode = "RATE_UNAVAILABLE"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError            ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout          ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeGatewayDeclined         ErrorCode = "GATEWAY_DECLINED"
	ErrorCodeGatewayUnsupported      ErrorCode = "GATEWAY_UNSUPPORTED"
	ErrorCodeWebhookSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAgreementNotFound ||
		code == ErrorCodeInstallmentNotFound ||
		code == ErrorCodeRecordNotFound
}

// IsAuthError checks if an error is authorization related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthPayerMismatch ||
		code == ErrorCodeAuthAccessDenied
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeValidationScheduleInvalid ||
		code == ErrorCodeAgreementFullyPaid ||
		code == ErrorCodeInstallmentAlreadyPaid
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayTimeout ||
		code == ErrorCodeGatewayDeclined ||
		code == ErrorCodeGatewayUnsupported
}

// Structured error instances
var (
	ErrAgreementNotFound   = NewDomainError(ErrorCodeAgreementNotFound, "agreement not found")
	ErrAgreementFullyPaid  = NewDomainError(ErrorCodeAgreementFullyPaid, "agreement is already fully paid")
	ErrAgreementNotPayable = NewDomainError(ErrorCodeAgreementNotPayable, "agreement is not in a payable state")

	ErrInstallmentNotFound    = NewDomainError(ErrorCodeInstallmentNotFound, "installment not found")
	ErrInstallmentAlreadyPaid = NewDomainError(ErrorCodeInstallmentAlreadyPaid, "installment is already paid")

	ErrRecordNotFound         = NewDomainError(ErrorCodeRecordNotFound, "payment record not found")
	ErrRecordAlreadyProcessed = NewDomainError(ErrorCodeRecordAlreadyProcessed, "payment record already processed")

	ErrPayerMismatch = NewDomainError(ErrorCodeAuthPayerMismatch, "caller is not the designated payer")
	ErrAccessDenied  = NewDomainError(ErrorCodeAuthAccessDenied, "access denied")

	ErrValidationFailed          = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid   = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField    = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrValidationScheduleInvalid = NewDomainError(ErrorCodeValidationScheduleInvalid, "installment schedule does not sum to the agreement total")

	ErrRateUnavailable = NewDomainError(ErrorCodeRateUnavailable, "no exchange rate available for currency")

	ErrGatewayError            = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut         = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")
	ErrGatewayDeclined         = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")
	ErrGatewayUnsupported      = NewDomainError(ErrorCodeGatewayUnsupported, "unsupported payment gateway")
	ErrWebhookSignatureInvalid = NewDomainError(ErrorCodeWebhookSignatureInvalid, "webhook signature verification failed")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
