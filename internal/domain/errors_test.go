package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDomainErrors_AgreementErrors tests all agreement-related domain errors
func TestDomainErrors_AgreementErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "agreement_not_found",
			err:      ErrAgreementNotFound,
			contains: "agreement not found",
		},
		{
			name:     "agreement_fully_paid",
			err:      ErrAgreementFullyPaid,
			contains: "already fully paid",
		},
		{
			name:     "agreement_not_payable",
			err:      ErrAgreementNotPayable,
			contains: "not in a payable state",
		},
		{
			name:     "installment_not_found",
			err:      ErrInstallmentNotFound,
			contains: "installment not found",
		},
		{
			name:     "installment_already_paid",
			err:      ErrInstallmentAlreadyPaid,
			contains: "already paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error to be defined, got nil")
			}
			if !strings.Contains(strings.ToLower(tt.err.Error()), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_RecordErrors tests payment record domain errors
func TestDomainErrors_RecordErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "record_not_found",
			err:      ErrRecordNotFound,
			contains: "payment record not found",
		},
		{
			name:     "record_already_processed",
			err:      ErrRecordAlreadyProcessed,
			contains: "already processed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error to be defined, got nil")
			}
			if !strings.Contains(strings.ToLower(tt.err.Error()), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_GatewayErrors tests all gateway-related domain errors
func TestDomainErrors_GatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "gateway_error",
			err:      ErrGatewayError,
			contains: "payment gateway error",
		},
		{
			name:     "gateway_timeout",
			err:      ErrGatewayTimedOut,
			contains: "gateway timeout",
		},
		{
			name:     "gateway_declined",
			err:      ErrGatewayDeclined,
			contains: "declined by gateway",
		},
		{
			name:     "gateway_unsupported",
			err:      ErrGatewayUnsupported,
			contains: "unsupported payment gateway",
		},
		{
			name:     "webhook_signature_invalid",
			err:      ErrWebhookSignatureInvalid,
			contains: "signature verification failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error to be defined, got nil")
			}
			if !strings.Contains(strings.ToLower(tt.err.Error()), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_ValidationErrors tests all validation-related domain errors
func TestDomainErrors_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "validation_failed",
			err:      ErrValidationFailed,
			contains: "validation failed",
		},
		{
			name:     "invalid_amount",
			err:      ErrValidationAmountInvalid,
			contains: "invalid amount",
		},
		{
			name:     "missing_field",
			err:      ErrValidationMissingField,
			contains: "required field missing",
		},
		{
			name:     "schedule_invalid",
			err:      ErrValidationScheduleInvalid,
			contains: "does not sum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error to be defined, got nil")
			}
			if !strings.Contains(strings.ToLower(tt.err.Error()), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_Wrapping tests that domain errors can be wrapped and unwrapped correctly
func TestDomainErrors_Wrapping(t *testing.T) {
	tests := []struct {
		name        string
		baseErr     error
		wrapMessage string
	}{
		{
			name:        "wrap_agreement_not_found",
			baseErr:     ErrAgreementNotFound,
			wrapMessage: "failed to create checkout",
		},
		{
			name:        "wrap_record_not_found",
			baseErr:     ErrRecordNotFound,
			wrapMessage: "manual verification failed",
		},
		{
			name:        "wrap_gateway_timeout",
			baseErr:     ErrGatewayTimedOut,
			wrapMessage: "session creation failed",
		},
		{
			name:        "wrap_rate_unavailable",
			baseErr:     ErrRateUnavailable,
			wrapMessage: "cannot quote regional amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("%s: %w", tt.wrapMessage, tt.baseErr)

			if !strings.Contains(wrapped.Error(), tt.wrapMessage) {
				t.Errorf("wrapped error %q does not contain wrap message %q", wrapped.Error(), tt.wrapMessage)
			}
			if !errors.Is(wrapped, tt.baseErr) {
				t.Errorf("errors.Is failed: wrapped error does not match base error %v", tt.baseErr)
			}
		})
	}
}

// TestGetErrorCode tests error code extraction through wrapping layers
func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "direct_domain_error",
			err:  ErrAgreementNotFound,
			want: ErrorCodeAgreementNotFound,
		},
		{
			name: "wrapped_domain_error",
			err:  fmt.Errorf("context: %w", ErrGatewayDeclined),
			want: ErrorCodeGatewayDeclined,
		},
		{
			name: "wrap_error_constructor",
			err:  WrapError(ErrorCodeDatabaseError, "query failed", errors.New("conn refused")),
			want: ErrorCodeDatabaseError,
		},
		{
			name: "plain_error",
			err:  errors.New("not a domain error"),
			want: "",
		},
		{
			name: "nil_error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestIsDomainError tests code matching for direct and wrapped errors
func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrRecordNotFound, ErrorCodeRecordNotFound) {
		t.Error("expected ErrRecordNotFound to match its own code")
	}
	if IsDomainError(ErrRecordNotFound, ErrorCodeAgreementNotFound) {
		t.Error("expected ErrRecordNotFound not to match an unrelated code")
	}
	wrapped := fmt.Errorf("settle: %w", ErrInstallmentAlreadyPaid)
	if !IsDomainError(wrapped, ErrorCodeInstallmentAlreadyPaid) {
		t.Error("expected wrapped error to match through errors.As")
	}
	if IsDomainError(errors.New("plain"), ErrorCodeInternalError) {
		t.Error("expected plain error not to match any code")
	}
}

// TestErrorClassifiers tests the category helpers used by the HTTP layer
func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		auth       bool
		validation bool
		gateway    bool
	}{
		{
			name:     "agreement_not_found",
			err:      ErrAgreementNotFound,
			notFound: true,
		},
		{
			name:     "record_not_found_wrapped",
			err:      fmt.Errorf("verify: %w", ErrRecordNotFound),
			notFound: true,
		},
		{
			name: "payer_mismatch",
			err:  ErrPayerMismatch,
			auth: true,
		},
		{
			name:       "schedule_invalid",
			err:        ErrValidationScheduleInvalid,
			validation: true,
		},
		{
			name:       "fully_paid_is_validation",
			err:        ErrAgreementFullyPaid,
			validation: true,
		},
		{
			name:    "gateway_declined",
			err:     ErrGatewayDeclined,
			gateway: true,
		},
		{
			name: "internal_error_matches_nothing",
			err:  ErrInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.notFound {
				t.Errorf("IsNotFoundError() = %v, want %v", got, tt.notFound)
			}
			if got := IsAuthError(tt.err); got != tt.auth {
				t.Errorf("IsAuthError() = %v, want %v", got, tt.auth)
			}
			if got := IsValidationError(tt.err); got != tt.validation {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.validation)
			}
			if got := IsGatewayError(tt.err); got != tt.gateway {
				t.Errorf("IsGatewayError() = %v, want %v", got, tt.gateway)
			}
		})
	}
}

// TestWithDetail tests detail attachment on a fresh error instance
func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount").
		WithDetail("field", "amount").
		WithDetail("value", "-10.00")

	if err.Details["field"] != "amount" {
		t.Errorf("expected detail field=amount, got %v", err.Details["field"])
	}
	if err.Details["value"] != "-10.00" {
		t.Errorf("expected detail value=-10.00, got %v", err.Details["value"])
	}
	if err.Code != ErrorCodeValidationAmountInvalid {
		t.Errorf("unexpected code %q", err.Code)
	}
}

// TestDomainError_ErrorFormat tests the rendered message with and without a cause
func TestDomainError_ErrorFormat(t *testing.T) {
	bare := NewDomainError(ErrorCodeRateUnavailable, "no exchange rate available for currency")
	if got := bare.Error(); got != "RATE_UNAVAILABLE: no exchange rate available for currency" {
		t.Errorf("unexpected message: %q", got)
	}

	cause := errors.New("upstream 503")
	wrapped := WrapError(ErrorCodeGatewayError, "session create failed", cause)
	if !strings.Contains(wrapped.Error(), "GATEWAY_ERROR") || !strings.Contains(wrapped.Error(), "upstream 503") {
		t.Errorf("wrapped message missing parts: %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}
