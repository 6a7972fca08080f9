package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/pkg/encoding"
	pkgerrors "github.com/scribeline/payment-engine/pkg/errors"
)

// writeEnvelope serializes into a pooled buffer before touching the
// ResponseWriter so an encode failure can still produce a clean 500
func writeEnvelope(w http.ResponseWriter, logger *zap.Logger, statusCode int, resp map[string]interface{}) {
	buf := encoding.GetBuffer()
	defer encoding.PutBuffer(buf)

	if err := encoding.EncodeJSONToBuffer(buf, resp); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// respondJSON writes a success envelope
func respondJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	writeEnvelope(w, logger, statusCode, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// respondError writes an error envelope with a message and optional code
func respondError(w http.ResponseWriter, logger *zap.Logger, statusCode int, code, message string) {
	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	if code != "" {
		resp["code"] = code
	}
	writeEnvelope(w, logger, statusCode, resp)
}

// respondDomainError maps service-layer errors onto HTTP statuses
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var gatewayErr *pkgerrors.GatewayError
	if errors.As(err, &gatewayErr) {
		respondError(w, logger, http.StatusBadGateway, gatewayErr.Code, gatewayErr.Message)
		return
	}

	code := domain.GetErrorCode(err)
	status := httpStatusFor(code)

	message := err.Error()
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		message = "internal server error"
	}
	respondError(w, logger, status, string(code), message)
}

func httpStatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeAgreementNotFound,
		domain.ErrorCodeInstallmentNotFound,
		domain.ErrorCodeRecordNotFound:
		return http.StatusNotFound

	case domain.ErrorCodeAuthPayerMismatch,
		domain.ErrorCodeAuthAccessDenied:
		return http.StatusForbidden

	case domain.ErrorCodeValidationFailed,
		domain.ErrorCodeValidationAmountInvalid,
		domain.ErrorCodeValidationMissingField,
		domain.ErrorCodeValidationScheduleInvalid:
		return http.StatusBadRequest

	case domain.ErrorCodeAgreementFullyPaid,
		domain.ErrorCodeAgreementNotPayable,
		domain.ErrorCodeInstallmentAlreadyPaid,
		domain.ErrorCodeRecordAlreadyProcessed:
		return http.StatusConflict

	case domain.ErrorCodeWebhookSignatureInvalid:
		return http.StatusUnauthorized

	case domain.ErrorCodeGatewayError,
		domain.ErrorCodeGatewayDeclined,
		domain.ErrorCodeGatewayUnsupported:
		return http.StatusBadGateway

	case domain.ErrorCodeGatewayTimeout:
		return http.StatusGatewayTimeout

	case domain.ErrorCodeRateUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
