package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/services/settlement"
)

// VerifyHandler resolves a payment record by polling its gateway directly,
// for support cases where the webhook never arrived
type VerifyHandler struct {
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewVerifyHandler creates a new manual verification handler
func NewVerifyHandler(settlementService *settlement.Service, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		settlement: settlementService,
		logger:     logger,
	}
}

// ManualVerify handles POST /payment/manual-verify/{reference}
func (h *VerifyHandler) ManualVerify(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	if reference == "" {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_REFERENCE", "reference is required")
		return
	}

	result, err := h.settlement.ManualVerify(r.Context(), reference)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Manual verification completed",
		zap.String("reference", reference),
		zap.String("outcome", string(result.Outcome)))

	respondJSON(w, h.logger, http.StatusOK, result)
}
