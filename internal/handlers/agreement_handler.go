package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/services/agreements"
)

// AgreementHandler manages agreement creation and lookup
type AgreementHandler struct {
	agreements *agreements.Service
	logger     *zap.Logger
}

// NewAgreementHandler creates a new agreement handler
func NewAgreementHandler(service *agreements.Service, logger *zap.Logger) *AgreementHandler {
	return &AgreementHandler{
		agreements: service,
		logger:     logger,
	}
}

// CreateAgreement handles POST /agreements
func (h *AgreementHandler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req agreements.CreateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	agreement, err := h.agreements.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, agreement)
}

// GetAgreement handles GET /agreements/{id}
func (h *AgreementHandler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_AGREEMENT_ID", "agreement id is required")
		return
	}

	agreement, err := h.agreements.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, agreement)
}
