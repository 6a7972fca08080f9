package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/services/checkout"
)

// CheckoutHandler creates hosted checkout sessions
type CheckoutHandler struct {
	checkout *checkout.Service
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service *checkout.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: service,
		logger:   logger,
	}
}

type checkoutRequest struct {
	AgreementID   string          `json:"agreement_id"`
	PayerID       string          `json:"payer_id"`
	Intent        string          `json:"intent"`
	InstallmentID string          `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Country       string          `json:"country,omitempty"`
}

// CreateCheckout handles POST /payment/enhanced-checkout
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.Country == "" {
		req.Country = r.Header.Get("X-Payer-Country")
	}

	resp, err := h.checkout.CreateCheckout(r.Context(), checkout.CreateCheckoutRequest{
		AgreementID:   req.AgreementID,
		PayerID:       req.PayerID,
		Intent:        checkout.Intent(req.Intent),
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Country:       req.Country,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Checkout session created",
		zap.String("agreement_id", req.AgreementID),
		zap.String("gateway", string(resp.Gateway)),
		zap.String("record_id", resp.RecordID))

	respondJSON(w, h.logger, http.StatusCreated, resp)
}
