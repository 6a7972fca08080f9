package handlers

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/internal/services/settlement"
	"github.com/scribeline/payment-engine/pkg/observability"
)

// maxWebhookBody bounds webhook payload reads
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway notifications, verifies their signatures,
// and hands verified events to the settlement service. Signature failures
// get a 401; every recognized outcome gets a 200 so gateways stop retrying.
type WebhookHandler struct {
	gateways   ports.GatewayRegistry
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(gateways ports.GatewayRegistry, settlementService *settlement.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateways:   gateways,
		settlement: settlementService,
		logger:     logger,
	}
}

// signatureHeaderFor returns the header each gateway signs its payloads with
func signatureHeaderFor(gateway domain.Gateway) string {
	switch gateway {
	case domain.GatewayStripe:
		return "Stripe-Signature"
	case domain.GatewayRazorpay:
		return "X-Razorpay-Signature"
	default:
		return ""
	}
}

// HandleWebhook handles POST /webhooks/{gateway}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	gatewayName := domain.Gateway(r.PathValue("gateway"))
	gateway, err := h.gateways.Gateway(gatewayName)
	if err != nil {
		respondError(w, h.logger, http.StatusNotFound, string(domain.ErrorCodeGatewayUnsupported),
			"unknown gateway")
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return
	}

	event, err := gateway.VerifyWebhook(rawBody, r.Header.Get(signatureHeaderFor(gatewayName)))
	if err != nil {
		observability.RecordWebhookEvent(string(gatewayName), "unknown", "signature_invalid",
			time.Since(start).Seconds())
		h.logger.Warn("Webhook signature verification failed",
			zap.String("gateway", string(gatewayName)),
			zap.Error(err))
		respondError(w, h.logger, http.StatusUnauthorized,
			string(domain.ErrorCodeWebhookSignatureInvalid), "signature verification failed")
		return
	}

	result, err := h.settlement.ProcessEvent(r.Context(), event)
	if err != nil {
		observability.RecordWebhookEvent(string(gatewayName), string(event.Type), "error",
			time.Since(start).Seconds())
		// Non-2xx makes the gateway redeliver, which is what we want for
		// transient persistence failures.
		respondDomainError(w, h.logger, err)
		return
	}

	observability.RecordWebhookEvent(string(gatewayName), string(event.Type), string(result.Outcome),
		time.Since(start).Seconds())

	h.logger.Info("Webhook processed",
		zap.String("gateway", string(gatewayName)),
		zap.String("event_type", string(event.Type)),
		zap.String("reference", event.Reference),
		zap.String("outcome", string(result.Outcome)))

	respondJSON(w, h.logger, http.StatusOK, result)
}
