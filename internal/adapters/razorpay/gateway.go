package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpaysdk "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	pkgerrors "github.com/scribeline/payment-engine/pkg/errors"
	"github.com/scribeline/payment-engine/pkg/resilience"
)

// FullBalanceSentinel marks a payment link that targets the whole remaining
// balance instead of a single installment
const FullBalanceSentinel = "full"

// Config contains the Razorpay adapter configuration. Secrets are resolved
// through the secret manager before construction.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	CallbackURL   string
	Timeout       time.Duration
}

// Gateway implements ports.PaymentGateway over Razorpay Payment Links
type Gateway struct {
	client        *razorpaysdk.Client
	breaker       *resilience.CircuitBreaker
	logger        *zap.Logger
	webhookSecret string
	config        Config
}

// New creates a new Razorpay gateway adapter
func New(cfg Config, logger *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Gateway{
		client:        razorpaysdk.NewClient(cfg.KeyID, cfg.KeySecret),
		breaker:       resilience.NewCircuitBreaker("razorpay", resilience.DefaultCircuitBreakerConfig()),
		logger:        logger,
		webhookSecret: cfg.WebhookSecret,
		config:        cfg,
	}
}

// Name identifies the gateway
func (g *Gateway) Name() domain.Gateway {
	return domain.GatewayRazorpay
}

// CreateSession creates a hosted payment link. Amounts are sent in the
// smallest currency unit (paise for INR). The notes bundle carries the
// agreement/installment linkage for webhook settlement.
func (g *Gateway) CreateSession(ctx context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSession, error) {
	installmentID := req.InstallmentID
	if installmentID == "" {
		installmentID = FullBalanceSentinel
	}

	data := map[string]interface{}{
		"amount":          minorUnits(req.Amount),
		"currency":        strings.ToUpper(req.Currency),
		"description":     req.Description,
		"callback_url":    g.config.CallbackURL,
		"callback_method": "get",
		"notes": map[string]interface{}{
			"agreement_id":   req.AgreementID,
			"installment_id": installmentID,
			"payer_id":       req.PayerID,
			"payee_id":       req.PayeeID,
		},
	}

	// The razorpay-go client does not take a context, so the timeout only
	// bounds the breaker-wrapped call from our side
	done := make(chan struct{})
	var link map[string]interface{}
	var callErr error
	go func() {
		defer close(done)
		callErr = g.breaker.Call(func() error {
			var err error
			link, err = g.client.PaymentLink.Create(data, nil)
			return err
		})
	}()

	select {
	case <-done:
	case <-time.After(g.config.Timeout):
		return nil, pkgerrors.NewGatewayError("razorpay", "TIMEOUT", "razorpay request timed out",
			pkgerrors.CategoryNetworkError, true)
	case <-ctx.Done():
		return nil, pkgerrors.NewGatewayError("razorpay", "CANCELED", "request canceled",
			pkgerrors.CategoryCanceled, false)
	}
	if callErr != nil {
		g.logger.Error("Razorpay payment link creation failed",
			zap.String("agreement_id", req.AgreementID),
			zap.Error(callErr),
		)
		return nil, g.mapError(callErr)
	}

	id, _ := link["id"].(string)
	shortURL, _ := link["short_url"].(string)
	if id == "" || shortURL == "" {
		return nil, pkgerrors.NewGatewayError("razorpay", "MALFORMED_RESPONSE",
			"razorpay response missing id or short_url", pkgerrors.CategorySystemError, false)
	}

	g.logger.Info("Razorpay payment link created",
		zap.String("payment_link_id", id),
		zap.String("agreement_id", req.AgreementID),
	)

	return &ports.CheckoutSession{
		Reference:   id,
		RedirectURL: shortURL,
	}, nil
}

// webhookEnvelope is the subset of the Razorpay webhook payload we consume
type webhookEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		PaymentLink struct {
			Entity struct {
				ID       string `json:"id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
				Status   string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifyWebhook authenticates the X-Razorpay-Signature header (HMAC-SHA256
// over the raw body) and normalizes the event
func (g *Gateway) VerifyWebhook(rawBody []byte, signatureHeader string) (*domain.GatewayEvent, error) {
	if !utils.VerifyWebhookSignature(string(rawBody), signatureHeader, g.webhookSecret) {
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookSignatureInvalid,
			"razorpay signature verification failed")
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse razorpay webhook payload: %w", err)
	}

	occurredAt := time.Unix(envelope.CreatedAt, 0)
	entity := envelope.Payload.PaymentLink.Entity

	switch envelope.Event {
	case "payment_link.paid":
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayRazorpay,
			Type:       domain.GatewayEventPaymentSucceeded,
			Reference:  entity.ID,
			Amount:     fromMinorUnits(entity.Amount),
			Currency:   strings.ToUpper(entity.Currency),
			OccurredAt: occurredAt,
		}, nil

	case "payment_link.expired", "payment_link.cancelled":
		return &domain.GatewayEvent{
			Gateway:       domain.GatewayRazorpay,
			Type:          domain.GatewayEventPaymentFailed,
			Reference:     entity.ID,
			Amount:        fromMinorUnits(entity.Amount),
			Currency:      strings.ToUpper(entity.Currency),
			FailureReason: envelope.Event,
			OccurredAt:    occurredAt,
		}, nil

	case "payment.failed":
		// Failed payment attempts carry no link entity. The payer can retry
		// on the same link, so the attempt is noted but nothing settles.
		reason := envelope.Payload.Payment.Entity.ErrorDescription
		if reason == "" {
			reason = "payment attempt failed"
		}
		return &domain.GatewayEvent{
			Gateway:       domain.GatewayRazorpay,
			Type:          domain.GatewayEventIgnored,
			Reference:     entity.ID,
			FailureReason: reason,
			OccurredAt:    occurredAt,
		}, nil

	default:
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayRazorpay,
			Type:       domain.GatewayEventIgnored,
			OccurredAt: occurredAt,
		}, nil
	}
}

// PollStatus fetches the current state of a payment link by id
func (g *Gateway) PollStatus(ctx context.Context, reference string) (*domain.GatewayEvent, error) {
	var link map[string]interface{}
	err := g.breaker.Call(func() error {
		var callErr error
		link, callErr = g.client.PaymentLink.Fetch(reference, nil, nil)
		return callErr
	})
	if err != nil {
		return nil, g.mapError(err)
	}

	status, _ := link["status"].(string)
	amount, _ := link["amount"].(float64)
	currency, _ := link["currency"].(string)
	now := time.Now()

	switch status {
	case "paid":
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayRazorpay,
			Type:       domain.GatewayEventPaymentSucceeded,
			Reference:  reference,
			Amount:     fromMinorUnits(int64(amount)),
			Currency:   strings.ToUpper(currency),
			OccurredAt: now,
		}, nil

	case "expired", "cancelled":
		return &domain.GatewayEvent{
			Gateway:       domain.GatewayRazorpay,
			Type:          domain.GatewayEventPaymentFailed,
			Reference:     reference,
			FailureReason: "payment link " + status,
			OccurredAt:    now,
		}, nil

	default:
		// created or partially_paid, payer has not completed payment
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayRazorpay,
			Type:       domain.GatewayEventIgnored,
			Reference:  reference,
			OccurredAt: now,
		}, nil
	}
}

// mapError converts razorpay-go errors into gateway errors. The SDK surfaces
// API failures as plain errors with the response body message, so the mapping
// is coarser than Stripe's typed errors.
func (g *Gateway) mapError(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return pkgerrors.NewGatewayError("razorpay", "CIRCUIT_OPEN", "razorpay temporarily unavailable",
			pkgerrors.CategorySystemError, true)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "authentication"), strings.Contains(lower, "unauthorized"):
		return pkgerrors.NewGatewayError("razorpay", "AUTHENTICATION", "razorpay authentication failed",
			pkgerrors.CategoryAuthentication, false).WithGatewayMessage(msg)
	case strings.Contains(lower, "bad request"), strings.Contains(lower, "invalid"):
		return pkgerrors.NewGatewayError("razorpay", "INVALID_REQUEST", "invalid request to razorpay",
			pkgerrors.CategoryInvalidRequest, false).WithGatewayMessage(msg)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline"):
		return pkgerrors.NewGatewayError("razorpay", "TIMEOUT", "razorpay request timed out",
			pkgerrors.CategoryNetworkError, true).WithGatewayMessage(msg)
	default:
		return pkgerrors.NewGatewayError("razorpay", "ERROR", "razorpay call failed",
			pkgerrors.CategorySystemError, true).WithGatewayMessage(msg)
	}
}

// minorUnits converts a decimal amount into paise (or the equivalent
// smallest unit for the currency)
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
