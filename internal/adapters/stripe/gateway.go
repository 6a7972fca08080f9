package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripesdk "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	pkgerrors "github.com/scribeline/payment-engine/pkg/errors"
	"github.com/scribeline/payment-engine/pkg/resilience"
)

// FullBalanceSentinel marks a session that targets the whole remaining
// balance instead of a single installment
const FullBalanceSentinel = "full"

// Config contains the Stripe adapter configuration. Secrets are resolved
// through the secret manager before construction.
type Config struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// Gateway implements ports.PaymentGateway over Stripe hosted Checkout Sessions
type Gateway struct {
	client        *client.API
	breaker       *resilience.CircuitBreaker
	logger        *zap.Logger
	webhookSecret string
	config        Config
}

// New creates a new Stripe gateway adapter
func New(cfg Config, logger *zap.Logger) *Gateway {
	sc := &client.API{}
	sc.Init(cfg.APIKey, nil)

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Gateway{
		client:        sc,
		breaker:       resilience.NewCircuitBreaker("stripe", resilience.DefaultCircuitBreakerConfig()),
		logger:        logger,
		webhookSecret: cfg.WebhookSecret,
		config:        cfg,
	}
}

// Name identifies the gateway
func (g *Gateway) Name() domain.Gateway {
	return domain.GatewayStripe
}

// CreateSession creates a hosted Checkout Session. The metadata bundle
// carries the agreement/installment linkage so the webhook event alone is
// enough to settle the payment.
func (g *Gateway) CreateSession(ctx context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	params := &stripesdk.CheckoutSessionParams{
		Mode:       stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		SuccessURL: stripesdk.String(g.config.SuccessURL),
		CancelURL:  stripesdk.String(g.config.CancelURL),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{
			{
				PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripesdk.String(strings.ToLower(req.Currency)),
					UnitAmount: stripesdk.Int64(minorUnits(req.Amount, req.Currency)),
					ProductData: &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripesdk.String(req.Description),
					},
				},
				Quantity: stripesdk.Int64(1),
			},
		},
	}
	params.Context = ctx

	installmentID := req.InstallmentID
	if installmentID == "" {
		installmentID = FullBalanceSentinel
	}
	params.AddMetadata("agreement_id", req.AgreementID)
	params.AddMetadata("installment_id", installmentID)
	params.AddMetadata("payer_id", req.PayerID)
	params.AddMetadata("payee_id", req.PayeeID)

	var session *stripesdk.CheckoutSession
	err := g.breaker.Call(func() error {
		var callErr error
		session, callErr = g.client.CheckoutSessions.New(params)
		return callErr
	})
	if err != nil {
		g.logger.Error("Stripe session creation failed",
			zap.String("agreement_id", req.AgreementID),
			zap.Error(err),
		)
		return nil, g.mapError(err)
	}

	g.logger.Info("Stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("agreement_id", req.AgreementID),
	)

	return &ports.CheckoutSession{
		Reference:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// VerifyWebhook authenticates the Stripe-Signature header (HMAC-SHA256 over
// the raw body) and normalizes the event
func (g *Gateway) VerifyWebhook(rawBody []byte, signatureHeader string) (*domain.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(rawBody, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookSignatureInvalid,
			"stripe signature verification failed", err)
	}

	occurredAt := time.Unix(event.Created, 0)

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		session, err := parseSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		if session.PaymentStatus != stripesdk.CheckoutSessionPaymentStatusPaid {
			// Completed but unpaid: async payment method still settling
			return ignoredEvent(session.ID, occurredAt), nil
		}
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayStripe,
			Type:       domain.GatewayEventPaymentSucceeded,
			Reference:  session.ID,
			Amount:     fromMinorUnits(session.AmountTotal, string(session.Currency)),
			Currency:   strings.ToUpper(string(session.Currency)),
			OccurredAt: occurredAt,
		}, nil

	case "checkout.session.async_payment_failed", "checkout.session.expired":
		session, err := parseSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		return &domain.GatewayEvent{
			Gateway:       domain.GatewayStripe,
			Type:          domain.GatewayEventPaymentFailed,
			Reference:     session.ID,
			Amount:        fromMinorUnits(session.AmountTotal, string(session.Currency)),
			Currency:      strings.ToUpper(string(session.Currency)),
			FailureReason: string(event.Type),
			OccurredAt:    occurredAt,
		}, nil

	default:
		return ignoredEvent("", occurredAt), nil
	}
}

// PollStatus fetches the current state of a checkout session by id
func (g *Gateway) PollStatus(ctx context.Context, reference string) (*domain.GatewayEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	params := &stripesdk.CheckoutSessionParams{}
	params.Context = ctx

	var session *stripesdk.CheckoutSession
	err := g.breaker.Call(func() error {
		var callErr error
		session, callErr = g.client.CheckoutSessions.Get(reference, params)
		return callErr
	})
	if err != nil {
		return nil, g.mapError(err)
	}

	now := time.Now()
	switch {
	case session.PaymentStatus == stripesdk.CheckoutSessionPaymentStatusPaid:
		return &domain.GatewayEvent{
			Gateway:    domain.GatewayStripe,
			Type:       domain.GatewayEventPaymentSucceeded,
			Reference:  session.ID,
			Amount:     fromMinorUnits(session.AmountTotal, string(session.Currency)),
			Currency:   strings.ToUpper(string(session.Currency)),
			OccurredAt: now,
		}, nil

	case session.Status == stripesdk.CheckoutSessionStatusExpired:
		return &domain.GatewayEvent{
			Gateway:       domain.GatewayStripe,
			Type:          domain.GatewayEventPaymentFailed,
			Reference:     session.ID,
			FailureReason: "checkout session expired",
			OccurredAt:    now,
		}, nil

	default:
		// Session still open, payer has not completed payment
		return ignoredEvent(session.ID, now), nil
	}
}

// mapError converts stripe-go errors into gateway errors so the SDK does not
// leak into the service layer
func (g *Gateway) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewGatewayError("stripe", "TIMEOUT", "stripe request timed out",
			pkgerrors.CategoryNetworkError, true)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return pkgerrors.NewGatewayError("stripe", "CIRCUIT_OPEN", "stripe temporarily unavailable",
			pkgerrors.CategorySystemError, true)
	}

	var stripeErr *stripesdk.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Code == stripesdk.ErrorCodeCardDeclined:
			return pkgerrors.NewGatewayError("stripe", "DECLINED", "card was declined",
				pkgerrors.CategoryDeclined, false).WithGatewayMessage(stripeErr.Msg)
		case stripeErr.Type == stripesdk.ErrorTypeInvalidRequest:
			return pkgerrors.NewGatewayError("stripe", "INVALID_REQUEST", "invalid request to stripe",
				pkgerrors.CategoryInvalidRequest, false).WithGatewayMessage(stripeErr.Msg)
		case stripeErr.Type == stripesdk.ErrorType("authentication_error"):
			return pkgerrors.NewGatewayError("stripe", "AUTHENTICATION", "stripe authentication failed",
				pkgerrors.CategoryAuthentication, false).WithGatewayMessage(stripeErr.Msg)
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return pkgerrors.NewGatewayError("stripe", "RATE_LIMITED", "stripe rate limit hit",
				pkgerrors.CategoryRateLimited, true).WithGatewayMessage(stripeErr.Msg)
		case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
			return pkgerrors.NewGatewayError("stripe", "UNAVAILABLE", "stripe is unavailable",
				pkgerrors.CategorySystemError, true).WithGatewayMessage(stripeErr.Msg)
		}
		return pkgerrors.NewGatewayError("stripe", "ERROR", "stripe error",
			pkgerrors.CategorySystemError, false).WithGatewayMessage(stripeErr.Msg)
	}

	return pkgerrors.NewGatewayError("stripe", "ERROR", fmt.Sprintf("stripe call failed: %v", err),
		pkgerrors.CategoryNetworkError, true)
}

func parseSession(raw json.RawMessage) (*stripesdk.CheckoutSession, error) {
	var session stripesdk.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("parse checkout session payload: %w", err)
	}
	return &session, nil
}

func ignoredEvent(ref string, at time.Time) *domain.GatewayEvent {
	return &domain.GatewayEvent{
		Gateway:    domain.GatewayStripe,
		Type:       domain.GatewayEventIgnored,
		Reference:  ref,
		OccurredAt: at,
	}
}
