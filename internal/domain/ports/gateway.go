package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/scribeline/payment-engine/internal/domain"
)

// CheckoutSessionRequest carries everything a gateway needs to create a
// hosted payment session. Amount is already converted to the settlement
// currency; the metadata bundle must be sufficient to reconstruct the
// agreement/installment linkage purely from the gateway's event.
type CheckoutSessionRequest struct {
	AgreementID   string
	InstallmentID string // empty means the full remaining balance
	PayerID       string
	PayeeID       string
	Description   string
	Currency      string
	Amount        decimal.Decimal
}

// CheckoutSession is the gateway's handle for a created hosted session
type CheckoutSession struct {
	Reference   string // gateway-native session/link/intent id
	RedirectURL string
}

// PaymentGateway is the uniform capability interface over an external
// payment processor. The settlement and reconciliation services contain no
// gateway-specific branching beyond adapter selection.
type PaymentGateway interface {
	// Name identifies the gateway for record keeping and selection
	Name() domain.Gateway

	// CreateSession creates a hosted payment session and returns the
	// redirect handle. Must be time-bounded via ctx.
	CreateSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// VerifyWebhook authenticates a raw webhook payload against the
	// gateway's signing secret and normalizes it. Returns
	// domain.ErrWebhookSignatureInvalid on mismatch without parsing further.
	VerifyWebhook(rawBody []byte, signatureHeader string) (*domain.GatewayEvent, error)

	// PollStatus fetches the current settlement state of a session by its
	// gateway-native reference. Used by manual verification when webhook
	// delivery fails.
	PollStatus(ctx context.Context, reference string) (*domain.GatewayEvent, error)
}

// GatewayRegistry resolves a gateway identifier to its adapter
type GatewayRegistry interface {
	Gateway(name domain.Gateway) (PaymentGateway, error)
}
