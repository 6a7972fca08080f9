package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayEventType is the normalized outcome of a gateway webhook event
type GatewayEventType string

const (
	GatewayEventPaymentSucceeded GatewayEventType = "payment.succeeded"
	GatewayEventPaymentFailed    GatewayEventType = "payment.failed"
	GatewayEventIgnored          GatewayEventType = "ignored"
)

// GatewayEvent is a gateway webhook or poll result normalized to the shape
// the settlement service consumes. Amount/Currency are in the settlement
// currency as reported by the gateway; ledger math never uses them directly.
type GatewayEvent struct {
	OccurredAt    time.Time        `json:"occurred_at"`
	Gateway       Gateway          `json:"gateway"`
	Type          GatewayEventType `json:"type"`
	Reference     string           `json:"reference"`
	Currency      string           `json:"currency"`
	FailureReason string           `json:"failure_reason,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
}

// PaymentEventType identifies a downstream notification event
type PaymentEventType string

const (
	PaymentEventProcessed PaymentEventType = "payment.processed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is the fire-and-forget domain event emitted after a
// settlement transition commits
type PaymentEvent struct {
	OccurredAt    time.Time        `json:"occurred_at"`
	Type          PaymentEventType `json:"type"`
	AgreementID   string           `json:"agreement_id"`
	InstallmentID string           `json:"installment_id,omitempty"`
	RecordID      string           `json:"record_id"`
	Gateway       Gateway          `json:"gateway"`
	Currency      string           `json:"currency"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Amount        decimal.Decimal  `json:"amount"`
}
