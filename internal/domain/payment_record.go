package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway identifies an external payment processor
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayRazorpay Gateway = "razorpay"
)

// Valid returns true for a known gateway identifier
func (g Gateway) Valid() bool {
	return g == GatewayStripe || g == GatewayRazorpay
}

// PaymentRecordStatus represents the settlement state of one checkout attempt
type PaymentRecordStatus string

const (
	PaymentRecordStatusPending    PaymentRecordStatus = "pending"
	PaymentRecordStatusProcessing PaymentRecordStatus = "processing"
	PaymentRecordStatusSucceeded  PaymentRecordStatus = "succeeded"
	PaymentRecordStatusFailed     PaymentRecordStatus = "failed"
	PaymentRecordStatusCanceled   PaymentRecordStatus = "canceled"
	PaymentRecordStatusRefunded   PaymentRecordStatus = "refunded"
)

// IsTerminal returns true once the record may no longer transition
func (s PaymentRecordStatus) IsTerminal() bool {
	return s == PaymentRecordStatusSucceeded ||
		s == PaymentRecordStatusCanceled ||
		s == PaymentRecordStatusRefunded
}

// PaymentRecord is the ledger's record of one checkout attempt against an
// external gateway. Records are append-only; a refund appends a new
// negative-amount record rather than mutating history.
//
// TransactionAmount/TransactionCurrency is what the payer actually pays;
// DashboardAmount/DashboardCurrency is the same value normalized to USD for
// ledger bookkeeping, with the ExchangeRate captured at creation time.
// A nil InstallmentID means the attempt targets the full remaining balance.
type PaymentRecord struct {
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	ProcessedAt         *time.Time          `json:"processed_at,omitempty"`
	InstallmentID       *string             `json:"installment_id,omitempty"`
	FailureReason       *string             `json:"failure_reason,omitempty"`
	ID                  string              `json:"id"`
	AgreementID         string              `json:"agreement_id"`
	GatewayRef          string              `json:"gateway_ref"`
	TransactionCurrency string              `json:"transaction_currency"`
	DashboardCurrency   string              `json:"dashboard_currency"`
	PayerID             string              `json:"payer_id"`
	PayeeID             string              `json:"payee_id"`
	Gateway             Gateway             `json:"gateway"`
	Status              PaymentRecordStatus `json:"status"`
	TransactionAmount   decimal.Decimal     `json:"transaction_amount"`
	DashboardAmount     decimal.Decimal     `json:"dashboard_amount"`
	ExchangeRate        decimal.Decimal     `json:"exchange_rate"`
}

// TargetsFullBalance returns true when the record is a full-balance attempt
func (r *PaymentRecord) TargetsFullBalance() bool {
	return r.InstallmentID == nil
}

// TargetInstallmentID safely retrieves the installment reference
func (r *PaymentRecord) TargetInstallmentID() string {
	if r.InstallmentID != nil {
		return *r.InstallmentID
	}
	return ""
}
