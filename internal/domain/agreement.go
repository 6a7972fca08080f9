package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundingEpsilon is the tolerance used when comparing ledger amounts.
// Remaining balances at or below this value count as fully settled.
var RoundingEpsilon = decimal.NewFromFloat(0.01)

// AgreementStatus represents the contractual lifecycle of an agreement
type AgreementStatus string

const (
	AgreementStatusPending   AgreementStatus = "pending"
	AgreementStatusActive    AgreementStatus = "active"
	AgreementStatusCompleted AgreementStatus = "completed"
	AgreementStatusCancelled AgreementStatus = "cancelled"
	AgreementStatusDisputed  AgreementStatus = "disputed"
)

// PaymentStatus represents the financial state of an agreement, derived
// from its installments
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// InstallmentStatus represents the state of a single scheduled payment.
// "paid" is terminal; "processing" is a transient marker that only the
// reconciliation routine may write or clear.
type InstallmentStatus string

const (
	InstallmentStatusPending    InstallmentStatus = "pending"
	InstallmentStatusProcessing InstallmentStatus = "processing"
	InstallmentStatusPaid       InstallmentStatus = "paid"
	InstallmentStatusFailed     InstallmentStatus = "failed"
	InstallmentStatusOverdue    InstallmentStatus = "overdue"
)

// Installment is one scheduled partial payment within an agreement.
// Amount is always in the agreement's unit of account (USD).
type Installment struct {
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DueDate     time.Time         `json:"due_date"`
	PaymentDate *time.Time        `json:"payment_date,omitempty"`
	IntentRef   *string           `json:"intent_ref,omitempty"`
	ID          string            `json:"id"`
	AgreementID string            `json:"agreement_id"`
	Status      InstallmentStatus `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	Position    int               `json:"position"`
}

// IsPaid returns true if the installment has reached its terminal state
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

// IsPayable returns true if a checkout may target this installment
func (i *Installment) IsPayable() bool {
	return i.Status == InstallmentStatusPending ||
		i.Status == InstallmentStatusFailed ||
		i.Status == InstallmentStatusOverdue
}

// Agreement is a contracted project between a student and a writer with a
// payment schedule. TotalAmount and PaidAmount are in USD; PaidAmount is
// derived from installment state and must equal the sum of paid installments.
type Agreement struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	WriterID      string          `json:"writer_id"`
	Title         string          `json:"title"`
	Currency      string          `json:"currency"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Status        AgreementStatus `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Installments  []Installment   `json:"installments"`
	Version       int64           `json:"version"`
}

// RemainingAmount returns totalAmount minus paidAmount
func (a *Agreement) RemainingAmount() decimal.Decimal {
	return a.TotalAmount.Sub(a.PaidAmount)
}

// IsFullyPaid returns true if the remaining balance is within rounding tolerance
func (a *Agreement) IsFullyPaid() bool {
	return a.RemainingAmount().LessThanOrEqual(RoundingEpsilon)
}

// FindInstallment returns the installment with the given id, or nil
func (a *Agreement) FindInstallment(id string) *Installment {
	for idx := range a.Installments {
		if a.Installments[idx].ID == id {
			return &a.Installments[idx]
		}
	}
	return nil
}

// NextUnpaidInstallment returns the first payable installment in schedule
// order, or nil if every installment is paid or in flight
func (a *Agreement) NextUnpaidInstallment() *Installment {
	for idx := range a.Installments {
		if a.Installments[idx].IsPayable() {
			return &a.Installments[idx]
		}
	}
	return nil
}

// DerivedPaidAmount recomputes the paid total from installment state. This
// is the canonical ledger truth; the stored PaidAmount must always agree.
func (a *Agreement) DerivedPaidAmount() decimal.Decimal {
	sum := decimal.Zero
	for idx := range a.Installments {
		if a.Installments[idx].IsPaid() {
			sum = sum.Add(a.Installments[idx].Amount)
		}
	}
	return sum
}

// DerivePaymentStatus maps a paid total to the agreement payment status
func (a *Agreement) DerivePaymentStatus(paid decimal.Decimal) PaymentStatus {
	if a.TotalAmount.Sub(paid).LessThanOrEqual(RoundingEpsilon) && paid.IsPositive() {
		return PaymentStatusCompleted
	}
	if paid.IsPositive() {
		return PaymentStatusPartial
	}
	if a.PaymentStatus == PaymentStatusFailed {
		return PaymentStatusFailed
	}
	return PaymentStatusPending
}
