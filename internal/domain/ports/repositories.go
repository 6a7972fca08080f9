package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scribeline/payment-engine/internal/domain"
)

// AgreementRepository defines the interface for agreement and installment
// persistence. Installment mutations are single-row guarded updates so
// concurrent settlements for different installments never lose writes.
type AgreementRepository interface {
	// Create inserts an agreement together with its installment schedule
	Create(ctx context.Context, tx DBTX, agreement *domain.Agreement) error

	// GetByID retrieves an agreement with its installments in schedule order
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Agreement, error)

	// ListIDs returns all agreement ids, for bulk reconciliation sweeps
	ListIDs(ctx context.Context, db DBTX) ([]string, error)

	// GetInstallmentsForUpdate loads an agreement's installments in schedule
	// order with row locks held for the duration of the transaction
	GetInstallmentsForUpdate(ctx context.Context, tx DBTX, agreementID string) ([]domain.Installment, error)

	// MarkInstallmentPaid transitions an installment to paid unless it
	// already is. Returns false when the row was already paid (no-op).
	MarkInstallmentPaid(ctx context.Context, tx DBTX, installmentID string, paidAt time.Time, intentRef string) (bool, error)

	// SetInstallmentStatus sets a non-terminal status on an installment,
	// never overwriting paid. Returns false when nothing changed.
	SetInstallmentStatus(ctx context.Context, tx DBTX, installmentID string, status domain.InstallmentStatus) (bool, error)

	// RecomputeLedger overwrites paid_amount and payment_status from
	// installment truth in a single statement and bumps the version.
	// Returns the recomputed values.
	RecomputeLedger(ctx context.Context, tx DBTX, agreementID string) (decimal.Decimal, domain.PaymentStatus, error)
}

// PaymentRecordRepository defines the interface for payment record
// persistence. Records are append-only aside from status transitions.
type PaymentRecordRepository interface {
	// Create inserts a new pending record for a checkout attempt
	Create(ctx context.Context, tx DBTX, record *domain.PaymentRecord) error

	// GetByGatewayRef retrieves a record by its gateway-native reference
	GetByGatewayRef(ctx context.Context, db DBTX, gateway domain.Gateway, ref string) (*domain.PaymentRecord, error)

	// GetByRef retrieves a record by reference alone; manual verification
	// accepts either gateway's reference format
	GetByRef(ctx context.Context, db DBTX, ref string) (*domain.PaymentRecord, error)

	// MarkSucceeded transitions a record to succeeded and stamps
	// processed_at, guarded so a replay or racing caller becomes a no-op.
	// Returns false when the record was already succeeded.
	MarkSucceeded(ctx context.Context, tx DBTX, id string, processedAt time.Time) (bool, error)

	// MarkFailed records a gateway-reported failure. Succeeded records are
	// never downgraded. Returns false when nothing changed.
	MarkFailed(ctx context.Context, tx DBTX, id string, reason string) (bool, error)

	// HasSucceededForInstallment reports whether any succeeded record
	// targets the given installment
	HasSucceededForInstallment(ctx context.Context, db DBTX, installmentID string) (bool, error)

	// ListStalePending returns pending records created before the cutoff,
	// oldest first, for the dangling-session sweep
	ListStalePending(ctx context.Context, db DBTX, olderThan time.Time, limit int32) ([]*domain.PaymentRecord, error)
}
