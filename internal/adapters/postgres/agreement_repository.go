package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
)

// AgreementRepository implements ports.AgreementRepository against PostgreSQL
type AgreementRepository struct{}

// NewAgreementRepository creates a new agreement repository
func NewAgreementRepository() *AgreementRepository {
	return &AgreementRepository{}
}

// Create inserts an agreement together with its installment schedule
func (r *AgreementRepository) Create(ctx context.Context, tx ports.DBTX, agreement *domain.Agreement) error {
	totalAmount, err := decimalToNumeric(agreement.TotalAmount)
	if err != nil {
		return fmt.Errorf("convert total amount: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agreements (id, student_id, writer_id, title, currency, total_amount, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agreement.ID,
		agreement.StudentID,
		agreement.WriterID,
		agreement.Title,
		agreement.Currency,
		totalAmount,
		string(agreement.PaymentStatus),
		string(agreement.Status),
	)
	if err != nil {
		return fmt.Errorf("create agreement: %w", err)
	}

	for i := range agreement.Installments {
		inst := &agreement.Installments[i]

		amount, err := decimalToNumeric(inst.Amount)
		if err != nil {
			return fmt.Errorf("convert installment %d amount: %w", i, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO installments (id, agreement_id, position, amount, due_date, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			inst.ID,
			agreement.ID,
			inst.Position,
			amount,
			inst.DueDate,
			string(inst.Status),
		)
		if err != nil {
			return fmt.Errorf("create installment %d: %w", i, err)
		}
	}

	return nil
}

// GetByID retrieves an agreement with its installments in schedule order
func (r *AgreementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Agreement, error) {
	row := db.QueryRow(ctx, `
		SELECT id, student_id, writer_id, title, currency, total_amount, paid_amount,
		       payment_status, status, version, created_at, updated_at
		FROM agreements
		WHERE id = $1`, id)

	agreement, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgreementNotFound
		}
		return nil, fmt.Errorf("get agreement by id: %w", err)
	}

	installments, err := r.queryInstallments(ctx, db, `
		SELECT id, agreement_id, position, amount, due_date, status, payment_date, intent_ref,
		       created_at, updated_at
		FROM installments
		WHERE agreement_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get installments: %w", err)
	}

	agreement.Installments = installments
	return agreement, nil
}

// ListIDs returns all agreement ids, for bulk reconciliation sweeps
func (r *AgreementRepository) ListIDs(ctx context.Context, db ports.DBTX) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT id FROM agreements ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agreement ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agreement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetInstallmentsForUpdate loads an agreement's installments with row locks
func (r *AgreementRepository) GetInstallmentsForUpdate(ctx context.Context, tx ports.DBTX, agreementID string) ([]domain.Installment, error) {
	installments, err := r.queryInstallments(ctx, tx, `
		SELECT id, agreement_id, position, amount, due_date, status, payment_date, intent_ref,
		       created_at, updated_at
		FROM installments
		WHERE agreement_id = $1
		ORDER BY position
		FOR UPDATE`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("lock installments: %w", err)
	}
	return installments, nil
}

// MarkInstallmentPaid transitions an installment to paid unless it already is
func (r *AgreementRepository) MarkInstallmentPaid(ctx context.Context, tx ports.DBTX, installmentID string, paidAt time.Time, intentRef string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE installments
		SET status = 'paid',
		    payment_date = $2,
		    intent_ref = COALESCE($3, intent_ref),
		    updated_at = now()
		WHERE id = $1 AND status <> 'paid'`,
		installmentID, paidAt, nullText(intentRef))
	if err != nil {
		return false, fmt.Errorf("mark installment paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetInstallmentStatus sets a non-terminal status, never overwriting paid
func (r *AgreementRepository) SetInstallmentStatus(ctx context.Context, tx ports.DBTX, installmentID string, status domain.InstallmentStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE installments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> 'paid' AND status <> $2`,
		installmentID, string(status))
	if err != nil {
		return false, fmt.Errorf("set installment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecomputeLedger overwrites paid_amount and payment_status from installment
// truth in one statement: the sum of paid installments is the canonical
// ledger value, so incremental and from-scratch paths always agree.
func (r *AgreementRepository) RecomputeLedger(ctx context.Context, tx ports.DBTX, agreementID string) (decimal.Decimal, domain.PaymentStatus, error) {
	row := tx.QueryRow(ctx, `
		UPDATE agreements a
		SET paid_amount = s.paid,
		    payment_status = CASE
		        WHEN s.paid > 0 AND a.total_amount - s.paid <= 0.01 THEN 'completed'
		        WHEN s.paid > 0 THEN 'partial'
		        WHEN a.payment_status = 'failed' THEN 'failed'
		        ELSE a.payment_status
		    END,
		    version = a.version + 1,
		    updated_at = now()
		FROM (
		    SELECT COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid
		    FROM installments
		    WHERE agreement_id = $1
		) s
		WHERE a.id = $1
		RETURNING a.paid_amount, a.payment_status`, agreementID)

	var paidNumeric pgtype.Numeric
	var status string
	if err := row.Scan(&paidNumeric, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, "", domain.ErrAgreementNotFound
		}
		return decimal.Zero, "", fmt.Errorf("recompute ledger: %w", err)
	}

	paid, err := pgNumericToDecimal(paidNumeric)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("convert paid amount: %w", err)
	}
	return paid, domain.PaymentStatus(status), nil
}

func (r *AgreementRepository) queryInstallments(ctx context.Context, db ports.DBTX, sql string, args ...interface{}) ([]domain.Installment, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []domain.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, *inst)
	}
	return installments, rows.Err()
}

func scanAgreement(row pgx.Row) (*domain.Agreement, error) {
	var a domain.Agreement
	var totalAmount, paidAmount pgtype.Numeric
	var paymentStatus, status string

	err := row.Scan(&a.ID, &a.StudentID, &a.WriterID, &a.Title, &a.Currency,
		&totalAmount, &paidAmount, &paymentStatus, &status, &a.Version,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if a.TotalAmount, err = pgNumericToDecimal(totalAmount); err != nil {
		return nil, fmt.Errorf("convert total amount: %w", err)
	}
	if a.PaidAmount, err = pgNumericToDecimal(paidAmount); err != nil {
		return nil, fmt.Errorf("convert paid amount: %w", err)
	}
	a.PaymentStatus = domain.PaymentStatus(paymentStatus)
	a.Status = domain.AgreementStatus(status)
	return &a, nil
}

func scanInstallment(row pgx.Row) (*domain.Installment, error) {
	var inst domain.Installment
	var amount pgtype.Numeric
	var status string

	err := row.Scan(&inst.ID, &inst.AgreementID, &inst.Position, &amount,
		&inst.DueDate, &status, &inst.PaymentDate, &inst.IntentRef,
		&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if inst.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("convert installment amount: %w", err)
	}
	inst.Status = domain.InstallmentStatus(status)
	return &inst, nil
}
