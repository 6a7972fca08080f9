package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
)

// PaymentRecordRepository implements ports.PaymentRecordRepository against PostgreSQL
type PaymentRecordRepository struct{}

// NewPaymentRecordRepository creates a new payment record repository
func NewPaymentRecordRepository() *PaymentRecordRepository {
	return &PaymentRecordRepository{}
}

const paymentRecordColumns = `id, agreement_id, installment_id, gateway, gateway_ref, status,
	transaction_amount, transaction_currency, dashboard_amount, dashboard_currency,
	exchange_rate, payer_id, payee_id, failure_reason, processed_at, created_at, updated_at`

// Create inserts a new pending record for a checkout attempt
func (r *PaymentRecordRepository) Create(ctx context.Context, tx ports.DBTX, record *domain.PaymentRecord) error {
	transactionAmount, err := decimalToNumeric(record.TransactionAmount)
	if err != nil {
		return fmt.Errorf("convert transaction amount: %w", err)
	}
	dashboardAmount, err := decimalToNumeric(record.DashboardAmount)
	if err != nil {
		return fmt.Errorf("convert dashboard amount: %w", err)
	}
	exchangeRate, err := decimalToNumeric(record.ExchangeRate)
	if err != nil {
		return fmt.Errorf("convert exchange rate: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_records (id, agreement_id, installment_id, gateway, gateway_ref, status,
			transaction_amount, transaction_currency, dashboard_amount, dashboard_currency,
			exchange_rate, payer_id, payee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID,
		record.AgreementID,
		record.InstallmentID,
		string(record.Gateway),
		record.GatewayRef,
		string(record.Status),
		transactionAmount,
		record.TransactionCurrency,
		dashboardAmount,
		record.DashboardCurrency,
		exchangeRate,
		record.PayerID,
		record.PayeeID,
	)
	if err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}

// GetByGatewayRef retrieves a record by its gateway-native reference
func (r *PaymentRecordRepository) GetByGatewayRef(ctx context.Context, db ports.DBTX, gateway domain.Gateway, ref string) (*domain.PaymentRecord, error) {
	row := db.QueryRow(ctx,
		`SELECT `+paymentRecordColumns+` FROM payment_records WHERE gateway = $1 AND gateway_ref = $2`,
		string(gateway), ref)

	record, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get payment record by gateway ref: %w", err)
	}
	return record, nil
}

// GetByRef retrieves a record by reference alone, any gateway
func (r *PaymentRecordRepository) GetByRef(ctx context.Context, db ports.DBTX, ref string) (*domain.PaymentRecord, error) {
	row := db.QueryRow(ctx,
		`SELECT `+paymentRecordColumns+` FROM payment_records WHERE gateway_ref = $1`, ref)

	record, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get payment record by ref: %w", err)
	}
	return record, nil
}

// MarkSucceeded transitions a record to succeeded, guarded for replays
func (r *PaymentRecordRepository) MarkSucceeded(ctx context.Context, tx ports.DBTX, id string, processedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payment_records
		SET status = 'succeeded',
		    processed_at = $2,
		    failure_reason = NULL,
		    updated_at = now()
		WHERE id = $1 AND status <> 'succeeded'`,
		id, processedAt)
	if err != nil {
		return false, fmt.Errorf("mark record succeeded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed records a gateway-reported failure, never downgrading succeeded
func (r *PaymentRecordRepository) MarkFailed(ctx context.Context, tx ports.DBTX, id string, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payment_records
		SET status = 'failed',
		    failure_reason = $2,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('succeeded', 'refunded', 'failed')`,
		id, nullText(reason))
	if err != nil {
		return false, fmt.Errorf("mark record failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasSucceededForInstallment reports whether any succeeded record targets the installment
func (r *PaymentRecordRepository) HasSucceededForInstallment(ctx context.Context, db ports.DBTX, installmentID string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_records
			WHERE installment_id = $1 AND status = 'succeeded'
		)`, installmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check succeeded records: %w", err)
	}
	return exists, nil
}

// ListStalePending returns pending records created before the cutoff, oldest first
func (r *PaymentRecordRepository) ListStalePending(ctx context.Context, db ports.DBTX, olderThan time.Time, limit int32) ([]*domain.PaymentRecord, error) {
	rows, err := db.Query(ctx,
		`SELECT `+paymentRecordColumns+`
		 FROM payment_records
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending records: %w", err)
	}
	defer rows.Close()

	var records []*domain.PaymentRecord
	for rows.Next() {
		record, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanPaymentRecord(row pgx.Row) (*domain.PaymentRecord, error) {
	var rec domain.PaymentRecord
	var transactionAmount, dashboardAmount, exchangeRate pgtype.Numeric
	var gateway, status string

	err := row.Scan(&rec.ID, &rec.AgreementID, &rec.InstallmentID, &gateway,
		&rec.GatewayRef, &status, &transactionAmount, &rec.TransactionCurrency,
		&dashboardAmount, &rec.DashboardCurrency, &exchangeRate,
		&rec.PayerID, &rec.PayeeID, &rec.FailureReason, &rec.ProcessedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if rec.TransactionAmount, err = pgNumericToDecimal(transactionAmount); err != nil {
		return nil, fmt.Errorf("convert transaction amount: %w", err)
	}
	if rec.DashboardAmount, err = pgNumericToDecimal(dashboardAmount); err != nil {
		return nil, fmt.Errorf("convert dashboard amount: %w", err)
	}
	if rec.ExchangeRate, err = pgNumericToDecimal(exchangeRate); err != nil {
		return nil, fmt.Errorf("convert exchange rate: %w", err)
	}
	rec.Gateway = domain.Gateway(gateway)
	rec.Status = domain.PaymentRecordStatus(status)
	return &rec, nil
}
