package reconcile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/internal/services/settlement"
	"github.com/scribeline/payment-engine/pkg/observability"
	"github.com/scribeline/payment-engine/pkg/timeutil"
)

// EventProcessor applies normalized gateway events to the ledger. Satisfied
// by the settlement service; the sweep reuses its transition so polled and
// webhook-delivered outcomes cannot diverge.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *domain.GatewayEvent) (*settlement.Result, error)
}

// AgreementReport describes what one reconciliation pass changed
type AgreementReport struct {
	AgreementID          string               `json:"agreement_id"`
	PaymentStatus        domain.PaymentStatus `json:"payment_status"`
	PaidAmount           decimal.Decimal      `json:"paid_amount"`
	InstallmentsRepaired int                  `json:"installments_repaired"`
	LedgerCorrected      bool                 `json:"ledger_corrected"`
}

// BulkReport aggregates a sweep over every agreement
type BulkReport struct {
	AgreementsChecked    int `json:"agreements_checked"`
	AgreementsCorrected  int `json:"agreements_corrected"`
	InstallmentsRepaired int `json:"installments_repaired"`
}

// SweepReport aggregates a stale-pending record sweep
type SweepReport struct {
	RecordsChecked int `json:"records_checked"`
	RecordsSettled int `json:"records_settled"`
	RecordsFailed  int `json:"records_failed"`
	PollErrors     int `json:"poll_errors"`
}

// Service repairs drift between stored ledger fields and installment truth.
// Every operation is idempotent: a second run over the same state is a no-op.
type Service struct {
	db         ports.DBPort
	agreements ports.AgreementRepository
	records    ports.PaymentRecordRepository
	gateways   ports.GatewayRegistry
	processor  EventProcessor
	config     config.ReconcileConfig
	logger     *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(
	db ports.DBPort,
	agreements ports.AgreementRepository,
	records ports.PaymentRecordRepository,
	gateways ports.GatewayRegistry,
	processor EventProcessor,
	cfg config.ReconcileConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		agreements: agreements,
		records:    records,
		gateways:   gateways,
		processor:  processor,
		config:     cfg,
		logger:     logger,
	}
}

// ReconcileAgreement normalizes stuck installments and overwrites the stored
// ledger fields from installment truth in one transaction. An installment
// left in processing is promoted to paid when a succeeded record exists for
// it, reverted to pending once the grace period has passed, and otherwise
// left alone for the next pass.
func (s *Service) ReconcileAgreement(ctx context.Context, agreementID string) (*AgreementReport, error) {
	report := &AgreementReport{AgreementID: agreementID}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		report.InstallmentsRepaired = 0

		agreement, err := s.agreements.GetByID(ctx, tx, agreementID)
		if err != nil {
			return err
		}
		storedPaid := agreement.PaidAmount

		installments, err := s.agreements.GetInstallmentsForUpdate(ctx, tx, agreementID)
		if err != nil {
			return err
		}

		now := timeutil.Now()
		for i := range installments {
			inst := &installments[i]
			if inst.Status != domain.InstallmentStatusProcessing {
				continue
			}

			settled, err := s.records.HasSucceededForInstallment(ctx, tx, inst.ID)
			if err != nil {
				return err
			}
			if settled {
				marked, err := s.agreements.MarkInstallmentPaid(ctx, tx, inst.ID, now, "")
				if err != nil {
					return err
				}
				if marked {
					report.InstallmentsRepaired++
				}
				continue
			}

			if now.Sub(inst.UpdatedAt) >= s.config.ProcessingGracePeriod {
				changed, err := s.agreements.SetInstallmentStatus(ctx, tx, inst.ID, domain.InstallmentStatusPending)
				if err != nil {
					return err
				}
				if changed {
					report.InstallmentsRepaired++
				}
			}
		}

		paid, status, err := s.agreements.RecomputeLedger(ctx, tx, agreementID)
		if err != nil {
			return err
		}

		report.PaidAmount = paid
		report.PaymentStatus = status
		report.LedgerCorrected = !paid.Equal(storedPaid) || status != agreement.PaymentStatus
		return nil
	})
	if err != nil {
		observability.RecordReconciliation("agreement", "error", 0)
		return nil, err
	}

	if report.InstallmentsRepaired > 0 || report.LedgerCorrected {
		s.logger.Info("agreement reconciled",
			zap.String("agreement_id", agreementID),
			zap.Int("installments_repaired", report.InstallmentsRepaired),
			zap.Bool("ledger_corrected", report.LedgerCorrected),
			zap.String("paid_amount", report.PaidAmount.String()),
		)
	}
	observability.RecordReconciliation("agreement", "ok", report.InstallmentsRepaired)
	return report, nil
}

// FixPaymentCalculations reconciles every agreement and reports how many had
// drifted. Drift is repaired, never surfaced as an error.
func (s *Service) FixPaymentCalculations(ctx context.Context) (*BulkReport, error) {
	ids, err := s.agreements.ListIDs(ctx, s.db.GetDB())
	if err != nil {
		observability.RecordReconciliation("bulk", "error", 0)
		return nil, err
	}

	report := &BulkReport{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		agreementReport, err := s.ReconcileAgreement(ctx, id)
		if err != nil {
			s.logger.Error("bulk reconciliation skipped agreement",
				zap.String("agreement_id", id),
				zap.Error(err),
			)
			continue
		}

		report.AgreementsChecked++
		report.InstallmentsRepaired += agreementReport.InstallmentsRepaired
		if agreementReport.LedgerCorrected {
			report.AgreementsCorrected++
		}
	}

	observability.RecordReconciliation("bulk", "ok", report.AgreementsCorrected)
	s.logger.Info("bulk ledger reconciliation finished",
		zap.Int("agreements_checked", report.AgreementsChecked),
		zap.Int("agreements_corrected", report.AgreementsCorrected),
		zap.Int("installments_repaired", report.InstallmentsRepaired),
	)
	return report, nil
}

// FixPaymentStatuses polls the owning gateway for every stale pending record
// and funnels the outcome through the settlement transition. This resolves
// sessions whose webhook was never delivered and sessions the payer abandoned.
func (s *Service) FixPaymentStatuses(ctx context.Context) (*SweepReport, error) {
	cutoff := timeutil.Now().Add(-s.config.StalePendingAge)
	stale, err := s.records.ListStalePending(ctx, s.db.GetDB(), cutoff, s.config.SweepLimit)
	if err != nil {
		observability.RecordReconciliation("sweep", "error", 0)
		return nil, err
	}

	report := &SweepReport{}
	for _, record := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.RecordsChecked++

		gateway, err := s.gateways.Gateway(record.Gateway)
		if err != nil {
			report.PollErrors++
			continue
		}

		event, err := gateway.PollStatus(ctx, record.GatewayRef)
		if err != nil {
			report.PollErrors++
			s.logger.Warn("stale record poll failed",
				zap.String("record_id", record.ID),
				zap.String("gateway", string(record.Gateway)),
				zap.Error(err),
			)
			continue
		}

		result, err := s.processor.ProcessEvent(ctx, event)
		if err != nil {
			report.PollErrors++
			continue
		}
		switch result.Outcome {
		case settlement.OutcomeSettled:
			report.RecordsSettled++
		case settlement.OutcomeRecordedFailure:
			report.RecordsFailed++
		}
	}

	observability.RecordReconciliation("sweep", "ok", report.RecordsSettled+report.RecordsFailed)
	s.logger.Info("stale pending sweep finished",
		zap.Int("records_checked", report.RecordsChecked),
		zap.Int("records_settled", report.RecordsSettled),
		zap.Int("records_failed", report.RecordsFailed),
		zap.Int("poll_errors", report.PollErrors),
	)
	return report, nil
}
