package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/pkg/observability"
	"github.com/scribeline/payment-engine/pkg/timeutil"
	"github.com/scribeline/payment-engine/pkg/resilience"
)

// Outcome classifies what a settlement attempt did
type Outcome string

const (
	OutcomeSettled          Outcome = "settled"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeRecordedFailure  Outcome = "recorded_failure"
	OutcomeIgnored          Outcome = "ignored"
)

// Result reports the effect of processing one gateway event
type Result struct {
	Outcome          Outcome              `json:"outcome"`
	RecordID         string               `json:"record_id,omitempty"`
	AgreementID      string               `json:"agreement_id,omitempty"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status,omitempty"`
	PaidAmount       decimal.Decimal      `json:"paid_amount"`
	InstallmentsPaid int                  `json:"installments_paid"`
}

// txAttempts bounds the commit retry loop for transient database failures.
// Gateways redeliver webhooks on non-2xx, so exhausting retries is safe.
const txAttempts = 3

// Service applies verified gateway events to the ledger. Both gateways and
// the manual verification path funnel through the same transition; only
// event parsing is gateway-specific.
type Service struct {
	db         ports.DBPort
	agreements ports.AgreementRepository
	records    ports.PaymentRecordRepository
	gateways   ports.GatewayRegistry
	emitter    ports.EventEmitter
	backoff    *resilience.ExponentialBackoff
	logger     *zap.Logger
}

// NewService creates a new settlement service
func NewService(
	db ports.DBPort,
	agreements ports.AgreementRepository,
	records ports.PaymentRecordRepository,
	gateways ports.GatewayRegistry,
	emitter ports.EventEmitter,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		agreements: agreements,
		records:    records,
		gateways:   gateways,
		emitter:    emitter,
		backoff:    resilience.DefaultExponentialBackoff(),
		logger:     logger,
	}
}

// ProcessEvent applies one verified, normalized gateway event. Replays are
// safe: an event whose record already succeeded is acknowledged without any
// mutation, and the row-level guards make the racing case a no-op too.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.GatewayEvent) (*Result, error) {
	if event.Type == domain.GatewayEventIgnored || event.Reference == "" {
		return &Result{Outcome: OutcomeIgnored}, nil
	}

	record, err := s.records.GetByGatewayRef(ctx, s.db.GetDB(), event.Gateway, event.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) || domain.GetErrorCode(err) == domain.ErrorCodeRecordNotFound {
			s.logger.Warn("gateway event references unknown record",
				zap.String("gateway", string(event.Gateway)),
				zap.String("reference", event.Reference),
			)
			return &Result{Outcome: OutcomeUnknownReference}, nil
		}
		return nil, err
	}

	if record.Status == domain.PaymentRecordStatusSucceeded {
		return &Result{
			Outcome:     OutcomeAlreadyProcessed,
			RecordID:    record.ID,
			AgreementID: record.AgreementID,
		}, nil
	}

	switch event.Type {
	case domain.GatewayEventPaymentSucceeded:
		return s.settle(ctx, record, event)
	case domain.GatewayEventPaymentFailed:
		return s.recordFailure(ctx, record, event)
	default:
		return &Result{Outcome: OutcomeIgnored}, nil
	}
}

// ManualVerify polls the owning gateway for the current session state and
// applies the same transition a webhook would. Used when webhook delivery
// failed and the payer reports a completed payment.
func (s *Service) ManualVerify(ctx context.Context, reference string) (*Result, error) {
	record, err := s.records.GetByRef(ctx, s.db.GetDB(), reference)
	if err != nil {
		return nil, err
	}

	// Already settled, nothing to poll for
	if record.Status == domain.PaymentRecordStatusSucceeded {
		return &Result{
			Outcome:     OutcomeAlreadyProcessed,
			RecordID:    record.ID,
			AgreementID: record.AgreementID,
		}, nil
	}

	gateway, err := s.gateways.Gateway(record.Gateway)
	if err != nil {
		return nil, err
	}

	event, err := gateway.PollStatus(ctx, record.GatewayRef)
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual verification polled gateway",
		zap.String("record_id", record.ID),
		zap.String("gateway", string(record.Gateway)),
		zap.String("event_type", string(event.Type)),
	)
	return s.ProcessEvent(ctx, event)
}

// settle marks the record succeeded and the targeted installments paid, then
// recomputes the agreement ledger, all in one transaction
func (s *Service) settle(ctx context.Context, record *domain.PaymentRecord, event *domain.GatewayEvent) (*Result, error) {
	now := timeutil.Now()
	result := &Result{
		RecordID:    record.ID,
		AgreementID: record.AgreementID,
	}

	err := s.withRetry(ctx, func(ctx context.Context, tx pgx.Tx) error {
		result.InstallmentsPaid = 0

		transitioned, err := s.records.MarkSucceeded(ctx, tx, record.ID, now)
		if err != nil {
			return err
		}
		if !transitioned {
			// A concurrent delivery won the race inside this window
			result.Outcome = OutcomeAlreadyProcessed
			return nil
		}

		if record.TargetsFullBalance() {
			paid, err := s.markGreedy(ctx, tx, record, now)
			if err != nil {
				return err
			}
			result.InstallmentsPaid = paid
		} else {
			marked, err := s.agreements.MarkInstallmentPaid(ctx, tx, record.TargetInstallmentID(), now, record.GatewayRef)
			if err != nil {
				return err
			}
			if marked {
				result.InstallmentsPaid = 1
			}
		}

		paidAmount, paymentStatus, err := s.agreements.RecomputeLedger(ctx, tx, record.AgreementID)
		if err != nil {
			return err
		}

		result.Outcome = OutcomeSettled
		result.PaidAmount = paidAmount
		result.PaymentStatus = paymentStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomeSettled {
		observability.RecordSettlement(string(record.Gateway), settlementPath(record),
			record.DashboardAmount.Mul(decimal.NewFromInt(100)).IntPart(), result.InstallmentsPaid)
		s.logger.Info("payment settled",
			zap.String("record_id", record.ID),
			zap.String("agreement_id", record.AgreementID),
			zap.String("paid_amount", result.PaidAmount.String()),
			zap.String("payment_status", string(result.PaymentStatus)),
			zap.Int("installments_paid", result.InstallmentsPaid),
		)
		s.emitter.Emit(domain.PaymentEvent{
			OccurredAt:    now,
			Type:          domain.PaymentEventProcessed,
			AgreementID:   record.AgreementID,
			InstallmentID: record.TargetInstallmentID(),
			RecordID:      record.ID,
			Gateway:       record.Gateway,
			Currency:      record.DashboardCurrency,
			PaymentStatus: result.PaymentStatus,
			Amount:        record.DashboardAmount,
		})
	}

	return result, nil
}

// markGreedy distributes a full-balance or custom payment across unpaid
// installments in schedule order. A partial remainder smaller than the next
// installment stays unallocated; the ledger recompute still credits the
// exact paid sum.
func (s *Service) markGreedy(ctx context.Context, tx pgx.Tx, record *domain.PaymentRecord, now time.Time) (int, error) {
	installments, err := s.agreements.GetInstallmentsForUpdate(ctx, tx, record.AgreementID)
	if err != nil {
		return 0, err
	}

	budget := record.DashboardAmount
	paid := 0
	for i := range installments {
		inst := &installments[i]
		if inst.IsPaid() {
			continue
		}
		if budget.LessThan(inst.Amount.Sub(domain.RoundingEpsilon)) {
			break
		}
		marked, err := s.agreements.MarkInstallmentPaid(ctx, tx, inst.ID, now, record.GatewayRef)
		if err != nil {
			return paid, err
		}
		if marked {
			paid++
		}
		budget = budget.Sub(inst.Amount)
	}
	return paid, nil
}

// recordFailure notes a gateway-reported failure without ever downgrading a
// settled payment
func (s *Service) recordFailure(ctx context.Context, record *domain.PaymentRecord, event *domain.GatewayEvent) (*Result, error) {
	result := &Result{
		RecordID:    record.ID,
		AgreementID: record.AgreementID,
	}

	reason := event.FailureReason
	if reason == "" {
		reason = "payment failed"
	}

	err := s.withRetry(ctx, func(ctx context.Context, tx pgx.Tx) error {
		transitioned, err := s.records.MarkFailed(ctx, tx, record.ID, reason)
		if err != nil {
			return err
		}
		if !transitioned {
			result.Outcome = OutcomeAlreadyProcessed
			return nil
		}

		if !record.TargetsFullBalance() {
			if _, err := s.agreements.SetInstallmentStatus(ctx, tx, record.TargetInstallmentID(),
				domain.InstallmentStatusFailed); err != nil {
				return err
			}
		}

		paidAmount, paymentStatus, err := s.agreements.RecomputeLedger(ctx, tx, record.AgreementID)
		if err != nil {
			return err
		}

		result.Outcome = OutcomeRecordedFailure
		result.PaidAmount = paidAmount
		result.PaymentStatus = paymentStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomeRecordedFailure {
		s.logger.Info("payment failure recorded",
			zap.String("record_id", record.ID),
			zap.String("agreement_id", record.AgreementID),
			zap.String("reason", reason),
		)
		s.emitter.Emit(domain.PaymentEvent{
			OccurredAt:    timeutil.Now(),
			Type:          domain.PaymentEventFailed,
			AgreementID:   record.AgreementID,
			InstallmentID: record.TargetInstallmentID(),
			RecordID:      record.ID,
			Gateway:       record.Gateway,
			Currency:      record.DashboardCurrency,
			PaymentStatus: result.PaymentStatus,
			Amount:        record.DashboardAmount,
		})
	}

	return result, nil
}

// withRetry runs the transaction, retrying transient failures so webhook
// acknowledgments are not lost to a momentary database hiccup
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff.NextDelay(attempt - 1)):
			}
		}
		err = s.db.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		s.logger.Warn("settlement transaction failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}

func settlementPath(record *domain.PaymentRecord) string {
	if record.TargetsFullBalance() {
		return "full_balance"
	}
	return "installment"
}
