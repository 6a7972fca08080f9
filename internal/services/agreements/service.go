package agreements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
)

// InstallmentInput is one scheduled payment in a creation request
type InstallmentInput struct {
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// CreateAgreementRequest describes a new agreement with its schedule.
// All amounts are in USD.
type CreateAgreementRequest struct {
	StudentID    string             `json:"student_id"`
	WriterID     string             `json:"writer_id"`
	Title        string             `json:"title"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	Installments []InstallmentInput `json:"installments"`
}

// Service manages agreement lifecycle
type Service struct {
	db         ports.DBPort
	agreements ports.AgreementRepository
	logger     *zap.Logger
}

// NewService creates a new agreements service
func NewService(db ports.DBPort, agreements ports.AgreementRepository, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		agreements: agreements,
		logger:     logger,
	}
}

// Create validates the schedule and persists the agreement with its
// installments. The installment amounts must sum to the agreement total
// within rounding tolerance.
func (s *Service) Create(ctx context.Context, req CreateAgreementRequest) (*domain.Agreement, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	agreement := &domain.Agreement{
		ID:            uuid.New().String(),
		StudentID:     req.StudentID,
		WriterID:      req.WriterID,
		Title:         req.Title,
		Currency:      "USD",
		TotalAmount:   req.TotalAmount,
		PaidAmount:    decimal.Zero,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.AgreementStatusActive,
		Version:       1,
	}
	for i, input := range req.Installments {
		agreement.Installments = append(agreement.Installments, domain.Installment{
			ID:          uuid.New().String(),
			AgreementID: agreement.ID,
			Position:    i + 1,
			Amount:      input.Amount,
			DueDate:     input.DueDate,
			Status:      domain.InstallmentStatusPending,
		})
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.agreements.Create(ctx, tx, agreement)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agreement created",
		zap.String("agreement_id", agreement.ID),
		zap.String("student_id", agreement.StudentID),
		zap.String("total_amount", agreement.TotalAmount.String()),
		zap.Int("installments", len(agreement.Installments)),
	)
	return agreement, nil
}

// Get retrieves an agreement with its installments
func (s *Service) Get(ctx context.Context, id string) (*domain.Agreement, error) {
	return s.agreements.GetByID(ctx, s.db.GetDB(), id)
}

func validate(req CreateAgreementRequest) error {
	if req.StudentID == "" || req.WriterID == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField,
			"student id and writer id are required")
	}
	if req.Title == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "title is required")
	}
	if !req.TotalAmount.IsPositive() {
		return domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
			"total amount must be positive")
	}
	if len(req.Installments) == 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationScheduleInvalid,
			"at least one installment is required")
	}

	sum := decimal.Zero
	for i, inst := range req.Installments {
		if !inst.Amount.IsPositive() {
			return domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
				"installment amounts must be positive").
				WithDetail("position", i+1)
		}
		sum = sum.Add(inst.Amount)
	}
	if sum.Sub(req.TotalAmount).Abs().GreaterThan(domain.RoundingEpsilon) {
		return domain.NewDomainError(domain.ErrorCodeValidationScheduleInvalid,
			"installment amounts must sum to the agreement total").
			WithDetail("schedule_sum", sum.String()).
			WithDetail("total_amount", req.TotalAmount.String())
	}
	return nil
}
