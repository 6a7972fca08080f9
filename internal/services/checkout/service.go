package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/pkg/observability"
)

// Intent selects what a checkout pays for
type Intent string

const (
	IntentFull         Intent = "full"
	IntentNextUnpaid   Intent = "next_unpaid"
	IntentInstallment  Intent = "installment"
	IntentCustomAmount Intent = "custom_amount"
)

// Valid returns true for a known intent
func (i Intent) Valid() bool {
	switch i {
	case IntentFull, IntentNextUnpaid, IntentInstallment, IntentCustomAmount:
		return true
	}
	return false
}

// CreateCheckoutRequest describes one checkout attempt. Amount is in USD and
// only consulted for the custom_amount intent; Currency and Country are
// optional hints for gateway selection.
type CreateCheckoutRequest struct {
	AgreementID   string
	PayerID       string
	Intent        Intent
	InstallmentID string
	Amount        decimal.Decimal
	Currency      string
	Country       string
}

// CreateCheckoutResponse carries the redirect handle plus the captured
// conversion so callers can present the settlement amount
type CreateCheckoutResponse struct {
	RecordID    string          `json:"record_id"`
	Gateway     domain.Gateway  `json:"gateway"`
	Reference   string          `json:"reference"`
	RedirectURL string          `json:"redirect_url"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	Fees        FeeBreakdown    `json:"fees"`
}

// Service orchestrates checkout creation: validation, gateway selection,
// currency conversion, session creation, and the pending record write
type Service struct {
	db         ports.DBPort
	agreements ports.AgreementRepository
	records    ports.PaymentRecordRepository
	gateways   ports.GatewayRegistry
	converter  ports.CurrencyConverter
	selector   *Selector
	fees       *FeeCalculator
	logger     *zap.Logger
}

// NewService creates a new checkout service
func NewService(
	db ports.DBPort,
	agreements ports.AgreementRepository,
	records ports.PaymentRecordRepository,
	gateways ports.GatewayRegistry,
	converter ports.CurrencyConverter,
	selector *Selector,
	fees *FeeCalculator,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		agreements: agreements,
		records:    records,
		gateways:   gateways,
		converter:  converter,
		selector:   selector,
		fees:       fees,
		logger:     logger,
	}
}

// CreateCheckout validates the attempt, creates a hosted session on the
// selected gateway, and persists a pending record before returning the
// redirect URL. The installment is not marked processing here; settlement
// state only changes when the gateway confirms payment.
func (s *Service) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CreateCheckoutResponse, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	agreement, err := s.agreements.GetByID(ctx, s.db.GetDB(), req.AgreementID)
	if err != nil {
		return nil, err
	}

	if agreement.StudentID != req.PayerID {
		return nil, domain.NewDomainError(domain.ErrorCodeAuthPayerMismatch,
			"caller is not the payer on this agreement")
	}
	if agreement.Status != domain.AgreementStatusActive && agreement.Status != domain.AgreementStatusPending {
		return nil, domain.NewDomainError(domain.ErrorCodeAgreementNotPayable,
			"agreement is not accepting payments").
			WithDetail("status", string(agreement.Status))
	}

	usdAmount, installmentID, err := resolveTarget(agreement, req)
	if err != nil {
		return nil, err
	}

	gatewayName, settlementCurrency := s.selector.Select(req.Currency, req.Country)
	gateway, err := s.gateways.Gateway(gatewayName)
	if err != nil {
		return nil, err
	}

	conv, err := s.converter.Convert(usdAmount, BaseCurrency, settlementCurrency)
	if err != nil {
		return nil, err
	}

	session, err := gateway.CreateSession(ctx, ports.CheckoutSessionRequest{
		AgreementID:   agreement.ID,
		InstallmentID: installmentID,
		PayerID:       agreement.StudentID,
		PayeeID:       agreement.WriterID,
		Description:   agreement.Title,
		Currency:      settlementCurrency,
		Amount:        conv.Amount,
	})
	if err != nil {
		observability.RecordCheckoutSession(string(gatewayName), string(req.Intent), "gateway_error",
			time.Since(start).Seconds())
		// No record is written on gateway failure, the attempt never happened
		return nil, err
	}

	record := &domain.PaymentRecord{
		ID:                  uuid.New().String(),
		AgreementID:         agreement.ID,
		Gateway:             gatewayName,
		GatewayRef:          session.Reference,
		Status:              domain.PaymentRecordStatusPending,
		TransactionAmount:   conv.Amount,
		TransactionCurrency: settlementCurrency,
		DashboardAmount:     usdAmount,
		DashboardCurrency:   BaseCurrency,
		ExchangeRate:        conv.Rate,
		PayerID:             agreement.StudentID,
		PayeeID:             agreement.WriterID,
	}
	if installmentID != "" {
		record.InstallmentID = &installmentID
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.records.Create(ctx, tx, record)
	})
	if err != nil {
		observability.RecordCheckoutSession(string(gatewayName), string(req.Intent), "record_error",
			time.Since(start).Seconds())
		return nil, fmt.Errorf("persist pending record: %w", err)
	}

	observability.RecordCheckoutSession(string(gatewayName), string(req.Intent), "created",
		time.Since(start).Seconds())
	s.logger.Info("checkout session created",
		zap.String("record_id", record.ID),
		zap.String("agreement_id", agreement.ID),
		zap.String("gateway", string(gatewayName)),
		zap.String("reference", session.Reference),
		zap.String("settlement_currency", settlementCurrency),
	)

	return &CreateCheckoutResponse{
		RecordID:    record.ID,
		Gateway:     gatewayName,
		Reference:   session.Reference,
		RedirectURL: session.RedirectURL,
		Currency:    settlementCurrency,
		Amount:      conv.Amount,
		Rate:        conv.Rate,
		Fees:        s.fees.Quote(gatewayName, conv.Amount, conv.Rate),
	}, nil
}

func validateRequest(req CreateCheckoutRequest) error {
	if req.AgreementID == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "agreement id is required")
	}
	if req.PayerID == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "payer id is required")
	}
	if !req.Intent.Valid() {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed,
			"unknown intent").WithDetail("intent", string(req.Intent))
	}
	if req.Intent == IntentInstallment && req.InstallmentID == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField,
			"installment id is required for the installment intent")
	}
	if req.Intent == IntentCustomAmount && !req.Amount.IsPositive() {
		return domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
			"custom amount must be positive")
	}
	return nil
}

// resolveTarget maps the intent onto a USD amount and an optional installment
// target. An empty installment id means the attempt covers the remaining
// balance rather than one scheduled payment.
func resolveTarget(agreement *domain.Agreement, req CreateCheckoutRequest) (decimal.Decimal, string, error) {
	switch req.Intent {
	case IntentFull:
		if agreement.IsFullyPaid() {
			return decimal.Zero, "", domain.NewDomainError(domain.ErrorCodeAgreementFullyPaid,
				"agreement is already fully paid")
		}
		return agreement.RemainingAmount(), "", nil

	case IntentNextUnpaid:
		inst := agreement.NextUnpaidInstallment()
		if inst == nil {
			return decimal.Zero, "", domain.NewDomainError(domain.ErrorCodeAgreementFullyPaid,
				"no payable installment remains")
		}
		return inst.Amount, inst.ID, nil

	case IntentInstallment:
		inst := agreement.FindInstallment(req.InstallmentID)
		if inst == nil {
			return decimal.Zero, "", domain.ErrInstallmentNotFound
		}
		if inst.IsPaid() {
			return decimal.Zero, "", domain.ErrInstallmentAlreadyPaid
		}
		return inst.Amount, inst.ID, nil

	case IntentCustomAmount:
		remaining := agreement.RemainingAmount()
		if req.Amount.GreaterThan(remaining.Add(domain.RoundingEpsilon)) {
			return decimal.Zero, "", domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
				"custom amount exceeds the remaining balance").
				WithDetail("remaining", remaining.String())
		}
		return req.Amount, "", nil
	}

	return decimal.Zero, "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown intent")
}
