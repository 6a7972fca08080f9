package agreements_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/internal/services/agreements"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MockAgreementRepository mocks the agreement repository
type MockAgreementRepository struct {
	mock.Mock
}

func (m *MockAgreementRepository) Create(ctx context.Context, tx ports.DBTX, agreement *domain.Agreement) error {
	args := m.Called(ctx, tx, agreement)
	return args.Error(0)
}

func (m *MockAgreementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Agreement, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agreement), args.Error(1)
}

func (m *MockAgreementRepository) ListIDs(ctx context.Context, db ports.DBTX) ([]string, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAgreementRepository) GetInstallmentsForUpdate(ctx context.Context, tx ports.DBTX, agreementID string) ([]domain.Installment, error) {
	args := m.Called(ctx, tx, agreementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Installment), args.Error(1)
}

func (m *MockAgreementRepository) MarkInstallmentPaid(ctx context.Context, tx ports.DBTX, installmentID string, paidAt time.Time, intentRef string) (bool, error) {
	args := m.Called(ctx, tx, installmentID, paidAt, intentRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockAgreementRepository) SetInstallmentStatus(ctx context.Context, tx ports.DBTX, installmentID string, status domain.InstallmentStatus) (bool, error) {
	args := m.Called(ctx, tx, installmentID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockAgreementRepository) RecomputeLedger(ctx context.Context, tx ports.DBTX, agreementID string) (decimal.Decimal, domain.PaymentStatus, error) {
	args := m.Called(ctx, tx, agreementID)
	return args.Get(0).(decimal.Decimal), args.Get(1).(domain.PaymentStatus), args.Error(2)
}

func validRequest() agreements.CreateAgreementRequest {
	due := time.Now().Add(7 * 24 * time.Hour)
	return agreements.CreateAgreementRequest{
		StudentID:   "student-1",
		WriterID:    "writer-1",
		Title:       "Thesis draft",
		TotalAmount: decimal.NewFromInt(300),
		Installments: []agreements.InstallmentInput{
			{Amount: decimal.NewFromInt(100), DueDate: due},
			{Amount: decimal.NewFromInt(100), DueDate: due.Add(7 * 24 * time.Hour)},
			{Amount: decimal.NewFromInt(100), DueDate: due.Add(14 * 24 * time.Hour)},
		},
	}
}

func TestCreate_BuildsSchedule(t *testing.T) {
	repo := new(MockAgreementRepository)
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(a *domain.Agreement) bool {
		return len(a.Installments) == 3 &&
			a.Installments[0].Position == 1 &&
			a.Installments[2].Position == 3 &&
			a.PaymentStatus == domain.PaymentStatusPending &&
			a.Status == domain.AgreementStatusActive &&
			a.Currency == "USD"
	})).Return(nil)

	svc := agreements.NewService(&MockDBPort{}, repo, zap.NewNop())
	agreement, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, agreement.ID)
	assert.True(t, decimal.Zero.Equal(agreement.PaidAmount))
	for _, inst := range agreement.Installments {
		assert.Equal(t, agreement.ID, inst.AgreementID)
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
	}
	repo.AssertExpectations(t)
}

func TestCreate_ScheduleMustSumToTotal(t *testing.T) {
	req := validRequest()
	req.Installments[2].Amount = decimal.NewFromInt(50)

	svc := agreements.NewService(&MockDBPort{}, new(MockAgreementRepository), zap.NewNop())
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeValidationScheduleInvalid, domain.GetErrorCode(err))
}

func TestCreate_ScheduleWithinEpsilonAccepted(t *testing.T) {
	req := validRequest()
	req.Installments[2].Amount = decimal.NewFromFloat(99.99)
	req.TotalAmount = decimal.NewFromInt(300)

	repo := new(MockAgreementRepository)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := agreements.NewService(&MockDBPort{}, repo, zap.NewNop())
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*agreements.CreateAgreementRequest)
		code   domain.ErrorCode
	}{
		{"missing student", func(r *agreements.CreateAgreementRequest) { r.StudentID = "" }, domain.ErrorCodeValidationMissingField},
		{"missing title", func(r *agreements.CreateAgreementRequest) { r.Title = "" }, domain.ErrorCodeValidationMissingField},
		{"zero total", func(r *agreements.CreateAgreementRequest) { r.TotalAmount = decimal.Zero }, domain.ErrorCodeValidationAmountInvalid},
		{"no installments", func(r *agreements.CreateAgreementRequest) { r.Installments = nil }, domain.ErrorCodeValidationScheduleInvalid},
		{"negative installment", func(r *agreements.CreateAgreementRequest) {
			r.Installments[0].Amount = decimal.NewFromInt(-100)
		}, domain.ErrorCodeValidationAmountInvalid},
	}

	svc := agreements.NewService(&MockDBPort{}, new(MockAgreementRepository), zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.GetErrorCode(err))
		})
	}
}
