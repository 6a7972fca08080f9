package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/internal/services/reconcile"
	"github.com/scribeline/payment-engine/internal/services/settlement"
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

// MockPaymentRecordRepository mocks the payment record repository
type MockPaymentRecordRepository struct {
	mock.Mock
}

func (m *MockPaymentRecordRepository) Create(ctx context.Context, tx ports.DBTX, record *domain.PaymentRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockPaymentRecordRepository) GetByGatewayRef(ctx context.Context, db ports.DBTX, gateway domain.Gateway, ref string) (*domain.PaymentRecord, error) {
	args := m.Called(ctx, db, gateway, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRecordRepository) GetByRef(ctx context.Context, db ports.DBTX, ref string) (*domain.PaymentRecord, error) {
	args := m.Called(ctx, db, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRecordRepository) MarkSucceeded(ctx context.Context, tx ports.DBTX, id string, processedAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, processedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRecordRepository) MarkFailed(ctx context.Context, tx ports.DBTX, id string, reason string) (bool, error) {
	args := m.Called(ctx, tx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRecordRepository) HasSucceededForInstallment(ctx context.Context, db ports.DBTX, installmentID string) (bool, error) {
	args := m.Called(ctx, db, installmentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRecordRepository) ListStalePending(ctx context.Context, db ports.DBTX, olderThan time.Time, limit int32) ([]*domain.PaymentRecord, error) {
	args := m.Called(ctx, db, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentRecord), args.Error(1)
}

// MockGateway mocks a payment gateway adapter
type MockGateway struct {
	mock.Mock
	name domain.Gateway
}

func (m *MockGateway) Name() domain.Gateway {
	return m.name
}

func (m *MockGateway) CreateSession(ctx context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CheckoutSession), args.Error(1)
}

func (m *MockGateway) VerifyWebhook(rawBody []byte, signatureHeader string) (*domain.GatewayEvent, error) {
	args := m.Called(rawBody, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayEvent), args.Error(1)
}

func (m *MockGateway) PollStatus(ctx context.Context, reference string) (*domain.GatewayEvent, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayEvent), args.Error(1)
}

type stubRegistry struct {
	gateways map[domain.Gateway]ports.PaymentGateway
}

func (r *stubRegistry) Gateway(name domain.Gateway) (ports.PaymentGateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayUnsupported, "no gateway registered for "+string(name))
	}
	return gw, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(event domain.PaymentEvent) {}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// Webhook handler tests

func TestHandleWebhook_UnknownGateway(t *testing.T) {
	handler := NewWebhookHandler(&stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{}}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewBufferString(`{}`))
	req.SetPathValue("gateway", "paypal")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestHandleWebhook_BadSignatureRejected(t *testing.T) {
	gateway := &MockGateway{name: domain.GatewayStripe}
	gateway.On("VerifyWebhook", mock.Anything, "bad-sig").
		Return(nil, domain.NewDomainError(domain.ErrorCodeWebhookSignatureInvalid, "signature verification failed"))

	registry := &stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{
		domain.GatewayStripe: gateway,
	}}
	handler := NewWebhookHandler(registry, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.SetPathValue("gateway", "stripe")
	req.Header.Set("Stripe-Signature", "bad-sig")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	gateway.AssertExpectations(t)
}

func TestHandleWebhook_SettlesInstallment(t *testing.T) {
	installmentID := "inst-1"
	record := &domain.PaymentRecord{
		ID:                "rec-1",
		AgreementID:       "agr-1",
		Gateway:           domain.GatewayStripe,
		GatewayRef:        "cs_test_123",
		Status:            domain.PaymentRecordStatusPending,
		InstallmentID:     &installmentID,
		DashboardAmount:   decimal.NewFromInt(100),
		DashboardCurrency: "USD",
	}

	mockDB := new(MockDBPort)
	mockAgreements := new(MockAgreementRepository)
	mockRecords := new(MockPaymentRecordRepository)

	mockRecords.On("GetByGatewayRef", mock.Anything, mock.Anything, domain.GatewayStripe, "cs_test_123").
		Return(record, nil)
	mockRecords.On("MarkSucceeded", mock.Anything, mock.Anything, "rec-1", mock.Anything).
		Return(true, nil)
	mockAgreements.On("MarkInstallmentPaid", mock.Anything, mock.Anything, "inst-1", mock.Anything, "rec-1").
		Return(true, nil)
	mockAgreements.On("RecomputeLedger", mock.Anything, mock.Anything, "agr-1").
		Return(decimal.NewFromInt(100), domain.PaymentStatusPartial, nil)

	gateway := &MockGateway{name: domain.GatewayStripe}
	gateway.On("VerifyWebhook", mock.Anything, "good-sig").Return(&domain.GatewayEvent{
		Gateway:   domain.GatewayStripe,
		Type:      domain.GatewayEventPaymentSucceeded,
		Reference: "cs_test_123",
		Amount:    decimal.NewFromInt(100),
		Currency:  "USD",
	}, nil)

	registry := &stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{
		domain.GatewayStripe: gateway,
	}}
	settlementService := settlement.NewService(mockDB, mockAgreements, mockRecords, registry, noopEmitter{}, zap.NewNop())
	handler := NewWebhookHandler(registry, settlementService, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.SetPathValue("gateway", "stripe")
	req.Header.Set("Stripe-Signature", "good-sig")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "settled", data["outcome"])
	mockRecords.AssertExpectations(t)
	mockAgreements.AssertExpectations(t)
}

func TestHandleWebhook_UnknownReferenceAcknowledged(t *testing.T) {
	mockDB := new(MockDBPort)
	mockAgreements := new(MockAgreementRepository)
	mockRecords := new(MockPaymentRecordRepository)

	mockRecords.On("GetByGatewayRef", mock.Anything, mock.Anything, domain.GatewayStripe, "cs_unknown").
		Return(nil, domain.ErrRecordNotFound)

	gateway := &MockGateway{name: domain.GatewayStripe}
	gateway.On("VerifyWebhook", mock.Anything, "good-sig").Return(&domain.GatewayEvent{
		Gateway:   domain.GatewayStripe,
		Type:      domain.GatewayEventPaymentSucceeded,
		Reference: "cs_unknown",
	}, nil)

	registry := &stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{
		domain.GatewayStripe: gateway,
	}}
	settlementService := settlement.NewService(mockDB, mockAgreements, mockRecords, registry, noopEmitter{}, zap.NewNop())
	handler := NewWebhookHandler(registry, settlementService, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.SetPathValue("gateway", "stripe")
	req.Header.Set("Stripe-Signature", "good-sig")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	// Unknown references are acknowledged so the gateway stops redelivering
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "unknown_reference", data["outcome"])
}

// Checkout handler tests

func TestCreateCheckout_InvalidJSON(t *testing.T) {
	handler := NewCheckoutHandler(nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/payment/enhanced-checkout", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	handler.CreateCheckout(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
}

// Admin handler tests

func newReconcileService(agreements *MockAgreementRepository, records *MockPaymentRecordRepository) *reconcile.Service {
	cfg := config.ReconcileConfig{
		ProcessingGracePeriod: 24 * time.Hour,
		StalePendingAge:       time.Hour,
		SweepLimit:            200,
	}
	registry := &stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{}}
	return reconcile.NewService(new(MockDBPort), agreements, records, registry, nil, cfg, zap.NewNop())
}

func TestAdmin_RejectsMissingToken(t *testing.T) {
	handler := NewAdminHandler(nil, "secret-token", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/fix-payment-calculations", nil)
	rec := httptest.NewRecorder()

	handler.FixPaymentCalculations(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_RejectsWrongToken(t *testing.T) {
	handler := NewAdminHandler(nil, "secret-token", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/fix-payment-calculations", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()

	handler.FixPaymentCalculations(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_RejectsWhenNoTokenConfigured(t *testing.T) {
	handler := NewAdminHandler(nil, "", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/fix-payment-calculations", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()

	handler.FixPaymentCalculations(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_BearerTokenAccepted(t *testing.T) {
	mockAgreements := new(MockAgreementRepository)
	mockRecords := new(MockPaymentRecordRepository)
	mockAgreements.On("ListIDs", mock.Anything, mock.Anything).Return([]string{}, nil)

	handler := NewAdminHandler(newReconcileService(mockAgreements, mockRecords), "secret-token", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/fix-payment-calculations", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()

	handler.FixPaymentCalculations(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["agreements_checked"])
}

func TestAdmin_AdminTokenHeaderAccepted(t *testing.T) {
	mockAgreements := new(MockAgreementRepository)
	mockRecords := new(MockPaymentRecordRepository)
	mockAgreements.On("ListIDs", mock.Anything, mock.Anything).Return([]string{}, nil)

	handler := NewAdminHandler(newReconcileService(mockAgreements, mockRecords), "secret-token", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/fix-payment-calculations", nil)
	req.Header.Set("X-Admin-Token", "secret-token")
	rec := httptest.NewRecorder()

	handler.FixPaymentCalculations(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// Manual verification handler tests

func TestManualVerify_MissingReference(t *testing.T) {
	handler := NewVerifyHandler(nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/payment/manual-verify/", nil)
	rec := httptest.NewRecorder()

	handler.ManualVerify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualVerify_UnknownRecord(t *testing.T) {
	mockDB := new(MockDBPort)
	mockAgreements := new(MockAgreementRepository)
	mockRecords := new(MockPaymentRecordRepository)
	mockRecords.On("GetByRef", mock.Anything, mock.Anything, "cs_missing").
		Return(nil, domain.ErrRecordNotFound)

	registry := &stubRegistry{gateways: map[domain.Gateway]ports.PaymentGateway{}}
	settlementService := settlement.NewService(mockDB, mockAgreements, mockRecords, registry, noopEmitter{}, zap.NewNop())
	handler := NewVerifyHandler(settlementService, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/payment/manual-verify/cs_missing", nil)
	req.SetPathValue("reference", "cs_missing")
	rec := httptest.NewRecorder()

	handler.ManualVerify(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Error mapping tests

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"agreement not found", domain.ErrAgreementNotFound, http.StatusNotFound},
		{"payer mismatch", domain.ErrPayerMismatch, http.StatusForbidden},
		{"invalid amount", domain.ErrValidationAmountInvalid, http.StatusBadRequest},
		{"already paid", domain.ErrInstallmentAlreadyPaid, http.StatusConflict},
		{"bad signature", domain.ErrWebhookSignatureInvalid, http.StatusUnauthorized},
		{"gateway declined", domain.ErrGatewayDeclined, http.StatusBadGateway},
		{"gateway timeout", domain.ErrGatewayTimedOut, http.StatusGatewayTimeout},
		{"rate unavailable", domain.ErrRateUnavailable, http.StatusServiceUnavailable},
		{"internal", domain.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondDomainError(rec, zap.NewNop(), tt.err)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
