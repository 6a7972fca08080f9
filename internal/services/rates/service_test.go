package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
)

func newTestService(sourceURL string) *Service {
	return NewService(config.RatesConfig{
		SourceURL:       sourceURL,
		RefreshInterval: time.Hour,
		HTTPTimeout:     time.Second,
	}, zap.NewNop())
}

func TestConvert_Identity(t *testing.T) {
	s := newTestService("http://unused")

	conv, err := s.Convert(decimal.NewFromFloat(120.50), "USD", "USD")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(120.50).Equal(conv.Amount))
	assert.True(t, decimal.NewFromInt(1).Equal(conv.Rate))
}

func TestConvert_UsesFallbackTableBeforeRefresh(t *testing.T) {
	s := newTestService("http://unused")

	conv, err := s.Convert(decimal.NewFromInt(100), "USD", "INR")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(8350).Equal(conv.Amount), "got %s", conv.Amount)
	assert.True(t, decimal.NewFromFloat(83.50).Equal(conv.Rate))
}

func TestConvert_UnknownCurrency(t *testing.T) {
	s := newTestService("http://unused")

	_, err := s.Convert(decimal.NewFromInt(100), "USD", "XXX")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeRateUnavailable, domain.GetErrorCode(err))
}

func TestConvert_RoundTripWithinTolerance(t *testing.T) {
	s := newTestService("http://unused")
	original := decimal.NewFromFloat(250.00)

	there, err := s.Convert(original, "USD", "INR")
	require.NoError(t, err)
	back, err := s.Convert(there.Amount, "INR", "USD")
	require.NoError(t, err)

	diff := back.Amount.Sub(original).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.01)),
		"round trip drifted by %s", diff)
}

func TestRefresh_ReplacesTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","rates":{"USD":1,"INR":85.25,"EUR":0.95}}`))
	}))
	defer server.Close()

	s := newTestService(server.URL)
	require.NoError(t, s.Refresh(context.Background()))
	assert.False(t, s.RefreshedAt().IsZero())

	conv, err := s.Convert(decimal.NewFromInt(100), "USD", "INR")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(8525).Equal(conv.Amount), "got %s", conv.Amount)
}

func TestRefresh_FailureKeepsLastGoodTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := newTestService(server.URL)
	require.Error(t, s.Refresh(context.Background()))

	// Fallback table still serves conversions
	conv, err := s.Convert(decimal.NewFromInt(100), "USD", "INR")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(8350).Equal(conv.Amount))
}

func TestRefresh_RejectsEmptyRateSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","rates":{}}`))
	}))
	defer server.Close()

	s := newTestService(server.URL)
	require.Error(t, s.Refresh(context.Background()))
}

func TestConvert_CrossRate(t *testing.T) {
	s := newTestService("http://unused")

	// EUR -> INR goes through the USD base: 83.50 / 0.92
	conv, err := s.Convert(decimal.NewFromInt(100), "EUR", "INR")
	require.NoError(t, err)

	expectedRate := decimal.NewFromFloat(83.50).Div(decimal.NewFromFloat(0.92))
	assert.True(t, expectedRate.Equal(conv.Rate))
	assert.True(t, decimal.NewFromInt(100).Mul(expectedRate).Round(2).Equal(conv.Amount))
}
