package checkout_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/services/checkout"
)

func newFeeCalculator() *checkout.FeeCalculator {
	return checkout.NewFeeCalculator(config.FeesConfig{
		PlatformPercent: 5.0,
		StripePercent:   2.9,
		StripeFixedUSD:  0.30,
		RazorpayPercent: 2.0,
	})
}

func TestQuote_StripeUSD(t *testing.T) {
	f := newFeeCalculator()

	// 100 USD at identity rate: 2.90 + 0.30 gateway, 5.00 platform
	br := f.Quote(domain.GatewayStripe, decimal.NewFromInt(100), decimal.NewFromInt(1))

	assert.True(t, br.GatewayFee.Equal(decimal.RequireFromString("3.20")), "gateway fee %s", br.GatewayFee)
	assert.True(t, br.PlatformFee.Equal(decimal.RequireFromString("5.00")), "platform fee %s", br.PlatformFee)
	assert.True(t, br.Net.Equal(decimal.RequireFromString("91.80")), "net %s", br.Net)
}

func TestQuote_RazorpayINR(t *testing.T) {
	f := newFeeCalculator()

	// 8300 INR at rate 83: 2% gateway with no fixed fee, 5% platform
	br := f.Quote(domain.GatewayRazorpay, decimal.NewFromInt(8300), decimal.NewFromInt(83))

	assert.True(t, br.GatewayFee.Equal(decimal.RequireFromString("166.00")), "gateway fee %s", br.GatewayFee)
	assert.True(t, br.PlatformFee.Equal(decimal.RequireFromString("415.00")), "platform fee %s", br.PlatformFee)
	assert.True(t, br.Net.Equal(decimal.RequireFromString("7719.00")), "net %s", br.Net)
}

func TestQuote_FixedFeeConvertedAtRate(t *testing.T) {
	f := newFeeCalculator()

	// Stripe charging in EUR at rate 0.9: fixed 0.30 USD becomes 0.27 EUR
	br := f.Quote(domain.GatewayStripe, decimal.NewFromInt(90), decimal.RequireFromString("0.9"))

	// 90 * 2.9% = 2.61, plus 0.27 fixed
	assert.True(t, br.GatewayFee.Equal(decimal.RequireFromString("2.88")), "gateway fee %s", br.GatewayFee)
	assert.True(t, br.Net.Add(br.GatewayFee).Add(br.PlatformFee).Equal(decimal.NewFromInt(90)))
}
