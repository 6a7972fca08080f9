package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
)

// FeeBreakdown itemizes what a checkout amount costs, in the settlement
// currency. Net is what the writer receives after both cuts.
type FeeBreakdown struct {
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Net         decimal.Decimal `json:"net"`
}

// FeeCalculator quotes the per-gateway processing fee plus the platform cut
type FeeCalculator struct {
	platformPct decimal.Decimal
	schedules   map[domain.Gateway]feeSchedule
}

type feeSchedule struct {
	percent  decimal.Decimal
	fixedUSD decimal.Decimal
}

// NewFeeCalculator creates a calculator from the configured schedule
func NewFeeCalculator(cfg config.FeesConfig) *FeeCalculator {
	return &FeeCalculator{
		platformPct: decimal.NewFromFloat(cfg.PlatformPercent),
		schedules: map[domain.Gateway]feeSchedule{
			domain.GatewayStripe: {
				percent:  decimal.NewFromFloat(cfg.StripePercent),
				fixedUSD: decimal.NewFromFloat(cfg.StripeFixedUSD),
			},
			domain.GatewayRazorpay: {
				percent:  decimal.NewFromFloat(cfg.RazorpayPercent),
				fixedUSD: decimal.NewFromFloat(cfg.RazorpayFixedUSD),
			},
		},
	}
}

var hundred = decimal.NewFromInt(100)

// Quote computes the breakdown for a settlement amount. rate is the USD to
// settlement-currency rate captured at conversion time, used to express the
// fixed fee in the settlement currency. A quote, not a ledger entry: the
// gateway invoices its own fee later.
func (f *FeeCalculator) Quote(gateway domain.Gateway, amount, rate decimal.Decimal) FeeBreakdown {
	sched := f.schedules[gateway]

	gatewayFee := amount.Mul(sched.percent).Div(hundred).
		Add(sched.fixedUSD.Mul(rate)).Round(2)
	platformFee := amount.Mul(f.platformPct).Div(hundred).Round(2)

	return FeeBreakdown{
		GatewayFee:  gatewayFee,
		PlatformFee: platformFee,
		Net:         amount.Sub(gatewayFee).Sub(platformFee),
	}
}
