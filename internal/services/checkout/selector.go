package checkout

import (
	"strings"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
)

// BaseCurrency is the unit of account for all ledger math
const BaseCurrency = "USD"

// Selector picks the gateway and settlement currency for a checkout. It is
// a pure, total function: any input combination resolves to a valid pair.
type Selector struct {
	regionalCurrency  string
	regionalCountries map[string]bool
}

// NewSelector builds a selector from configuration
func NewSelector(cfg config.SelectorConfig) *Selector {
	countries := make(map[string]bool, len(cfg.RegionalCountries))
	for _, c := range cfg.RegionalCountries {
		countries[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return &Selector{
		regionalCurrency:  strings.ToUpper(cfg.RegionalCurrency),
		regionalCountries: countries,
	}
}

// Select resolves the gateway and settlement currency. Currency preference
// dominates geography: a processor that cannot settle the requested currency
// would hard-fail at session creation, so the currency decides first and the
// payer's country only breaks ties. Missing location data defaults to the
// global gateway.
func (s *Selector) Select(desiredCurrency, payerCountry string) (domain.Gateway, string) {
	currency := strings.ToUpper(strings.TrimSpace(desiredCurrency))
	country := strings.ToUpper(strings.TrimSpace(payerCountry))

	switch currency {
	case BaseCurrency:
		return domain.GatewayStripe, BaseCurrency
	case s.regionalCurrency:
		return domain.GatewayRazorpay, s.regionalCurrency
	}

	if s.regionalCountries[country] {
		return domain.GatewayRazorpay, s.regionalCurrency
	}
	if currency != "" {
		// Uncommon but supported currency settles through the global
		// gateway in that currency
		return domain.GatewayStripe, currency
	}
	return domain.GatewayStripe, BaseCurrency
}
