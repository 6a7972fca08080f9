package ports

import "github.com/shopspring/decimal"

// Conversion is the result of a currency conversion, carrying the rate that
// was applied so it can be recorded alongside the payment
type Conversion struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// CurrencyConverter converts between currencies against a USD-based rate
// table. Conversions are served from memory and never block on the rate
// source; the only failure mode is an unknown currency code.
type CurrencyConverter interface {
	Convert(amount decimal.Decimal, from, to string) (Conversion, error)
}
