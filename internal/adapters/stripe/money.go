package stripe

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies Stripe treats as zero-decimal: amounts are sent in whole units
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// minorUnits converts a decimal amount into the integer minor units Stripe
// expects (cents for two-decimal currencies)
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// fromMinorUnits converts Stripe integer minor units back to a decimal amount
func fromMinorUnits(minor int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
