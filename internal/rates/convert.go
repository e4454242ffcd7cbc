// Package rates provides the exchange-rate table and currency conversion.
// The table maps currency codes to their value in a fixed reference
// currency; conversion is a pure function over that table.
package rates

import "github.com/shopspring/decimal"

// Table maps a currency code to its value expressed in the reference
// currency. The reference currency itself maps to 1.
type Table map[string]float64

// Convert maps amount from one currency to another using the given table.
//
// Same-currency conversion returns (amount, 1) without any lookup, even for
// currencies absent from the table. When either currency is missing, Convert
// returns (amount, 0): a zero rate is the could-not-convert sentinel and the
// caller must check it before trusting the converted amount.
//
// The converted amount is rounded to 2 decimal places.
func Convert(amount float64, from, to string, rates Table) (converted float64, rate float64) {
	if from == to {
		return amount, 1
	}
	rateFrom, okFrom := rates[from]
	rateTo, okTo := rates[to]
	if !okFrom || !okTo || rateFrom == 0 || rateTo == 0 {
		return amount, 0
	}

	df := decimal.NewFromFloat(rateFrom)
	dt := decimal.NewFromFloat(rateTo)
	factor := df.Div(dt)
	converted = decimal.NewFromFloat(amount).Mul(factor).Round(2).InexactFloat64()
	rate, _ = factor.Float64()
	return converted, rate
}
