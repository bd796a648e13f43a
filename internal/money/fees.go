// Package money centralizes decimal monetary math so no component rounds or
// parses amounts independently. Amounts are shopspring/decimal throughout,
// grounded on other_examples' LerianStudio-midaz Balance type, which uses
// decimal.Decimal for every monetary field rather than float64 or integer
// minor units.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// FeeSchedule holds the three protocol fee percentages configured via
// PROTOCOL_FEE_CHEAP/BEST/FASTEST (spec §6).
type FeeSchedule struct {
	Cheap   decimal.Decimal
	Best    decimal.Decimal
	Fastest decimal.Decimal
}

// DefaultFeeSchedule matches spec §3's defaults: cheap 1.50, best 2.00,
// fastest 2.50.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Cheap:   decimal.NewFromFloat(1.50),
		Best:    decimal.NewFromFloat(2.00),
		Fastest: decimal.NewFromFloat(2.50),
	}
}

// PercentageFor resolves a spread preference to a protocol fee percentage.
// An unrecognised or empty preference defaults to "best", matching the
// spec's framing of "best" as the baseline trade-off.
func (f FeeSchedule) PercentageFor(pref orderstate.SpreadPreference) decimal.Decimal {
	switch pref {
	case orderstate.SpreadCheap:
		return f.Cheap
	case orderstate.SpreadFastest:
		return f.Fastest
	default:
		return f.Best
	}
}

// FeeAmount computes protocol_fee_amount = cryptoAmount * percentage / 100,
// rounded to 8 decimal places (enough precision for the crypto assets this
// core settles).
func FeeAmount(cryptoAmount, percentage decimal.Decimal) decimal.Decimal {
	return cryptoAmount.Mul(percentage).Div(decimal.NewFromInt(100)).Round(8)
}

// FiatAmount computes fiat_amount = cryptoAmount * rate, rounded to 2
// decimal places (fiat currencies settle in cents).
func FiatAmount(cryptoAmount, rate decimal.Decimal) decimal.Decimal {
	return cryptoAmount.Mul(rate).Round(2)
}
