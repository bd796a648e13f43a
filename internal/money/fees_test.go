package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/oxzoid/settlementcore/internal/orderstate"
)

func TestDefaultFeeScheduleMatchesDocumentedDefaults(t *testing.T) {
	fs := DefaultFeeSchedule()
	assert.True(t, fs.Cheap.Equal(decimal.NewFromFloat(1.50)))
	assert.True(t, fs.Best.Equal(decimal.NewFromFloat(2.00)))
	assert.True(t, fs.Fastest.Equal(decimal.NewFromFloat(2.50)))
}

func TestPercentageFor(t *testing.T) {
	fs := DefaultFeeSchedule()
	assert.True(t, fs.PercentageFor(orderstate.SpreadCheap).Equal(fs.Cheap))
	assert.True(t, fs.PercentageFor(orderstate.SpreadFastest).Equal(fs.Fastest))
	assert.True(t, fs.PercentageFor(orderstate.SpreadBest).Equal(fs.Best))
	assert.True(t, fs.PercentageFor(orderstate.SpreadPreference("")).Equal(fs.Best), "unrecognised preference defaults to best")
}

func TestFeeAmount(t *testing.T) {
	amount := decimal.NewFromInt(100)
	pct := decimal.NewFromFloat(2.5)
	got := FeeAmount(amount, pct)
	assert.True(t, got.Equal(decimal.NewFromFloat(2.5)), "got %s", got)
}

func TestFeeAmountRoundsToEightPlaces(t *testing.T) {
	amount := decimal.NewFromFloat(0.123456789)
	pct := decimal.NewFromInt(1)
	got := FeeAmount(amount, pct)
	assert.True(t, got.Equal(decimal.RequireFromString("0.00123457")), "got %s", got)
}

func TestFiatAmount(t *testing.T) {
	amount := decimal.NewFromInt(10)
	rate := decimal.NewFromFloat(65000.125)
	got := FiatAmount(amount, rate)
	assert.True(t, got.Equal(decimal.NewFromFloat(650001.25)), "got %s", got)
}

func TestFiatAmountRoundsToTwoPlaces(t *testing.T) {
	amount := decimal.NewFromFloat(1)
	rate := decimal.NewFromFloat(0.005)
	got := FiatAmount(amount, rate)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.01)) || got.Equal(decimal.NewFromFloat(0.00)))
}
