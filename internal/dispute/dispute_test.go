package dispute

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/store"
)

// Propose validates split percentages before ever touching the database, so
// the rejection path can be exercised against a Service with a nil DB pool —
// reaching the ExecContext call here would panic, which is exactly what this
// test would catch if the validation order ever regressed.

func TestProposeRejectsSplitNotSummingToHundred(t *testing.T) {
	s := New(store.New(nil))

	_, err := s.Propose(context.Background(), "order-1", ResolutionSplit,
		decimal.NewFromInt(40), decimal.NewFromInt(40))

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %v", err)
	}
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestNullDecimalTreatsZeroAsNull(t *testing.T) {
	assert.Nil(t, nullDecimal(decimal.Zero))
	assert.NotNil(t, nullDecimal(decimal.NewFromInt(5)))
}
