package escrow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// These guard clauses short-circuit before touching the transaction or the
// bridge, so they can be exercised with a nil *sql.Tx and a nil Escrow — any
// attempt to reach the transactional path here would panic instead of
// returning an error, which is exactly what these tests would catch.

func TestLockEffectsRejectsAlreadyLockedOrder(t *testing.T) {
	e := &Escrow{}
	order := &orderstate.Order{EscrowTxHash: "0xabc"}

	err := e.LockEffects("")(context.Background(), nil, order)

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %v", err)
	}
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestReleaseEffectsRejectsAlreadyReleased(t *testing.T) {
	e := &Escrow{}
	order := &orderstate.Order{EscrowTxHash: "0xabc", ReleaseTxHash: "0xdef"}

	err := e.ReleaseEffects()(context.Background(), nil, order)

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %v", err)
	}
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestReleaseEffectsRejectsNeverLocked(t *testing.T) {
	e := &Escrow{}
	order := &orderstate.Order{}

	err := e.ReleaseEffects()(context.Background(), nil, order)

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %v", err)
	}
	assert.Equal(t, apperr.KindInvalidTransition, appErr.Kind)
}

func TestRefundEffectsRejectsAlreadySettled(t *testing.T) {
	e := &Escrow{}
	order := &orderstate.Order{RefundTxHash: "0xdef"}

	err := e.RefundEffects()(context.Background(), nil, order)

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected an *apperr.Error, got %v", err)
	}
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestRefundEffectsNoOpWhenEscrowNeverLocked(t *testing.T) {
	// Pre-escrow cancel round-trip law: no escrow tx hash ever recorded means
	// OriginalPayer resolves to ok=false, so RefundEffects must return
	// without touching the ledger or stamping a refund tx hash.
	e := &Escrow{}
	order := &orderstate.Order{CryptoAmount: decimal.NewFromInt(10)}

	err := e.RefundEffects()(context.Background(), nil, order)

	assert.NoError(t, err)
	assert.Equal(t, "", order.RefundTxHash)
}
