package orderstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusExpired))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusEscrowed))
}

func TestMinimalProjectionIsPure(t *testing.T) {
	for s, want := range minimalProjection {
		got1 := Minimal(s)
		got2 := Minimal(s)
		assert.Equal(t, want, got1)
		assert.Equal(t, got1, got2)
	}
}

func TestMinimalCollapsesRefinements(t *testing.T) {
	assert.Equal(t, MinimalAccepted, Minimal(StatusAccepted))
	assert.Equal(t, MinimalAccepted, Minimal(StatusEscrowPending))
	assert.Equal(t, MinimalEscrowed, Minimal(StatusEscrowed))
	assert.Equal(t, MinimalEscrowed, Minimal(StatusPaymentPending))
	assert.Equal(t, MinimalPaymentSent, Minimal(StatusPaymentSent))
	assert.Equal(t, MinimalPaymentSent, Minimal(StatusPaymentConfirmed))
	assert.Equal(t, MinimalCompleted, Minimal(StatusReleasing))
	assert.Equal(t, MinimalCompleted, Minimal(StatusCompleted))
}

func TestMinimalUnknownStatusDefaultsToOpen(t *testing.T) {
	assert.Equal(t, MinimalOpen, Minimal(Status("bogus")))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(StatusPending))
	assert.True(t, Valid(StatusDisputed))
	assert.False(t, Valid(Status("not-a-status")))
}
