package orderstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusPending), "terminal status has no outgoing edges")
	assert.False(t, CanTransition(StatusCancelled, StatusAccepted))
}

func TestCanTransitionReleasingAndPaymentConfirmedBothReachCompleted(t *testing.T) {
	assert.True(t, CanTransition(StatusPaymentConfirmed, StatusCompleted))
	assert.True(t, CanTransition(StatusReleasing, StatusCompleted))
}

func TestPayerRole(t *testing.T) {
	assert.Equal(t, ActorUser, PayerRole(TypeBuy))
	assert.Equal(t, ActorMerchant, PayerRole(TypeSell))
}

func TestActorMayTarget(t *testing.T) {
	assert.True(t, ActorMayTarget(ActorMerchant, StatusAccepted))
	assert.False(t, ActorMayTarget(ActorUser, StatusAccepted))
	assert.True(t, ActorMayTarget(ActorSystem, StatusExpired))
	assert.False(t, ActorMayTarget(ActorSystem, StatusAccepted))
}

func TestAuthorizePaymentSentDependsOnOrderType(t *testing.T) {
	// buy orders: the user is the fiat payer
	assert.True(t, Authorize(StatusEscrowed, StatusPaymentSent, ActorUser, TypeBuy))
	assert.False(t, Authorize(StatusEscrowed, StatusPaymentSent, ActorMerchant, TypeBuy))

	// sell orders: the merchant is the fiat payer
	assert.True(t, Authorize(StatusEscrowed, StatusPaymentSent, ActorMerchant, TypeSell))
	assert.False(t, Authorize(StatusEscrowed, StatusPaymentSent, ActorUser, TypeSell))
}

func TestAuthorizeRejectsIllegalEdgeRegardlessOfActor(t *testing.T) {
	assert.False(t, Authorize(StatusPending, StatusCompleted, ActorMerchant, TypeBuy))
}

func TestAuthorizeNonPaymentSentUsesActorTable(t *testing.T) {
	assert.True(t, Authorize(StatusPending, StatusAccepted, ActorMerchant, TypeBuy))
	assert.False(t, Authorize(StatusPending, StatusAccepted, ActorUser, TypeBuy))
}
