package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxzoid/settlementcore/internal/orderstate"
)

func TestActorFromRequestUser(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders", nil)
	r.Header.Set("x-actor-type", "user")
	r.Header.Set("x-actor-id", "u1")

	actor, err := actorFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, orderstate.ActorUser, actor.Role)
	assert.Equal(t, "u1", actor.ID)
}

func TestActorFromRequestMerchant(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders", nil)
	r.Header.Set("x-actor-type", "merchant")
	r.Header.Set("x-actor-id", "m1")

	actor, err := actorFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, orderstate.ActorMerchant, actor.Role)
	assert.Equal(t, "m1", actor.ID)
}

func TestActorFromRequestRejectsUnknownRole(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders", nil)
	r.Header.Set("x-actor-type", "system")
	r.Header.Set("x-actor-id", "anything")

	_, err := actorFromRequest(r)
	assert.Error(t, err)
}

func TestActorFromRequestRequiresID(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders", nil)
	r.Header.Set("x-actor-type", "user")

	_, err := actorFromRequest(r)
	assert.Error(t, err)
}

func TestRequireSystemActorRejectsMismatch(t *testing.T) {
	s := &Server{SystemActorSecret: "topsecret"}
	called := false
	h := s.requireSystemActor(func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/orders/expire", nil)
	r.Header.Set("x-system-secret", "wrong")
	h(w, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireSystemActorAcceptsMatch(t *testing.T) {
	s := &Server{SystemActorSecret: "topsecret"}
	called := false
	h := s.requireSystemActor(func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/orders/expire", nil)
	r.Header.Set("x-system-secret", "topsecret")
	h(w, r)

	assert.True(t, called)
}

func TestRequireSystemActorRejectsEmptyConfiguredSecret(t *testing.T) {
	s := &Server{SystemActorSecret: ""}
	h := s.requireSystemActor(func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/orders/expire", nil)
	h(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
