package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{InvalidTransition("bad edge"), http.StatusBadRequest},
		{Conflict("stale version"), http.StatusConflict},
		{InsufficientFunds("short"), http.StatusConflict},
		{Internal("boom", errors.New("driver error")), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.HTTPStatus(), "kind %s", c.err.Kind)
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal("failed to write ledger entry", errors.New("pq: connection reset"))
	assert.Equal(t, "internal error", err.PublicMessage())
	assert.Contains(t, err.Error(), "connection reset", "Error() may still carry the cause for logs")
}

func TestPublicMessagePassesThroughForNonInternal(t *testing.T) {
	err := Conflict("order_version mismatch")
	assert.Equal(t, "order_version mismatch", err.PublicMessage())
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := NotFound("order not found")
	wrapped := fmt.Errorf("loading order: %w", base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, got.Kind)
}

func TestAsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("unreachable invariant")))
	assert.Equal(t, KindValidation, KindOf(Validation("missing field")))
}
