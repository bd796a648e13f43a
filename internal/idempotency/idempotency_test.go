package idempotency

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupEmptyKeyIsAlwaysAMiss(t *testing.T) {
	s, err := New(nil, 10)
	require.NoError(t, err)

	rec, ok, err := s.Lookup(context.Background(), "", "actor-1", "POST /orders")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestLookupCacheHitNeverTouchesDB(t *testing.T) {
	s, err := New(nil, 10)
	require.NoError(t, err)

	ck := cacheKey{Key: "idem-1", ActorID: "actor-1", Endpoint: "POST /orders"}
	want := Record{ResponseStatus: 201, ResponseBody: json.RawMessage(`{"id":"order-1"}`)}
	s.cache.Add(ck, want)

	rec, ok, err := s.Lookup(context.Background(), "idem-1", "actor-1", "POST /orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.ResponseStatus, rec.ResponseStatus)
	assert.Equal(t, want.ResponseBody, rec.ResponseBody)
}

func TestRecordEmptyKeyIsANoOp(t *testing.T) {
	s, err := New(nil, 10)
	require.NoError(t, err)

	err = s.Record(context.Background(), nil, "", "actor-1", "POST /orders", 201, nil)
	assert.NoError(t, err)
}

func TestNewDefaultsCapacity(t *testing.T) {
	s, err := New(nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, s.cache)
}
