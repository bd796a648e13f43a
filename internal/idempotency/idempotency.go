// Package idempotency generalizes the teacher's per-handler "check for an
// existing row with this idempotency key, return it instead of re-running
// the handler" pattern (pkg/api/orders.go CreateOrderHandler, pkg/api/
// refunds.go) into one component every lifecycle endpoint can call, backed
// by an hashicorp/golang-lru/v2 in-process cache in front of the persistent
// idempotency_records table so a hot key doesn't round-trip the database on
// every retry within the same process.
package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oxzoid/settlementcore/internal/apperr"
)

// Record is a previously-recorded response for a (key, actor, endpoint)
// triple.
type Record struct {
	ResponseStatus int
	ResponseBody   json.RawMessage
}

type cacheKey struct {
	Key      string
	ActorID  string
	Endpoint string
}

// Store persists idempotency records to Postgres and caches recent lookups
// in memory.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[cacheKey, Record]
}

// New builds a Store with an in-process LRU cache sized for capacity
// concurrent in-flight idempotency keys.
func New(db *sql.DB, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	cache, err := lru.New[cacheKey, Record](capacity)
	if err != nil {
		return nil, apperr.Internal("failed to allocate idempotency cache", err)
	}
	return &Store{db: db, cache: cache}, nil
}

// Lookup returns a previously-recorded response for this key, actor and
// endpoint, if one exists. A cache hit avoids the database entirely; a miss
// falls through to idempotency_records.
func (s *Store) Lookup(ctx context.Context, key, actorID, endpoint string) (*Record, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	ck := cacheKey{Key: key, ActorID: actorID, Endpoint: endpoint}
	if rec, ok := s.cache.Get(ck); ok {
		return &rec, true, nil
	}

	const q = `
		SELECT response_status, response_body FROM idempotency_records
		WHERE idempotency_key = $1 AND actor_id = $2 AND endpoint = $3
	`
	var rec Record
	var body []byte
	err := s.db.QueryRowContext(ctx, q, key, actorID, endpoint).Scan(&rec.ResponseStatus, &body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Internal("failed to look up idempotency record", err)
	}
	rec.ResponseBody = body
	s.cache.Add(ck, rec)
	return &rec, true, nil
}

// Record persists a response against this key, actor and endpoint, inside
// the caller's transaction so the record commits atomically with whatever
// state change produced it. A duplicate insert (two concurrent requests
// racing on the same fresh key) is tolerated silently: whichever write wins,
// both callers' Lookup will return the same row.
func (s *Store) Record(ctx context.Context, tx *sql.Tx, key, actorID, endpoint string, status int, body json.RawMessage) error {
	if key == "" {
		return nil
	}
	const q = `
		INSERT INTO idempotency_records (idempotency_key, actor_id, endpoint, response_status, response_body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key, actor_id, endpoint) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, q, key, actorID, endpoint, status, body); err != nil {
		return apperr.Internal("failed to record idempotency response", err)
	}
	s.cache.Add(cacheKey{Key: key, ActorID: actorID, Endpoint: endpoint}, Record{ResponseStatus: status, ResponseBody: body})
	return nil
}
