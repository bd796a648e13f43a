// Package outbox implements the transactional outbox worker of spec §4.6:
// poll for pending rows due for (re)delivery, claim them with
// SELECT ... FOR UPDATE SKIP LOCKED so parallel workers don't serialise on
// the queue, attempt delivery, and either mark sent or back off.
//
// Grounded on Klingon-tech-klingdex's message_outbox retry queue
// (GetPendingMessages: status/next_retry_at polling, retry_count, backoff)
// adapted from its single-writer SQLite model to Postgres's SKIP LOCKED so
// more than one worker process can drain the queue concurrently.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/logging"
	"github.com/oxzoid/settlementcore/internal/metrics"
)

// Envelope is one claimed outbox row, decoded for a Sink.
type Envelope struct {
	ID        string
	EventType string
	OrderID   string
	Payload   json.RawMessage
	Attempts  int
}

// Sink delivers a claimed envelope downstream (spec §2's "notification
// fan-out"). internal/notify supplies a logging sink and a websocket
// broadcast sink.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

// Worker polls notification_outbox and drains it at-least-once.
type Worker struct {
	DB           *sql.DB
	Sink         Sink
	MaxAttempts  int
	PollInterval time.Duration
	BatchSize    int

	log *logging.Logger
}

func New(db *sql.DB, sink Sink, maxAttempts int, pollInterval time.Duration) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		DB:           db,
		Sink:         sink,
		MaxAttempts:  maxAttempts,
		PollInterval: pollInterval,
		BatchSize:    50,
		log:          logging.Default().Component("outbox"),
	}
}

// Run polls on PollInterval until ctx is cancelled, draining one batch per
// tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.log.Error("outbox drain failed", "err", err)
			}
		}
	}
}

// DrainOnce claims and attempts delivery of every row currently due,
// processing rows one at a time so a slow or failing Sink call doesn't hold
// the claim lock on the rest of the batch.
func (w *Worker) DrainOnce(ctx context.Context) error {
	for {
		claimed, err := w.claimOne(ctx)
		if err != nil {
			return err
		}
		if claimed == nil {
			return nil
		}
		w.deliver(ctx, claimed)
	}
}

type claimedRow struct {
	Envelope
	MaxAttempts int
}

// claimOne acquires SELECT ... FOR UPDATE SKIP LOCKED on one due row, reads
// it, and commits without changing it. The row remains visible to the next
// poll regardless of whether this attempt ultimately succeeds; deliver()
// increments attempts on failure and updates terminal status separately.
func (w *Worker) claimOne(ctx context.Context) (*claimedRow, error) {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to begin claim transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		SELECT id, event_type, order_id, payload, attempts, max_attempts
		FROM notification_outbox
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	row := &claimedRow{}
	err = tx.QueryRowContext(ctx, q).Scan(&row.ID, &row.EventType, &row.OrderID, &row.Payload, &row.Attempts, &row.MaxAttempts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to claim outbox row", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("failed to commit outbox claim", err)
	}
	return row, nil
}

// deliver attempts the claimed row's delivery outside any lock (downstream
// I/O must never happen inside the claiming transaction, spec §5), then
// records the outcome in its own short transaction.
func (w *Worker) deliver(ctx context.Context, row *claimedRow) {
	env := row.Envelope
	err := w.Sink.Deliver(ctx, env)
	if err == nil {
		if dbErr := w.markSent(ctx, row.ID); dbErr != nil {
			w.log.Error("failed to mark outbox row sent", "id", row.ID, "err", dbErr)
		}
		metrics.OutboxDelivered.Inc()
		return
	}

	attempts := row.Attempts + 1
	maxAttempts := row.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.MaxAttempts
	}
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
		metrics.OutboxPoisoned.Inc()
	}
	if dbErr := w.markFailed(ctx, row.ID, attempts, status, err.Error()); dbErr != nil {
		w.log.Error("failed to record outbox delivery failure", "id", row.ID, "err", dbErr)
	}
}

func (w *Worker) markSent(ctx context.Context, id string) error {
	const q = `UPDATE notification_outbox SET status = 'sent', sent_at = now() WHERE id = $1`
	_, err := w.DB.ExecContext(ctx, q, id)
	return err
}

func (w *Worker) markFailed(ctx context.Context, id string, attempts int, status, lastError string) error {
	const q = `
		UPDATE notification_outbox
		SET attempts = $1, status = $2, last_error = $3, next_attempt_at = now() + $4 * interval '1 second'
		WHERE id = $5
	`
	_, err := w.DB.ExecContext(ctx, q, attempts, status, lastError, backoffSeconds(attempts), id)
	return err
}

// backoffSeconds is exponential with a 2s base and a 60s ceiling: attempt 1
// waits 2s, attempt 2 waits 4s, attempt 3 waits 8s, and so on.
func backoffSeconds(attempts int) float64 {
	s := math.Pow(2, float64(attempts))
	if s > 60 {
		return 60
	}
	return s
}
