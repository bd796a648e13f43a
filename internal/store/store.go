// Package store implements the single composite primitive every mutator in
// this engine calls: ApplyTransition (spec §4.3). It is the only place that
// takes the order row lock, consults the state machine, and stages the
// outbox row — callers (escrow, lifecycle, dispute) only supply an Effects
// closure for their domain-specific side effects (ledger debits/credits,
// provenance fields). Compound operations in lifecycle and dispute open
// their own transaction and pass it to ApplyTransitionTx.
//
// Grounded on the teacher's handlers (pkg/api/events.go, refunds.go), which
// already follow begin-tx / guarded-UPDATE / insert-ledger-rows / commit —
// generalized here into one reusable primitive instead of one copy per
// handler, and on Kilat-Pet-Delivery's Payment aggregate (mutate in place,
// then persist the whole struct) for how Effects shapes the order.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// EffectsFunc is the hook point for §4.1/§4.4 side effects: ledger
// debits/credits, escrow provenance, release/refund tx hashes. It receives
// the order locked for update and may mutate any field except Status,
// OrderVersion and the per-transition timestamp, which ApplyTransition sets
// itself after Effects returns successfully.
type EffectsFunc func(ctx context.Context, tx *sql.Tx, order *orderstate.Order) error

// NoEffects is an EffectsFunc that does nothing, for transitions with no
// side effects beyond the status change itself (e.g. AcceptOrder).
func NoEffects(context.Context, *sql.Tx, *orderstate.Order) error { return nil }

// Result is returned by a successful ApplyTransition.
type Result struct {
	Order    *orderstate.Order
	EventID  string
	OutboxID string
}

// Store wraps the database handle ApplyTransition and read helpers operate
// against.
type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

// ApplyTransition is the composite primitive of spec §4.3: open a
// transaction, lock the order row, check the expected version, consult the
// state machine for (current, target, actor), run effects, persist the new
// status/version/timestamps, append one event row, one status-history row,
// and one outbox row, then commit. Any failure anywhere rolls back the
// whole transaction.
func (s *Store) ApplyTransition(
	ctx context.Context,
	orderID string,
	target orderstate.Status,
	actor orderstate.Actor,
	expectedVersion int64,
	eventType string,
	metadata map[string]any,
	effects EffectsFunc,
) (*Result, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := s.ApplyTransitionTx(ctx, tx, orderID, target, actor, expectedVersion, eventType, metadata, effects)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("failed to commit transition", err)
	}
	return result, nil
}

// ApplyTransitionTx runs the transition logic against a caller-supplied,
// already-open transaction, without beginning or committing it. This is the
// hook compound operations (spec §4.5's confirm-and-release) use to apply
// two transitions — two events, two outbox rows — atomically in one
// transaction: the caller begins the transaction, calls this twice, and
// commits once.
func (s *Store) ApplyTransitionTx(
	ctx context.Context,
	tx *sql.Tx,
	orderID string,
	target orderstate.Status,
	actor orderstate.Actor,
	expectedVersion int64,
	eventType string,
	metadata map[string]any,
	effects EffectsFunc,
) (*Result, error) {
	order, err := loadForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.OrderVersion != expectedVersion {
		return nil, apperr.Conflict("order version mismatch; reload and retry")
	}
	if orderstate.IsTerminal(order.Status) {
		return nil, apperr.InvalidTransition("order is in a terminal state")
	}
	if !orderstate.CanTransition(order.Status, target) {
		return nil, apperr.InvalidTransition("no such transition from current status")
	}
	if !orderstate.Authorize(order.Status, target, actor.Role, order.Type) {
		return nil, apperr.Forbidden("actor role is not authorised for this transition")
	}

	oldStatus := order.Status
	if effects != nil {
		if err := effects(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	order.Status = target
	order.OrderVersion++
	stampTransitionTime(order, target, now)

	if err := persist(ctx, tx, order, expectedVersion); err != nil {
		return nil, err
	}

	eventID := uuid.New().String()
	if err := insertEvent(ctx, tx, eventID, order, oldStatus, eventType, actor, metadata); err != nil {
		return nil, err
	}

	historyID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `INSERT INTO order_status_history (id, order_id, status) VALUES ($1, $2, $3)`, historyID, order.ID, order.Status); err != nil {
		return nil, apperr.Internal("failed to write order status history", err)
	}

	outboxID, err := stageOutbox(ctx, tx, order, oldStatus, eventType, actor)
	if err != nil {
		return nil, err
	}

	return &Result{Order: order, EventID: eventID, OutboxID: outboxID}, nil
}

// stampTransitionTime sets the one timestamp column spec §3 names for each
// target status. Statuses with no dedicated column (escrow_pending,
// payment_pending, releasing, disputed) set none.
func stampTransitionTime(order *orderstate.Order, target orderstate.Status, now time.Time) {
	switch target {
	case orderstate.StatusAccepted:
		order.AcceptedAt = &now
	case orderstate.StatusEscrowed:
		order.EscrowedAt = &now
	case orderstate.StatusPaymentSent:
		order.PaymentSentAt = &now
	case orderstate.StatusPaymentConfirmed:
		order.PaymentConfirmedAt = &now
	case orderstate.StatusCompleted:
		order.CompletedAt = &now
	case orderstate.StatusCancelled:
		order.CancelledAt = &now
	}
}

func insertEvent(ctx context.Context, tx *sql.Tx, id string, order *orderstate.Order, oldStatus orderstate.Status, eventType string, actor orderstate.Actor, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperr.Internal("failed to marshal event metadata", err)
	}
	const q = `
		INSERT INTO order_events (id, order_id, old_status, new_status, event_type, actor_type, actor_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, q, id, order.ID, oldStatus, order.Status, eventType, actor.Role, actor.ID, metaJSON); err != nil {
		return apperr.Internal("failed to write order event", err)
	}
	return nil
}

// outboxPayload carries the fields spec §3's "Outbox envelope" names.
type outboxPayload struct {
	OrderID         string `json:"orderId"`
	PreviousStatus  string `json:"previousStatus"`
	Status          string `json:"status"`
	OrderVersion    int64  `json:"orderVersion"`
	Actor           string `json:"actor"`
	MinimalStatus   string `json:"minimalStatus"`
}

func stageOutbox(ctx context.Context, tx *sql.Tx, order *orderstate.Order, oldStatus orderstate.Status, eventType string, actor orderstate.Actor) (string, error) {
	payload := outboxPayload{
		OrderID:        order.ID,
		PreviousStatus: string(oldStatus),
		Status:         string(order.Status),
		OrderVersion:   order.OrderVersion,
		Actor:          string(actor.Role),
		MinimalStatus:  string(orderstate.Minimal(order.Status)),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", apperr.Internal("failed to marshal outbox payload", err)
	}
	id := uuid.New().String()
	const q = `
		INSERT INTO notification_outbox (id, event_type, order_id, payload, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`
	if _, err := tx.ExecContext(ctx, q, id, eventType, order.ID, payloadJSON); err != nil {
		return "", apperr.Internal("failed to stage outbox row", err)
	}
	return id, nil
}

func loadForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*orderstate.Order, error) {
	return loadOrder(ctx, tx, orderID, true)
}

// loadOrder reads one order row, appending FOR UPDATE only when lock is set.
func loadOrder(ctx context.Context, tx *sql.Tx, orderID string, lock bool) (*orderstate.Order, error) {
	q := `
		SELECT id, order_number, seller_merchant_id, user_id, COALESCE(buyer_merchant_id::text, ''), COALESCE(offer_id,''),
		       type, crypto_amount, fiat_amount, rate, crypto_currency, fiat_currency, payment_method, payment_details,
		       status, order_version,
		       created_at, accepted_at, escrowed_at, payment_sent_at, payment_confirmed_at, completed_at, cancelled_at, expires_at,
		       COALESCE(escrow_debited_entity_type,''), COALESCE(escrow_debited_entity_id::text,''), escrow_debited_amount,
		       COALESCE(escrow_tx_hash,''), COALESCE(release_tx_hash,''), COALESCE(refund_tx_hash,''),
		       protocol_fee_percentage, protocol_fee_amount
		FROM orders WHERE id = $1
	`
	if lock {
		q += " FOR UPDATE"
	}
	order := &orderstate.Order{}
	var paymentDetailsJSON []byte
	var escrowDebitedAmount sql.NullFloat64
	err := tx.QueryRowContext(ctx, q, orderID).Scan(
		&order.ID, &order.OrderNumber, &order.SellerMerchantID, &order.UserID, &order.BuyerMerchantID, &order.OfferID,
		&order.Type, &order.CryptoAmount, &order.FiatAmount, &order.Rate, &order.CryptoCurrency, &order.FiatCurrency, &order.PaymentMethod, &paymentDetailsJSON,
		&order.Status, &order.OrderVersion,
		&order.CreatedAt, &order.AcceptedAt, &order.EscrowedAt, &order.PaymentSentAt, &order.PaymentConfirmedAt, &order.CompletedAt, &order.CancelledAt, &order.ExpiresAt,
		&order.EscrowDebitedEntityType, &order.EscrowDebitedEntityID, &escrowDebitedAmount,
		&order.EscrowTxHash, &order.ReleaseTxHash, &order.RefundTxHash,
		&order.ProtocolFeePercentage, &order.ProtocolFeeAmount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("order not found")
		}
		return nil, apperr.Internal("failed to load order for update", err)
	}
	if escrowDebitedAmount.Valid {
		order.EscrowDebitedAmount = decimal.NewFromFloat(escrowDebitedAmount.Float64)
	}
	if err := json.Unmarshal(paymentDetailsJSON, &order.PaymentDetails); err != nil {
		return nil, apperr.Internal("failed to decode payment details", err)
	}
	return order, nil
}

func persist(ctx context.Context, tx *sql.Tx, order *orderstate.Order, expectedVersion int64) error {
	paymentDetailsJSON, err := json.Marshal(order.PaymentDetails)
	if err != nil {
		return apperr.Internal("failed to marshal payment details", err)
	}

	var buyerMerchantID, escrowEntityType, escrowEntityID, escrowTxHash, releaseTxHash, refundTxHash any
	if order.BuyerMerchantID != "" {
		buyerMerchantID = order.BuyerMerchantID
	}
	if order.EscrowDebitedEntityType != "" {
		escrowEntityType = order.EscrowDebitedEntityType
	}
	if order.EscrowDebitedEntityID != "" {
		escrowEntityID = order.EscrowDebitedEntityID
	}
	if order.EscrowTxHash != "" {
		escrowTxHash = order.EscrowTxHash
	}
	if order.ReleaseTxHash != "" {
		releaseTxHash = order.ReleaseTxHash
	}
	if order.RefundTxHash != "" {
		refundTxHash = order.RefundTxHash
	}

	const q = `
		UPDATE orders SET
		  buyer_merchant_id = $1,
		  status = $2,
		  order_version = $3,
		  accepted_at = $4,
		  escrowed_at = $5,
		  payment_sent_at = $6,
		  payment_confirmed_at = $7,
		  completed_at = $8,
		  cancelled_at = $9,
		  escrow_debited_entity_type = $10,
		  escrow_debited_entity_id = $11,
		  escrow_debited_amount = $12,
		  escrow_tx_hash = $13,
		  release_tx_hash = $14,
		  refund_tx_hash = $15,
		  protocol_fee_amount = $16,
		  payment_details = $17
		WHERE id = $18 AND order_version = $19
	`
	res, err := tx.ExecContext(ctx, q,
		buyerMerchantID, order.Status, order.OrderVersion,
		order.AcceptedAt, order.EscrowedAt, order.PaymentSentAt, order.PaymentConfirmedAt, order.CompletedAt, order.CancelledAt,
		escrowEntityType, escrowEntityID, nullableDecimal(order.EscrowDebitedAmount),
		escrowTxHash, releaseTxHash, refundTxHash,
		order.ProtocolFeeAmount, paymentDetailsJSON,
		order.ID, expectedVersion,
	)
	if err != nil {
		return apperr.Internal("failed to persist order transition", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("failed to read rows affected", err)
	}
	if rows == 0 {
		return apperr.Conflict("order was modified concurrently")
	}
	return nil
}

func nullableDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d
}

// GetOrder reads an order without taking a lock, for read-only handlers.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*orderstate.Order, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, apperr.Internal("failed to begin read transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	order, err := loadOrder(ctx, tx, orderID, false)
	if err != nil {
		return nil, err
	}
	return order, nil
}
