// Package lifecycle exposes the idempotent operations of spec §4.5:
// CreateOrder, AcceptOrder, LockEscrow, MarkPaymentSent, ConfirmPayment,
// ReleaseEscrow (plus the compound ConfirmAndRelease), CancelOrder, and
// ExpireOrder. Every mutating operation except ExpireOrder accepts an
// optional idempotency key: a repeat submission with the same key returns
// the first result without re-applying effects (spec §5 "Idempotency").
//
// Grounded on the teacher's pkg/api/orders.go (CreateOrderHandler's
// idempotency-key lookup before insert) generalized across every endpoint
// instead of just create, and on pkg/api/events.go (PATCH status handler)
// for the accept/payment/confirm transitions.
package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/escrow"
	"github.com/oxzoid/settlementcore/internal/idempotency"
	"github.com/oxzoid/settlementcore/internal/money"
	"github.com/oxzoid/settlementcore/internal/orderstate"
	"github.com/oxzoid/settlementcore/internal/store"
)

// Lifecycle composes the store, escrow and idempotency components into the
// external-facing operation set.
type Lifecycle struct {
	Store  *store.Store
	Escrow *escrow.Escrow
	Idem   *idempotency.Store
	Fees   money.FeeSchedule
	TTL    time.Duration
}

func New(s *store.Store, e *escrow.Escrow, idem *idempotency.Store, fees money.FeeSchedule, ttl time.Duration) *Lifecycle {
	return &Lifecycle{Store: s, Escrow: e, Idem: idem, Fees: fees, TTL: ttl}
}

// withIdempotency wraps a mutating operation with the lookup/record pattern
// common to every endpoint: a hit on an existing key returns the cached
// order without calling fn; a miss runs fn and records its result in a
// follow-up transaction. Recording happens after the main transition
// commits rather than inside it — a window in which a crash between commit
// and record could allow one re-applied effect on retry, which is why every
// effects closure in internal/escrow and internal/store is independently
// guarded (version check, write-once tx-hash columns) against re-application.
func (l *Lifecycle) withIdempotency(ctx context.Context, key, actorID, endpoint string, fn func() (*orderstate.Order, error)) (*orderstate.Order, error) {
	if rec, ok, err := l.Idem.Lookup(ctx, key, actorID, endpoint); err != nil {
		return nil, err
	} else if ok {
		var order orderstate.Order
		if err := json.Unmarshal(rec.ResponseBody, &order); err != nil {
			return nil, apperr.Internal("failed to decode cached response", err)
		}
		return &order, nil
	}

	order, err := fn()
	if err != nil {
		return nil, err
	}

	if key != "" {
		body, err := json.Marshal(order)
		if err != nil {
			return nil, apperr.Internal("failed to marshal response", err)
		}
		tx, err := l.Store.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, apperr.Internal("failed to begin idempotency transaction", err)
		}
		if err := l.Idem.Record(ctx, tx, key, actorID, endpoint, 200, body); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, apperr.Internal("failed to commit idempotency record", err)
		}
	}
	return order, nil
}

// CreateOrderRequest is the validated input to CreateOrder (spec §6 POST
// /orders body).
type CreateOrderRequest struct {
	SellerMerchantID string
	UserID           string
	BuyerMerchantID  string
	OfferID          string
	Type             orderstate.OrderType
	CryptoAmount     decimal.Decimal
	FiatAmount       decimal.Decimal // optional; computed from Rate if zero
	Rate             decimal.Decimal
	CryptoCurrency   string
	FiatCurrency     string
	PaymentMethod    orderstate.PaymentMethod
	PaymentDetails   orderstate.PaymentDetails
	SpreadPreference orderstate.SpreadPreference
	IdempotencyKey   string
	Actor            orderstate.Actor
}

func (r *CreateOrderRequest) validate() error {
	if r.SellerMerchantID == "" || r.UserID == "" {
		return apperr.Validation("seller_merchant_id and user_id are required")
	}
	if r.Type != orderstate.TypeBuy && r.Type != orderstate.TypeSell {
		return apperr.Validation("type must be buy or sell")
	}
	if r.CryptoAmount.IsZero() || r.CryptoAmount.IsNegative() {
		return apperr.Validation("crypto_amount must be positive")
	}
	if r.Rate.IsZero() || r.Rate.IsNegative() {
		return apperr.Validation("rate must be positive")
	}
	if r.PaymentMethod != orderstate.PaymentBank && r.PaymentMethod != orderstate.PaymentCash {
		return apperr.Validation("payment_method must be bank or cash")
	}
	return nil
}

// CreateOrder snapshots offer terms and the chosen fee percentage, sets
// expires_at = now + TTL, writes the initial event, and stages an
// ORDER_CREATED outbox row — all in one transaction. This does not go
// through ApplyTransition since the order row does not exist yet.
func (l *Lifecycle) CreateOrder(ctx context.Context, req CreateOrderRequest) (*orderstate.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if rec, ok, err := l.Idem.Lookup(ctx, req.IdempotencyKey, req.Actor.ID, "CreateOrder"); err != nil {
		return nil, err
	} else if ok {
		var order orderstate.Order
		if err := json.Unmarshal(rec.ResponseBody, &order); err != nil {
			return nil, apperr.Internal("failed to decode cached create response", err)
		}
		return &order, nil
	}

	tx, err := l.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	order := &orderstate.Order{
		ID:               uuid.New().String(),
		SellerMerchantID: req.SellerMerchantID,
		UserID:           req.UserID,
		BuyerMerchantID:  req.BuyerMerchantID,
		OfferID:          req.OfferID,
		Type:             req.Type,
		CryptoAmount:     req.CryptoAmount,
		Rate:             req.Rate,
		CryptoCurrency:   req.CryptoCurrency,
		FiatCurrency:     req.FiatCurrency,
		PaymentMethod:    req.PaymentMethod,
		PaymentDetails:   req.PaymentDetails,
		Status:           orderstate.StatusPending,
		OrderVersion:     1,
		CreatedAt:        now,
		ExpiresAt:        now.Add(l.TTL),
	}
	if req.FiatAmount.IsPositive() {
		order.FiatAmount = req.FiatAmount
	} else {
		order.FiatAmount = money.FiatAmount(order.CryptoAmount, order.Rate)
	}
	order.ProtocolFeePercentage = l.Fees.PercentageFor(req.SpreadPreference)
	order.ProtocolFeeAmount = money.FeeAmount(order.CryptoAmount, order.ProtocolFeePercentage)

	orderNumber, err := nextOrderNumber(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = orderNumber

	paymentDetailsJSON, err := json.Marshal(order.PaymentDetails)
	if err != nil {
		return nil, apperr.Internal("failed to marshal payment details", err)
	}

	const insertOrder = `
		INSERT INTO orders (
		  id, order_number, seller_merchant_id, user_id, buyer_merchant_id, offer_id,
		  type, crypto_amount, fiat_amount, rate, crypto_currency, fiat_currency, payment_method, payment_details,
		  status, order_version, created_at, expires_at, protocol_fee_percentage, protocol_fee_amount
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	var buyerMerchantID any
	if order.BuyerMerchantID != "" {
		buyerMerchantID = order.BuyerMerchantID
	}
	var offerID any
	if order.OfferID != "" {
		offerID = order.OfferID
	}
	if _, err := tx.ExecContext(ctx, insertOrder,
		order.ID, order.OrderNumber, order.SellerMerchantID, order.UserID, buyerMerchantID, offerID,
		order.Type, order.CryptoAmount, order.FiatAmount, order.Rate, order.CryptoCurrency, order.FiatCurrency, order.PaymentMethod, paymentDetailsJSON,
		order.Status, order.OrderVersion, order.CreatedAt, order.ExpiresAt, order.ProtocolFeePercentage, order.ProtocolFeeAmount,
	); err != nil {
		return nil, apperr.Internal("failed to insert order", err)
	}

	metaJSON, _ := json.Marshal(map[string]any{})
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, old_status, new_status, event_type, actor_type, actor_id, metadata)
		VALUES ($1, $2, NULL, $3, $4, $5, $6, $7)
	`, uuid.New().String(), order.ID, order.Status, "order.created", req.Actor.Role, req.Actor.ID, metaJSON); err != nil {
		return nil, apperr.Internal("failed to write creation event", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO order_status_history (id, order_id, status) VALUES ($1, $2, $3)`,
		uuid.New().String(), order.ID, order.Status); err != nil {
		return nil, apperr.Internal("failed to write order status history", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"orderId":       order.ID,
		"status":        order.Status,
		"orderVersion":  order.OrderVersion,
		"minimalStatus": orderstate.Minimal(order.Status),
	})
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notification_outbox (id, event_type, order_id, payload, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`, uuid.New().String(), "ORDER_CREATED", order.ID, payload); err != nil {
		return nil, apperr.Internal("failed to stage creation outbox row", err)
	}

	responseBody, err := json.Marshal(order)
	if err != nil {
		return nil, apperr.Internal("failed to marshal create response", err)
	}
	if err := l.Idem.Record(ctx, tx, req.IdempotencyKey, req.Actor.ID, "CreateOrder", 201, responseBody); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("failed to commit order creation", err)
	}
	return order, nil
}

func nextOrderNumber(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", apperr.Internal("failed to allocate order number", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), seq), nil
}

// AcceptOrder drives pending -> accepted. The actor must be the seller
// merchant named on the order.
func (l *Lifecycle) AcceptOrder(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "AcceptOrder", func() (*orderstate.Order, error) {
		order, err := l.Store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if actor.Role == orderstate.ActorMerchant && actor.ID != order.SellerMerchantID {
			return nil, apperr.Forbidden("actor is not the seller merchant for this order")
		}
		result, err := l.Store.ApplyTransition(ctx, orderID, orderstate.StatusAccepted, actor, expectedVersion, "order.accepted", nil, store.NoEffects)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// LockEscrow drives accepted/escrow_pending -> escrowed (spec §4.4). See
// escrow.Lock for the externalTxHash contract.
func (l *Lifecycle) LockEscrow(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, externalTxHash, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "LockEscrow", func() (*orderstate.Order, error) {
		result, err := l.Escrow.Lock(ctx, orderID, actor, expectedVersion, externalTxHash)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// MarkPaymentSent drives escrowed -> payment_sent. The actor must be the
// specific fiat payer for this order (spec §4.2's type-dependent payer
// rule), not merely hold the right role.
func (l *Lifecycle) MarkPaymentSent(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "MarkPaymentSent", func() (*orderstate.Order, error) {
		order, err := l.Store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if actor.ID != order.FiatPayerID() {
			return nil, apperr.Forbidden("actor is not the fiat payer for this order")
		}
		result, err := l.Store.ApplyTransition(ctx, orderID, orderstate.StatusPaymentSent, actor, expectedVersion, "order.payment_sent", nil, store.NoEffects)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// ConfirmPayment drives payment_sent -> payment_confirmed. The actor must
// be the specific fiat receiver for this order.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "ConfirmPayment", func() (*orderstate.Order, error) {
		order, err := l.Store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if actor.ID != order.FiatReceiverID() {
			return nil, apperr.Forbidden("actor is not the fiat receiver for this order")
		}
		result, err := l.Store.ApplyTransition(ctx, orderID, orderstate.StatusPaymentConfirmed, actor, expectedVersion, "order.payment_confirmed", nil, store.NoEffects)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// ReleaseEscrow drives payment_confirmed -> completed directly (spec §9's
// open-question decision: releasing is optional scaffolding with identical
// ledger effects, so this engine always takes the direct edge).
func (l *Lifecycle) ReleaseEscrow(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "ReleaseEscrow", func() (*orderstate.Order, error) {
		result, err := l.Escrow.Release(ctx, orderID, orderstate.StatusCompleted, actor, expectedVersion)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// ConfirmAndRelease is the compound operation spec §4.5 calls out by name:
// payment_sent -> payment_confirmed -> completed in one transaction, with
// two events and two outbox rows, when the fiat receiver confirms and
// releases in the same call.
func (l *Lifecycle) ConfirmAndRelease(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "ConfirmAndRelease", func() (*orderstate.Order, error) {
		order, err := l.Store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if actor.ID != order.FiatReceiverID() {
			return nil, apperr.Forbidden("actor is not the fiat receiver for this order")
		}

		tx, err := l.Store.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, apperr.Internal("failed to begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		confirmed, err := l.Store.ApplyTransitionTx(ctx, tx, orderID, orderstate.StatusPaymentConfirmed, actor, expectedVersion, "order.payment_confirmed", nil, store.NoEffects)
		if err != nil {
			return nil, err
		}
		released, err := l.Store.ApplyTransitionTx(ctx, tx, orderID, orderstate.StatusCompleted, actor, confirmed.Order.OrderVersion, escrow.OutboxEventType(orderstate.StatusCompleted), nil, l.Escrow.ReleaseEffects())
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, apperr.Internal("failed to commit confirm-and-release", err)
		}
		return released.Order, nil
	})
}

// CancelOrder drives an order -> cancelled from any status with a cancelled
// edge (not payment_confirmed or releasing), refunding escrow if it was
// locked (spec §4.4 EscrowRefund).
func (l *Lifecycle) CancelOrder(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, reason, idemKey string) (*orderstate.Order, error) {
	return l.withIdempotency(ctx, idemKey, actor.ID, "CancelOrder", func() (*orderstate.Order, error) {
		result, err := l.Escrow.Refund(ctx, orderID, orderstate.StatusCancelled, actor, expectedVersion)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	})
}

// ExpireOrder drives a non-terminal, past-deadline order -> expired,
// refunding escrow if it was locked. System actor only (spec §4.7); called
// by internal/sweeper and by the manual POST /orders/expire trigger.
func (l *Lifecycle) ExpireOrder(ctx context.Context, orderID string, expectedVersion int64) (*orderstate.Order, error) {
	systemActor := orderstate.Actor{Role: orderstate.ActorSystem}
	result, err := l.Escrow.Refund(ctx, orderID, orderstate.StatusExpired, systemActor, expectedVersion)
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}
