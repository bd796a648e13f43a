// Package escrow implements spec §4.4's three escrow primitives as thin
// effects wired into store.ApplyTransition: Lock debits the payer and
// snapshots provenance, Release credits the recipient and deducts the
// platform fee, Refund credits the recorded original payer. None of these
// touch the orders table directly — store.Store does that uniformly. Each
// primitive also exposes its effects as a standalone store.EffectsFunc
// (LockEffects/ReleaseEffects/RefundEffects) so internal/lifecycle can
// compose two transitions into one transaction for compound operations
// (spec §4.5's confirm-and-release).
//
// Grounded on the teacher's pkg/api/refunds.go (lock the crypto sender's
// balance, write a ledger row, stamp a tx hash on the order) and on
// mbd888-alancoin's escrow package (escrow.Service composing a
// LedgerService instead of writing SQL inline).
package escrow

import (
	"context"
	"database/sql"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/bridge"
	"github.com/oxzoid/settlementcore/internal/ledger"
	"github.com/oxzoid/settlementcore/internal/orderstate"
	"github.com/oxzoid/settlementcore/internal/store"
)

// Escrow wires the store primitive with a bridge used to mint or verify the
// escrow/release/refund transaction hash, the one foreign-system detail
// this package depends on.
type Escrow struct {
	Store                 *store.Store
	Bridge                bridge.Bridge
	PlatformWalletAddress string
}

func New(s *store.Store, b bridge.Bridge, platformWalletAddress string) *Escrow {
	return &Escrow{Store: s, Bridge: b, PlatformWalletAddress: platformWalletAddress}
}

// LockEffects debits the payer's balance and snapshots
// escrow_debited_entity_{type,id,amount} and escrow_tx_hash so Refund can
// always find the original payer, regardless of later reassignment.
//
// externalTxHash, if non-empty, is a transaction hash the payer submitted as
// having already transferred the crypto amount on-chain to the platform
// wallet — the bridge verifies it instead of minting an internal reference.
func (e *Escrow) LockEffects(externalTxHash string) store.EffectsFunc {
	return func(ctx context.Context, tx *sql.Tx, order *orderstate.Order) error {
		if order.EscrowTxHash != "" {
			return apperr.Conflict("escrow has already been locked for this order")
		}
		payerType, payerID := order.Payer()

		var txHash string
		if externalTxHash != "" {
			if err := e.Bridge.VerifyIncomingTx(ctx, externalTxHash, e.PlatformWalletAddress, order.CryptoAmount); err != nil {
				return apperr.Validation("escrow transaction could not be verified: " + err.Error())
			}
			txHash = externalTxHash
		} else {
			minted, err := e.Bridge.MintTx(ctx, order.ID, order.CryptoAmount)
			if err != nil {
				return apperr.Internal("failed to mint escrow transaction", err)
			}
			txHash = minted
		}

		if _, err := ledger.DebitAndLock(ctx, tx, payerType, payerID, order.ID, order.CryptoAmount, txHash); err != nil {
			return err
		}
		order.EscrowDebitedEntityType = payerType
		order.EscrowDebitedEntityID = payerID
		order.EscrowDebitedAmount = order.CryptoAmount
		order.EscrowTxHash = txHash
		return nil
	}
}

// Lock drives accepted/escrow_pending -> escrowed (spec §4.2) in its own
// transaction.
func (e *Escrow) Lock(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, externalTxHash string) (*store.Result, error) {
	return e.Store.ApplyTransition(ctx, orderID, orderstate.StatusEscrowed, actor, expectedVersion, "escrow.locked", nil, e.LockEffects(externalTxHash))
}

// ReleaseEffects credits the recipient the full crypto_amount and separately
// debits the protocol fee from the original payer, stamping release_tx_hash.
// Rejects if release_tx_hash or refund_tx_hash is already set (they are
// mutually exclusive for the lifetime of an order) or if escrow was never
// locked.
func (e *Escrow) ReleaseEffects() store.EffectsFunc {
	return func(ctx context.Context, tx *sql.Tx, order *orderstate.Order) error {
		if order.ReleaseTxHash != "" || order.RefundTxHash != "" {
			return apperr.Conflict("escrow has already been released or refunded for this order")
		}
		if order.EscrowTxHash == "" {
			return apperr.InvalidTransition("cannot release escrow that was never locked")
		}
		recipientType, recipientID := order.Recipient()
		txHash, err := e.Bridge.MintTx(ctx, order.ID, order.CryptoAmount)
		if err != nil {
			return apperr.Internal("failed to mint release transaction", err)
		}
		if _, err := ledger.Credit(ctx, tx, recipientType, recipientID, order.ID, order.CryptoAmount, ledger.EntryEscrowRelease, txHash); err != nil {
			return err
		}
		if !order.ProtocolFeeAmount.IsZero() {
			payerType, payerID, _ := order.OriginalPayer()
			if _, err := ledger.RecordFee(ctx, tx, payerType, payerID, order.ID, order.ProtocolFeeAmount); err != nil {
				return err
			}
		}
		order.ReleaseTxHash = txHash
		return nil
	}
}

// Release drives payment_confirmed (optionally via releasing) -> completed
// (spec §4.2/§4.4) in its own transaction. The double-spend guard (spec
// §4.4) falls out of ApplyTransition's version check plus row lock: two
// concurrent releases race on the same expectedVersion and only one commits.
func (e *Escrow) Release(ctx context.Context, orderID string, target orderstate.Status, actor orderstate.Actor, expectedVersion int64) (*store.Result, error) {
	return e.Store.ApplyTransition(ctx, orderID, target, actor, expectedVersion, OutboxEventType(target), nil, e.ReleaseEffects())
}

// RefundEffects credits the recorded escrow_debited_entity snapshot in full
// — never the order's current merchant_id, so a reassigned seller can't
// intercept a refund meant for the original payer. If escrow was never
// locked, only the status changes: release_tx_hash and refund_tx_hash both
// stay null, matching the pre-escrow cancel round-trip law.
func (e *Escrow) RefundEffects() store.EffectsFunc {
	return func(ctx context.Context, tx *sql.Tx, order *orderstate.Order) error {
		if order.ReleaseTxHash != "" || order.RefundTxHash != "" {
			return apperr.Conflict("escrow has already been released or refunded for this order")
		}
		payerType, payerID, ok := order.OriginalPayer()
		if !ok {
			return nil
		}
		txHash, err := e.Bridge.MintTx(ctx, order.ID, order.CryptoAmount)
		if err != nil {
			return apperr.Internal("failed to mint refund transaction", err)
		}
		if _, err := ledger.Credit(ctx, tx, payerType, payerID, order.ID, order.EscrowDebitedAmount, ledger.EntryRefund, txHash); err != nil {
			return err
		}
		order.RefundTxHash = txHash
		return nil
	}
}

// Refund drives escrowed/payment_sent/disputed -> target (cancelled or
// expired) in its own transaction. target is a parameter because both
// CancelOrder and ExpireOrder invoke refund logic against different
// terminal statuses (spec §4.7).
func (e *Escrow) Refund(ctx context.Context, orderID string, target orderstate.Status, actor orderstate.Actor, expectedVersion int64) (*store.Result, error) {
	return e.Store.ApplyTransition(ctx, orderID, target, actor, expectedVersion, OutboxEventType(target), nil, e.RefundEffects())
}

// OutboxEventType maps a terminal order status to the notification_outbox
// event_type scenario consumers key off of (spec §8's ORDER_COMPLETED /
// ORDER_CANCELLED / ORDER_EXPIRED). Falls back to the status name itself for
// any non-terminal target, which ApplyTransition's own invariants prevent
// Release/Refund from ever being called with.
func OutboxEventType(target orderstate.Status) string {
	switch target {
	case orderstate.StatusCompleted:
		return "ORDER_COMPLETED"
	case orderstate.StatusCancelled:
		return "ORDER_CANCELLED"
	case orderstate.StatusExpired:
		return "ORDER_EXPIRED"
	default:
		return string(target)
	}
}
