// Package dispute implements the sub-machine of spec §4.8: OpenDispute
// attaches a dispute record to an order in disputed status; a proposed
// resolution requires both-party confirmation before it executes a ledger
// split and drives the order to a terminal status.
//
// Grounded on the teacher's pkg/api/refunds.go transaction pattern (lock,
// credit, commit) generalized to a two-way split, and on spec §9's tagged
// variant guidance for the "resolution" union (user/merchant/split) instead
// of an untyped record.
package dispute

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/escrow"
	"github.com/oxzoid/settlementcore/internal/ledger"
	"github.com/oxzoid/settlementcore/internal/orderstate"
	"github.com/oxzoid/settlementcore/internal/store"
)

// Status is one of the three states a dispute record occupies.
type Status string

const (
	StatusOpen                Status = "open"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusResolved            Status = "resolved"
)

// Resolution is the tagged variant spec §9 calls for in place of an untyped
// {user, merchant, split} record.
type Resolution string

const (
	ResolutionUser     Resolution = "user"     // user wins, order cancelled, full refund
	ResolutionMerchant Resolution = "merchant" // merchant wins, order completed, full amount to the merchant
	ResolutionSplit    Resolution = "split"    // split_percentage governs the ledger split
)

// Dispute is the persisted dispute record attached 1:1 to an order.
type Dispute struct {
	ID                string
	OrderID           string
	Status            Status
	Reason            string
	Description       string
	InitiatedBy       orderstate.ActorRole
	InitiatorID       string
	Resolution        Resolution
	SplitUserPct      decimal.Decimal
	SplitMerchantPct  decimal.Decimal
	UserConfirmed     bool
	MerchantConfirmed bool
	UserAmount        decimal.Decimal
	MerchantAmount    decimal.Decimal
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Dispute composes the store primitive to drive the order alongside the
// dispute record's own table.
type Service struct {
	Store *store.Store
}

func New(s *store.Store) *Service { return &Service{Store: s} }

// Open drives escrowed/payment_sent/payment_confirmed/releasing -> disputed
// and inserts the dispute record. A dispute may be opened only once per
// order: the disputes.order_id UNIQUE constraint enforces this at the
// database level, surfaced here as Conflict.
func (s *Service) Open(ctx context.Context, orderID string, actor orderstate.Actor, expectedVersion int64, reason, description string) (*Dispute, error) {
	tx, err := s.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.Store.ApplyTransitionTx(ctx, tx, orderID, orderstate.StatusDisputed, actor, expectedVersion, "dispute.opened", nil, store.NoEffects); err != nil {
		return nil, err
	}

	d := &Dispute{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		Status:      StatusOpen,
		Reason:      reason,
		Description: description,
		InitiatedBy: actor.Role,
		InitiatorID: actor.ID,
		CreatedAt:   time.Now().UTC(),
	}
	const q = `
		INSERT INTO disputes (id, order_id, status, reason, description, initiated_by, initiator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, q, d.ID, d.OrderID, d.Status, d.Reason, d.Description, d.InitiatedBy, d.InitiatorID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperr.Conflict("a dispute has already been opened for this order")
		}
		return nil, apperr.Internal("failed to insert dispute record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("failed to commit dispute open", err)
	}
	return d, nil
}

// Propose attaches a resolution to an open dispute and moves it to
// pending_confirmation, resetting both confirmation flags: a new proposal
// invalidates any prior party's confirmation of a different proposal.
func (s *Service) Propose(ctx context.Context, orderID string, resolution Resolution, splitUserPct, splitMerchantPct decimal.Decimal) (*Dispute, error) {
	if resolution == ResolutionSplit {
		if !splitUserPct.Add(splitMerchantPct).Equal(decimal.NewFromInt(100)) {
			return nil, apperr.Validation("split percentages must sum to 100")
		}
	}
	const q = `
		UPDATE disputes SET
		  status = $1, resolution = $2, split_user_pct = $3, split_merchant_pct = $4,
		  user_confirmed = false, merchant_confirmed = false
		WHERE order_id = $5 AND status IN ('open', 'pending_confirmation')
	`
	res, err := s.Store.DB.ExecContext(ctx, q, StatusPendingConfirmation, resolution, nullDecimal(splitUserPct), nullDecimal(splitMerchantPct), orderID)
	if err != nil {
		return nil, apperr.Internal("failed to propose resolution", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return nil, apperr.NotFound("no open dispute for this order")
	}
	return s.load(ctx, orderID)
}

// Confirm records one party's confirmation of the current proposal. party
// is "user" or "merchant". On double-confirmation it executes the ledger
// split and drives the order to its resolved terminal status, all in one
// transaction.
func (s *Service) Confirm(ctx context.Context, orderID string, party orderstate.PartyType, expectedVersion int64) (*Dispute, error) {
	d, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPendingConfirmation {
		return nil, apperr.InvalidTransition("dispute has no pending resolution to confirm")
	}

	column := "user_confirmed"
	if party == orderstate.PartyMerchant {
		column = "merchant_confirmed"
	}
	if _, err := s.Store.DB.ExecContext(ctx, `UPDATE disputes SET `+column+` = true WHERE order_id = $1`, orderID); err != nil {
		return nil, apperr.Internal("failed to record confirmation", err)
	}

	d, err = s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !(d.UserConfirmed && d.MerchantConfirmed) {
		return d, nil
	}
	return s.execute(ctx, d, expectedVersion)
}

// Reject reverts a pending-confirmation dispute back to open: no state
// change on the order itself.
func (s *Service) Reject(ctx context.Context, orderID string) (*Dispute, error) {
	const q = `
		UPDATE disputes SET status = 'open', resolution = NULL, split_user_pct = NULL, split_merchant_pct = NULL,
		  user_confirmed = false, merchant_confirmed = false
		WHERE order_id = $1 AND status = 'pending_confirmation'
	`
	res, err := s.Store.DB.ExecContext(ctx, q, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to reject resolution", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, apperr.InvalidTransition("dispute has no pending resolution to reject")
	}
	return s.load(ctx, orderID)
}

// execute computes user_amount/merchant_amount from the order's crypto
// amount and the confirmed resolution, credits both ledgers inside one
// transaction, and drives the order to completed (merchant-won/split) or
// cancelled (user-won).
func (s *Service) execute(ctx context.Context, d *Dispute, expectedVersion int64) (*Dispute, error) {
	order, err := s.Store.GetOrder(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}

	var userAmount, merchantAmount decimal.Decimal
	var target orderstate.Status
	switch d.Resolution {
	case ResolutionUser:
		userAmount = order.CryptoAmount
		target = orderstate.StatusCancelled
	case ResolutionMerchant:
		merchantAmount = order.CryptoAmount
		target = orderstate.StatusCompleted
	case ResolutionSplit:
		userAmount = order.CryptoAmount.Mul(d.SplitUserPct).Div(decimal.NewFromInt(100)).Round(8)
		merchantAmount = order.CryptoAmount.Sub(userAmount)
		target = orderstate.StatusCompleted
	default:
		return nil, apperr.Internal("dispute has no resolution set", nil)
	}

	tx, err := s.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	effects := func(ctx context.Context, tx *sql.Tx, order *orderstate.Order) error {
		if !userAmount.IsZero() {
			if _, err := ledger.Credit(ctx, tx, orderstate.PartyUser, order.UserID, order.ID, userAmount, ledger.EntryRefund, ""); err != nil {
				return err
			}
		}
		if !merchantAmount.IsZero() {
			merchantID := order.SellerMerchantID
			if order.BuyerMerchantID != "" {
				merchantID = order.BuyerMerchantID
			}
			if _, err := ledger.Credit(ctx, tx, orderstate.PartyMerchant, merchantID, order.ID, merchantAmount, ledger.EntryEscrowRelease, ""); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := s.Store.ApplyTransitionTx(ctx, tx, d.OrderID, target, orderstate.Actor{Role: orderstate.ActorSystem}, expectedVersion, escrow.OutboxEventType(target), map[string]any{
		"resolution":      d.Resolution,
		"user_amount":     userAmount.String(),
		"merchant_amount": merchantAmount.String(),
	}, effects); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE disputes SET status = 'resolved', user_amount = $1, merchant_amount = $2, resolved_at = $3 WHERE order_id = $4
	`, userAmount, merchantAmount, now, d.OrderID); err != nil {
		return nil, apperr.Internal("failed to mark dispute resolved", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("failed to commit dispute resolution", err)
	}

	d.Status = StatusResolved
	d.UserAmount = userAmount
	d.MerchantAmount = merchantAmount
	d.ResolvedAt = &now
	return d, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*Dispute, error) {
	const q = `
		SELECT id, order_id, status, reason, COALESCE(description,''), initiated_by, COALESCE(initiator_id,''),
		       COALESCE(resolution,''), COALESCE(split_user_pct,0), COALESCE(split_merchant_pct,0),
		       user_confirmed, merchant_confirmed, COALESCE(user_amount,0), COALESCE(merchant_amount,0),
		       created_at, resolved_at
		FROM disputes WHERE order_id = $1
	`
	d := &Dispute{}
	err := s.Store.DB.QueryRowContext(ctx, q, orderID).Scan(
		&d.ID, &d.OrderID, &d.Status, &d.Reason, &d.Description, &d.InitiatedBy, &d.InitiatorID,
		&d.Resolution, &d.SplitUserPct, &d.SplitMerchantPct,
		&d.UserConfirmed, &d.MerchantConfirmed, &d.UserAmount, &d.MerchantAmount,
		&d.CreatedAt, &d.ResolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no dispute for this order")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load dispute", err)
	}
	return d, nil
}

func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d
}
