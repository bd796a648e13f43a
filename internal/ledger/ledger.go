// Package ledger is the only component permitted to mutate balance columns
// (spec §4.1). Grounded on other_examples' mbd888-alancoin escrow/ledger
// pair (a LedgerService interface consumed by the escrow Service) and on
// the teacher's double-entry ledger_entries table (pkg/api/events.go), but
// promoted from teacher's string-formatted INSERT-two-rows pattern into a
// row-locked, single-party-per-call primitive that the store's
// ApplyTransition effects hook composes per spec §4.3 step 4.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// EntryKind encodes the semantic meaning of a ledger row for audit (spec §3).
type EntryKind string

const (
	EntryEscrowLock    EntryKind = "ESCROW_LOCK"
	EntryEscrowRelease EntryKind = "ESCROW_RELEASE"
	EntryRefund        EntryKind = "REFUND"
	EntryFee           EntryKind = "FEE"
)

// tableFor maps a party type to the balance table it's stored in.
func tableFor(t orderstate.PartyType) (string, error) {
	switch t {
	case orderstate.PartyUser:
		return "users", nil
	case orderstate.PartyMerchant:
		return "merchants", nil
	default:
		return "", fmt.Errorf("unknown account type %q", t)
	}
}

// Receipt is returned by a successful debit or credit: enough information
// for the caller to stamp provenance columns on the order row.
type Receipt struct {
	LedgerEntryID string
	AccountType   orderstate.PartyType
	AccountID     string
	Amount        decimal.Decimal
}

func insertEntry(ctx context.Context, tx *sql.Tx, accountType orderstate.PartyType, accountID, orderID string, kind EntryKind, amount decimal.Decimal, txHash, description string) (string, error) {
	id := uuid.New().String()
	const q = `
		INSERT INTO ledger_entries
		  (id, account_type, account_id, order_id, entry_kind, amount_signed, related_tx_hash, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var txHashArg any
	if txHash != "" {
		txHashArg = txHash
	}
	if _, err := tx.ExecContext(ctx, q, id, accountType, accountID, orderID, kind, amount, txHashArg, description); err != nil {
		return "", apperr.Internal("failed to write ledger entry", err)
	}
	return id, nil
}

// lockBalance acquires SELECT ... FOR UPDATE on the account row, returning
// its current balance. Must be called before any balance UPDATE to
// establish the order -> payer/recipient lock ordering spec §5 requires.
func lockBalance(ctx context.Context, tx *sql.Tx, accountType orderstate.PartyType, accountID string) (decimal.Decimal, error) {
	table, err := tableFor(accountType)
	if err != nil {
		return decimal.Zero, apperr.Internal("invalid account type", err)
	}
	var balance decimal.Decimal
	q := fmt.Sprintf(`SELECT balance FROM %s WHERE id = $1 FOR UPDATE`, table)
	if err := tx.QueryRowContext(ctx, q, accountID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apperr.NotFound("account not found")
		}
		return decimal.Zero, apperr.Internal("failed to lock account row", err)
	}
	return balance, nil
}

// DebitAndLock acquires the payer's row lock, debits amount guarded by a
// sufficient-balance check, and writes one ESCROW_LOCK ledger entry. Returns
// InsufficientFunds if the guarded UPDATE affects zero rows.
func DebitAndLock(ctx context.Context, tx *sql.Tx, accountType orderstate.PartyType, accountID, orderID string, amount decimal.Decimal, txHash string) (*Receipt, error) {
	table, err := tableFor(accountType)
	if err != nil {
		return nil, apperr.Internal("invalid account type", err)
	}
	if _, err := lockBalance(ctx, tx, accountType, accountID); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`UPDATE %s SET balance = balance - $1 WHERE id = $2 AND balance >= $1`, table)
	res, err := tx.ExecContext(ctx, q, amount, accountID)
	if err != nil {
		return nil, apperr.Internal("failed to debit account", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Internal("failed to read rows affected", err)
	}
	if rows == 0 {
		return nil, apperr.InsufficientFunds("payer balance is insufficient to lock escrow")
	}

	entryID, err := insertEntry(ctx, tx, accountType, accountID, orderID, EntryEscrowLock, amount.Neg(), txHash, "escrow lock")
	if err != nil {
		return nil, err
	}
	return &Receipt{LedgerEntryID: entryID, AccountType: accountType, AccountID: accountID, Amount: amount}, nil
}

// Credit acquires the recipient's row lock and adds amount, writing one
// ledger entry of the given kind (ESCROW_RELEASE or REFUND).
func Credit(ctx context.Context, tx *sql.Tx, accountType orderstate.PartyType, accountID, orderID string, amount decimal.Decimal, kind EntryKind, txHash string) (*Receipt, error) {
	table, err := tableFor(accountType)
	if err != nil {
		return nil, apperr.Internal("invalid account type", err)
	}
	if _, err := lockBalance(ctx, tx, accountType, accountID); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`UPDATE %s SET balance = balance + $1 WHERE id = $2`, table)
	if _, err := tx.ExecContext(ctx, q, amount, accountID); err != nil {
		return nil, apperr.Internal("failed to credit account", err)
	}

	description := "escrow release"
	if kind == EntryRefund {
		description = "refund"
	}
	entryID, err := insertEntry(ctx, tx, accountType, accountID, orderID, kind, amount, txHash, description)
	if err != nil {
		return nil, err
	}
	return &Receipt{LedgerEntryID: entryID, AccountType: accountType, AccountID: accountID, Amount: amount}, nil
}

// RecordFee debits the protocol's cut of an escrow release from the payer's
// account, on top of the crypto_amount DebitAndLock already debited at lock
// time, and writes an audit-only FEE ledger entry. The recipient is credited
// the full crypto_amount in Credit, so the payer alone bears the fee: their
// escrowed balance ends up short by crypto_amount+fee, exactly the amount a
// release would otherwise retain on the platform's behalf.
func RecordFee(ctx context.Context, tx *sql.Tx, accountType orderstate.PartyType, accountID, orderID string, amount decimal.Decimal) (*Receipt, error) {
	table, err := tableFor(accountType)
	if err != nil {
		return nil, apperr.Internal("invalid account type", err)
	}
	if _, err := lockBalance(ctx, tx, accountType, accountID); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`UPDATE %s SET balance = balance - $1 WHERE id = $2 AND balance >= $1`, table)
	res, err := tx.ExecContext(ctx, q, amount, accountID)
	if err != nil {
		return nil, apperr.Internal("failed to debit protocol fee", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Internal("failed to read rows affected", err)
	}
	if rows == 0 {
		return nil, apperr.InsufficientFunds("payer balance is insufficient to cover the protocol fee")
	}

	entryID, err := insertEntry(ctx, tx, accountType, accountID, orderID, EntryFee, amount.Neg(), "", "platform fee")
	if err != nil {
		return nil, err
	}
	return &Receipt{LedgerEntryID: entryID, AccountType: accountType, AccountID: accountID, Amount: amount}, nil
}

// Balance returns the current balance for an account, without locking — for
// read paths (reconciliation, GET handlers) outside a mutating transaction.
func Balance(ctx context.Context, db *sql.DB, accountType orderstate.PartyType, accountID string) (decimal.Decimal, error) {
	table, err := tableFor(accountType)
	if err != nil {
		return decimal.Zero, apperr.Internal("invalid account type", err)
	}
	var balance decimal.Decimal
	q := fmt.Sprintf(`SELECT balance FROM %s WHERE id = $1`, table)
	if err := db.QueryRowContext(ctx, q, accountID).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apperr.NotFound("account not found")
		}
		return decimal.Zero, apperr.Internal("failed to read balance", err)
	}
	return balance, nil
}
