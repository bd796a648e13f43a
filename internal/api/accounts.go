package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// createMerchantReq/createUserReq supplement spec §6 with the account
// provisioning endpoints the lifecycle engine needs a counterparty for,
// grounded on the teacher's CreateMerchantHandler (pkg/api/merchants.go):
// one uuid ID, a generated secret, one INSERT, 201 response.
type createMerchantReq struct {
	Name                  string `json:"name"`
	MerchantWalletAddress string `json:"merchant_wallet_address"`
}

type createMerchantResp struct {
	ID                    string `json:"id"`
	APIKey                string `json:"api_key"`
	MerchantWalletAddress string `json:"merchant_wallet_address"`
}

func (s *Server) handleCreateMerchant(w http.ResponseWriter, r *http.Request) {
	var req createMerchantReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}
	id := uuid.New().String()
	apiKey := uuid.New().String()
	now := time.Now().UTC()
	const q = `INSERT INTO merchants (id, name, api_key, merchant_wallet_address, balance, created_at) VALUES ($1, $2, $3, $4, 0, $5)`
	if _, err := s.DB.ExecContext(r.Context(), q, id, req.Name, apiKey, req.MerchantWalletAddress, now); err != nil {
		writeError(w, apperr.Internal("failed to create merchant", err))
		return
	}
	writeJSON(w, http.StatusCreated, createMerchantResp{ID: id, APIKey: apiKey, MerchantWalletAddress: req.MerchantWalletAddress})
}

type createUserReq struct {
	Name string `json:"name"`
}

type createUserResp struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}
	id := uuid.New().String()
	now := time.Now().UTC()
	const q = `INSERT INTO users (id, name, balance, created_at) VALUES ($1, $2, 0, $3)`
	if _, err := s.DB.ExecContext(r.Context(), q, id, req.Name, now); err != nil {
		writeError(w, apperr.Internal("failed to create user", err))
		return
	}
	writeJSON(w, http.StatusCreated, createUserResp{ID: id})
}

// reconciliationRow is one account's ledger-derived balance vs its
// denormalised balance column, for the operational drift check spec §9
// calls for in place of trusting the denorm column blindly.
type reconciliationRow struct {
	AccountType    orderstate.PartyType `json:"account_type"`
	AccountID      string               `json:"account_id"`
	StoredBalance  string               `json:"stored_balance"`
	LedgerBalance  string               `json:"ledger_balance"`
	Drifted        bool                 `json:"drifted"`
}

const reconciliationQuery = `
	SELECT 'merchant', id, balance, COALESCE((
		SELECT SUM(amount_signed) FROM ledger_entries WHERE account_type = 'merchant' AND account_id = merchants.id
	), 0)
	FROM merchants
	UNION ALL
	SELECT 'user', id, balance, COALESCE((
		SELECT SUM(amount_signed) FROM ledger_entries WHERE account_type = 'user' AND account_id = users.id
	), 0)
	FROM users
`

func (s *Server) handleReconciliation(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	rows, err := s.DB.QueryContext(r.Context(), reconciliationQuery)
	if err != nil {
		writeError(w, apperr.Internal("failed to run reconciliation query", err))
		return
	}
	defer rows.Close()

	var out []reconciliationRow
	for rows.Next() {
		var row reconciliationRow
		var stored, ledger decimal.Decimal
		if err := rows.Scan(&row.AccountType, &row.AccountID, &stored, &ledger); err != nil {
			writeError(w, apperr.Internal("failed to scan reconciliation row", err))
			return
		}
		row.StoredBalance = stored.String()
		row.LedgerBalance = ledger.String()
		row.Drifted = !stored.Equal(ledger)
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDebugMetrics(w http.ResponseWriter, r *http.Request) {
	var orderCount, pendingOutbox int64
	_ = s.DB.QueryRowContext(r.Context(), `SELECT count(*) FROM orders`).Scan(&orderCount)
	_ = s.DB.QueryRowContext(r.Context(), `SELECT count(*) FROM notification_outbox WHERE status = 'pending'`).Scan(&pendingOutbox)
	writeJSON(w, http.StatusOK, map[string]int64{
		"orders_total":          orderCount,
		"outbox_pending_total":  pendingOutbox,
	})
}
