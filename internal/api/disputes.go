package api

import (
	"encoding/json"
	"net/http"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/dispute"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

type openDisputeReq struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req openDisputeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Reason == "" {
		writeError(w, apperr.Validation("reason is required"))
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.Dispute.Open(r.Context(), r.PathValue("id"), actor, version, req.Reason, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type proposeDisputeReq struct {
	Resolution       dispute.Resolution `json:"resolution"`
	SplitUserPct     string             `json:"split_user_pct,omitempty"`
	SplitMerchantPct string             `json:"split_merchant_pct,omitempty"`
}

func (s *Server) handleProposeDispute(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req proposeDisputeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	userPct, err := parseDecimal("split_user_pct", req.SplitUserPct)
	if err != nil {
		writeError(w, err)
		return
	}
	merchantPct, err := parseDecimal("split_merchant_pct", req.SplitMerchantPct)
	if err != nil {
		writeError(w, err)
		return
	}
	if userPct.IsZero() && merchantPct.IsZero() && req.Resolution == dispute.ResolutionSplit {
		writeError(w, apperr.Validation("split resolution requires split_user_pct and split_merchant_pct"))
		return
	}
	d, err := s.Dispute.Propose(r.Context(), r.PathValue("id"), req.Resolution, userPct, merchantPct)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleConfirmDispute(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	party := orderstate.PartyUser
	if actor.Role == orderstate.ActorMerchant {
		party = orderstate.PartyMerchant
	}
	d, err := s.Dispute.Confirm(r.Context(), r.PathValue("id"), party, version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRejectDispute(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	d, err := s.Dispute.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
