package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/lifecycle"
	"github.com/oxzoid/settlementcore/internal/orderstate"
)

// createOrderReq is the wire shape of POST /orders (spec §6); amounts are
// strings so large decimal literals survive JSON without float rounding,
// matching the teacher's AmountMinor-as-string convention.
type createOrderReq struct {
	SellerMerchantID string                     `json:"seller_merchant_id"`
	UserID           string                     `json:"user_id"`
	BuyerMerchantID  string                     `json:"buyer_merchant_id,omitempty"`
	OfferID          string                     `json:"offer_id,omitempty"`
	Type             orderstate.OrderType       `json:"type"`
	CryptoAmount     string                     `json:"crypto_amount"`
	FiatAmount       string                     `json:"fiat_amount,omitempty"`
	Rate             string                     `json:"rate"`
	CryptoCurrency   string                     `json:"crypto_currency"`
	FiatCurrency     string                     `json:"fiat_currency"`
	PaymentMethod    orderstate.PaymentMethod   `json:"payment_method"`
	PaymentDetails   orderstate.PaymentDetails  `json:"payment_details"`
	SpreadPreference orderstate.SpreadPreference `json:"spread_preference"`
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validation(field + " is not a valid decimal")
	}
	return d, nil
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}

	cryptoAmount, err := parseDecimal("crypto_amount", req.CryptoAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	fiatAmount, err := parseDecimal("fiat_amount", req.FiatAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	rate, err := parseDecimal("rate", req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := s.Lifecycle.CreateOrder(r.Context(), lifecycle.CreateOrderRequest{
		SellerMerchantID: req.SellerMerchantID,
		UserID:           req.UserID,
		BuyerMerchantID:  req.BuyerMerchantID,
		OfferID:          req.OfferID,
		Type:             req.Type,
		CryptoAmount:     cryptoAmount,
		FiatAmount:       fiatAmount,
		Rate:             rate,
		CryptoCurrency:   req.CryptoCurrency,
		FiatCurrency:     req.FiatCurrency,
		PaymentMethod:    req.PaymentMethod,
		PaymentDetails:   req.PaymentDetails,
		SpreadPreference: req.SpreadPreference,
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
		Actor:            actor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	order, err := s.Store.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// expectedVersion extracts the required If-Match-style optimistic
// concurrency token spec §4.3 names as order_version.
func expectedVersion(r *http.Request) (int64, error) {
	raw := r.Header.Get("x-order-version")
	if raw == "" {
		raw = r.URL.Query().Get("order_version")
	}
	if raw == "" {
		return 0, apperr.Validation("x-order-version header or order_version query param is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("order_version must be an integer")
	}
	return v, nil
}

// patchOrderReq models PATCH /orders/{id}: a single-field action request,
// mirroring the teacher's events.go PATCH status handler which takes one
// target state per call.
type patchOrderReq struct {
	Action string `json:"action"` // accept | payment_sent | confirm_payment | confirm_and_release
}

func (s *Server) handlePatchOrder(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req patchOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	idemKey := r.Header.Get("Idempotency-Key")

	var order any
	switch req.Action {
	case "accept":
		order, err = s.Lifecycle.AcceptOrder(r.Context(), id, actor, version, idemKey)
	case "payment_sent":
		order, err = s.Lifecycle.MarkPaymentSent(r.Context(), id, actor, version, idemKey)
	case "confirm_payment":
		order, err = s.Lifecycle.ConfirmPayment(r.Context(), id, actor, version, idemKey)
	case "confirm_and_release":
		order, err = s.Lifecycle.ConfirmAndRelease(r.Context(), id, actor, version, idemKey)
	default:
		err = apperr.Validation("unrecognised action: " + req.Action)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type lockEscrowReq struct {
	ExternalTxHash string `json:"external_tx_hash,omitempty"`
}

func (s *Server) handleLockEscrow(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req lockEscrowReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.Lifecycle.LockEscrow(r.Context(), r.PathValue("id"), actor, version, req.ExternalTxHash, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleReleaseEscrow(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.Lifecycle.ReleaseEscrow(r.Context(), r.PathValue("id"), actor, version, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type cancelOrderReq struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request, actor orderstate.Actor) {
	var req cancelOrderReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.Lifecycle.CancelOrder(r.Context(), r.PathValue("id"), actor, version, req.Reason, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type expireOrderReq struct {
	OrderID         string `json:"order_id"`
	ExpectedVersion int64  `json:"expected_version"`
}

// handleExpireOrder is the manual trigger spec §4.7 allows alongside the
// background sweeper, gated on the system actor secret rather than a user/
// merchant identity. It expires the one order named in the body; it does
// not run a sweep over other due orders.
func (s *Server) handleExpireOrder(w http.ResponseWriter, r *http.Request) {
	var req expireOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}
	order, err := s.Lifecycle.ExpireOrder(r.Context(), req.OrderID, req.ExpectedVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
