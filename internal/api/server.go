// Package api exposes the external HTTP surface of spec §6: order
// lifecycle endpoints, dispute endpoints, merchant/user provisioning, and
// operational endpoints (reconciliation, debug metrics, Prometheus
// /metrics).
//
// Grounded on the teacher's pkg/api/*.go handler shape (decode body,
// validate required fields, one query/exec, one JSON response) and its
// APIKeyAuthMiddleware (pkg/api/orders.go) generalized from a single
// merchant API key into the three-actor-type header scheme spec §6
// describes, plus CreateMerchantHandler's provisioning pattern (uuid ID +
// generated secret, one INSERT, 201 response).
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/oxzoid/settlementcore/docs"
	"github.com/oxzoid/settlementcore/internal/apperr"
	"github.com/oxzoid/settlementcore/internal/dispute"
	"github.com/oxzoid/settlementcore/internal/lifecycle"
	"github.com/oxzoid/settlementcore/internal/logging"
	"github.com/oxzoid/settlementcore/internal/notify"
	"github.com/oxzoid/settlementcore/internal/orderstate"
	"github.com/oxzoid/settlementcore/internal/store"
)

// Server wires every dependency a handler needs.
type Server struct {
	DB                *sql.DB
	Store             *store.Store
	Lifecycle         *lifecycle.Lifecycle
	Dispute           *dispute.Service
	Hub               *notify.Hub
	SystemActorSecret string
	RequestTimeout    time.Duration

	log *logging.Logger
}

func New(db *sql.DB, st *store.Store, lc *lifecycle.Lifecycle, disp *dispute.Service, hub *notify.Hub, systemSecret string, requestTimeout time.Duration) *Server {
	return &Server{
		DB:                db,
		Store:             st,
		Lifecycle:         lc,
		Dispute:           disp,
		Hub:               hub,
		SystemActorSecret: systemSecret,
		RequestTimeout:    requestTimeout,
		log:               logging.Default().Component("api"),
	}
}

// Router builds the stdlib ServeMux route table. Every pattern carries its
// own method per Go 1.22's enhanced ServeMux, the same "one handler per
// verb+path" shape the teacher's flat mux.HandleFunc table uses, just with
// path parameters instead of query-string IDs.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /dbhealth", s.handleDBHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)
	mux.HandleFunc("GET /debug/metrics", s.handleDebugMetrics)
	mux.HandleFunc("GET /reconciliation", s.requireActor(s.handleReconciliation))

	mux.HandleFunc("POST /merchants", s.handleCreateMerchant)
	mux.HandleFunc("POST /users", s.handleCreateUser)

	mux.HandleFunc("POST /orders", s.requireActor(s.handleCreateOrder))
	mux.HandleFunc("GET /orders/{id}", s.requireActor(s.handleGetOrder))
	mux.HandleFunc("PATCH /orders/{id}", s.requireActor(s.handlePatchOrder))
	mux.HandleFunc("POST /orders/{id}/escrow", s.requireActor(s.handleLockEscrow))
	mux.HandleFunc("PATCH /orders/{id}/escrow", s.requireActor(s.handleReleaseEscrow))
	mux.HandleFunc("DELETE /orders/{id}", s.requireActor(s.handleCancelOrder))
	mux.HandleFunc("POST /orders/expire", s.requireSystemActor(s.handleExpireOrder))

	mux.HandleFunc("POST /orders/{id}/dispute", s.requireActor(s.handleOpenDispute))
	mux.HandleFunc("POST /orders/{id}/dispute/propose", s.requireActor(s.handleProposeDispute))
	mux.HandleFunc("POST /orders/{id}/dispute/confirm", s.requireActor(s.handleConfirmDispute))
	mux.HandleFunc("POST /orders/{id}/dispute/reject", s.requireActor(s.handleRejectDispute))

	if s.Hub != nil {
		mux.Handle("GET /ws", s.Hub)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-actor-type, x-actor-id, x-system-secret, Idempotency-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// envelope is the {success, data?, error?} response shape spec §6 requires
// of every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: code < 400, Data: data})
}

// writeError dispatches on apperr.Kind via HTTPStatus()/PublicMessage() so
// every handler reports a consistent status/body pair for the same failure
// category, instead of each handler picking its own status code.
func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: appErr.PublicMessage()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: "internal error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// actorFromRequest parses x-actor-type / x-actor-id per spec §6's actor
// header scheme.
func actorFromRequest(r *http.Request) (orderstate.Actor, error) {
	roleHeader := r.Header.Get("x-actor-type")
	id := r.Header.Get("x-actor-id")
	var role orderstate.ActorRole
	switch roleHeader {
	case "user":
		role = orderstate.ActorUser
	case "merchant":
		role = orderstate.ActorMerchant
	default:
		return orderstate.Actor{}, apperr.Validation("x-actor-type header must be user or merchant")
	}
	if id == "" {
		return orderstate.Actor{}, apperr.Validation("x-actor-id header is required")
	}
	return orderstate.Actor{Role: role, ID: id}, nil
}

type actorCtxKey struct{}

// requireActor parses the actor headers and passes the actor to next as an
// argument; every order/dispute endpoint needs one.
func (s *Server) requireActor(next func(http.ResponseWriter, *http.Request, orderstate.Actor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, actor)
	}
}

// requireSystemActor checks the shared-secret header instead of a user/
// merchant identity, for the sweep-trigger endpoint system callers use.
func (s *Server) requireSystemActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.SystemActorSecret == "" || r.Header.Get("x-system-secret") != s.SystemActorSecret {
			writeError(w, apperr.Forbidden("invalid or missing system actor secret"))
			return
		}
		next(w, r)
	}
}
