package cli

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/oxzoid/settlementcore/internal/bridge"
	"github.com/oxzoid/settlementcore/internal/dispute"
	"github.com/oxzoid/settlementcore/internal/escrow"
	"github.com/oxzoid/settlementcore/internal/idempotency"
	"github.com/oxzoid/settlementcore/internal/lifecycle"
	"github.com/oxzoid/settlementcore/internal/money"
	"github.com/oxzoid/settlementcore/internal/pgdb"
	"github.com/oxzoid/settlementcore/internal/store"
)

// deps is the fully wired dependency graph every subcommand needs a subset
// of: serve needs all of it, worker needs only Store+Sink wiring (built in
// cmd), sweep needs only Lifecycle.
type deps struct {
	DB        *sql.DB
	Store     *store.Store
	Bridge    bridge.Bridge
	Escrow    *escrow.Escrow
	Idem      *idempotency.Store
	Lifecycle *lifecycle.Lifecycle
	Dispute   *dispute.Service
}

// buildDeps opens the database, ensures the schema, and wires every
// package from orderstate up through lifecycle/dispute — the same
// composition root shape the teacher's main.go uses (db.Open, EnsureSchema,
// api.Init) just spread across more layers.
func buildDeps() (*deps, error) {
	db, err := pgdb.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pgdb.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	st := store.New(db)

	var br bridge.Bridge
	if cfg.MockMode {
		br = bridge.NewMock()
	} else {
		br = bridge.NewEVM(cfg.EVMRPCURL, cfg.EVMTokenAddress, cfg.EVMTokenDecimals)
	}

	esc := escrow.New(st, br, cfg.PlatformWalletAddress)

	idem, err := idempotency.New(db, 4096)
	if err != nil {
		db.Close()
		return nil, err
	}

	fees := money.FeeSchedule{
		Cheap:   decimal.NewFromFloat(cfg.ProtocolFeeCheap),
		Best:    decimal.NewFromFloat(cfg.ProtocolFeeBest),
		Fastest: decimal.NewFromFloat(cfg.ProtocolFeeFastest),
	}

	lc := lifecycle.New(st, esc, idem, fees, cfg.OrderTTL())
	disp := dispute.New(st)

	return &deps{DB: db, Store: st, Bridge: br, Escrow: esc, Idem: idem, Lifecycle: lc, Dispute: disp}, nil
}
