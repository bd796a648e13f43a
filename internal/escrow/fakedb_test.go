package escrow

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// No sqlmock-equivalent exists anywhere in the corpus (go.mod across the
// retrieved repos), so this is a hand-rolled database/sql/driver fake,
// scoped to exactly the queries internal/ledger issues: a balance column
// per account table, guarded by "balance >= $1" the way the Postgres UPDATE
// is, and a ledger_entries sink. It lets ReleaseEffects/LockEffects run
// against a real *sql.Tx instead of only the nil-guard paths.

type fakeBalances struct {
	mu        sync.Mutex
	users     map[string]decimal.Decimal
	merchants map[string]decimal.Decimal
	entries   []fakeLedgerEntry
}

type fakeLedgerEntry struct {
	accountType, accountID, orderID, kind string
	amount                                decimal.Decimal
}

func (b *fakeBalances) table(query string) map[string]decimal.Decimal {
	if strings.Contains(query, "merchants") {
		return b.merchants
	}
	return b.users
}

type fakeDriver struct{ b *fakeBalances }

func (d fakeDriver) Open(name string) (driver.Conn, error) { return fakeConn{b: d.b}, nil }

type fakeConn struct{ b *fakeBalances }

func (c fakeConn) Prepare(query string) (driver.Stmt, error) { return fakeStmt{b: c.b, query: query}, nil }
func (c fakeConn) Close() error                              { return nil }
func (c fakeConn) Begin() (driver.Tx, error)                 { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	b     *fakeBalances
	query string
}

func (s fakeStmt) Close() error  { return nil }
func (s fakeStmt) NumInput() int { return -1 }

func decimalArg(v driver.Value) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func stringArg(v driver.Value) string {
	s, _ := v.(string)
	return s
}

func (s fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	switch {
	case strings.Contains(s.query, "INSERT INTO ledger_entries"):
		s.b.entries = append(s.b.entries, fakeLedgerEntry{
			accountType: stringArg(args[1]),
			accountID:   stringArg(args[2]),
			orderID:     stringArg(args[3]),
			kind:        stringArg(args[4]),
			amount:      decimalArg(args[5]),
		})
		return driver.RowsAffected(1), nil

	case strings.Contains(s.query, "balance = balance -"):
		table := s.b.table(s.query)
		amount, id := decimalArg(args[0]), stringArg(args[1])
		if table[id].LessThan(amount) {
			return driver.RowsAffected(0), nil
		}
		table[id] = table[id].Sub(amount)
		return driver.RowsAffected(1), nil

	case strings.Contains(s.query, "balance = balance +"):
		table := s.b.table(s.query)
		amount, id := decimalArg(args[0]), stringArg(args[1])
		table[id] = table[id].Add(amount)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("escrow fake driver: unsupported exec query %q", s.query)
}

func (s fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if strings.Contains(s.query, "SELECT balance FROM") {
		table := s.b.table(s.query)
		id := stringArg(args[0])
		balance, ok := table[id]
		if !ok {
			return &fakeRows{cols: []string{"balance"}}, nil
		}
		return &fakeRows{cols: []string{"balance"}, rows: [][]driver.Value{{balance.String()}}}, nil
	}
	return nil, fmt.Errorf("escrow fake driver: unsupported query %q", s.query)
}

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

var fakeDriverSeq int64

// newFakeDB registers a fresh, isolated fake driver instance and opens a
// *sql.DB against it, seeded with the given starting balances.
func newFakeDB(t *testing.T, users, merchants map[string]decimal.Decimal) (*sql.DB, *fakeBalances) {
	t.Helper()
	b := &fakeBalances{users: users, merchants: merchants}
	name := fmt.Sprintf("escrowfake%d", atomic.AddInt64(&fakeDriverSeq, 1))
	sql.Register(name, fakeDriver{b: b})

	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, b
}
