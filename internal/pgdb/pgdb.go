// Package pgdb opens and migrates the settlement core's Postgres database.
// Adapted from the teacher's pkg/db/db.go (connection pool tuning, ping on
// open, single EnsureSchema entry point) but targeting lib/pq instead of
// modernc.org/sqlite: the concurrency model in spec §5 is specified in terms
// of SELECT ... FOR UPDATE and SKIP LOCKED, which need a real multi-writer
// row lock manager, not SQLite's single-writer database-level lock.
package pgdb

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Open dials Postgres at dsn and verifies connectivity with a bounded ping.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
