// Package ledger persists which payment receipts already authorised a job
// posting, so a receipt cannot be reused after a restart.
package ledger

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const schema = `
	CREATE TABLE IF NOT EXISTS consumed_receipts (
	  tx_hash     TEXT PRIMARY KEY,
	  job_id      TEXT NOT NULL,
	  consumed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a Postgres-backed receipt journal.
type Store struct {
	db DB
}

// NewStore returns a Store over db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "migrate consumed_receipts")
	}
	return nil
}

// Consumed reports whether txHash already authorised a posting.
func (s *Store) Consumed(ctx context.Context, txHash string) (bool, error) {
	var used bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM consumed_receipts WHERE tx_hash = $1)`,
		strings.ToLower(txHash),
	).Scan(&used)
	if err != nil {
		return false, errors.Wrap(err, "consumed query")
	}
	return used, nil
}

// MarkConsumed records txHash as used by jobID. Recording the same hash twice
// keeps the first job id.
func (s *Store) MarkConsumed(ctx context.Context, txHash, jobID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO consumed_receipts (tx_hash, job_id)
		 VALUES ($1, $2)
		 ON CONFLICT (tx_hash) DO NOTHING`,
		strings.ToLower(txHash), jobID,
	)
	if err != nil {
		return errors.Wrap(err, "markConsumed insert")
	}
	return nil
}
