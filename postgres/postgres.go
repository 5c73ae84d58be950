// Package postgres implements apiflow.Store on PostgreSQL using pgx.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/apiflow"
)

// PGStore implements apiflow.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

var (
	_ apiflow.Store    = (*PGStore)(nil)
	_ apiflow.Migrator = (*PGStore)(nil)
)

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}
