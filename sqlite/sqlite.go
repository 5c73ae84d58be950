// Package sqlite implements apiflow.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/meikuraledutech/apiflow"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_flows (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  status     TEXT NOT NULL DEFAULT 'Pending',
  version    INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS api_flow_nodes (
  flow_id    TEXT NOT NULL,
  id         TEXT NOT NULL,
  ord        INTEGER NOT NULL,
  type       TEXT NOT NULL,
  position_x REAL NOT NULL DEFAULT 0,
  position_y REAL NOT NULL DEFAULT 0,
  data       TEXT NOT NULL DEFAULT '{}',
  PRIMARY KEY (flow_id, id)
);

CREATE TABLE IF NOT EXISTS api_flow_edges (
  flow_id       TEXT NOT NULL,
  id            TEXT NOT NULL,
  ord           INTEGER NOT NULL,
  source        TEXT NOT NULL,
  target        TEXT NOT NULL,
  source_handle TEXT NOT NULL DEFAULT '',
  target_handle TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (flow_id, id)
);

CREATE INDEX IF NOT EXISTS idx_api_flow_nodes_flow ON api_flow_nodes(flow_id, ord);
CREATE INDEX IF NOT EXISTS idx_api_flow_edges_flow ON api_flow_edges(flow_id, ord);
`

// Store implements apiflow.Store on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ apiflow.Store    = (*Store)(nil)
	_ apiflow.Migrator = (*Store)(nil)
)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the flow tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops the flow tables.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DROP TABLE IF EXISTS api_flow_edges;
DROP TABLE IF EXISTS api_flow_nodes;
DROP TABLE IF EXISTS api_flows;`)
	return err
}

// SaveFlow saves a full flow in one transaction with replace semantics for
// its nodes and edges.
func (s *Store) SaveFlow(ctx context.Context, f *apiflow.Flow) (string, error) {
	if f.Name == "" {
		return "", apiflow.ErrNameRequired
	}
	id := f.ID
	if f.IsNew() {
		id = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("apiflow: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO api_flows (id, name, status, version) VALUES (?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE
		SET name = excluded.name, version = api_flows.version + 1, updated_at = CURRENT_TIMESTAMP`,
		id, f.Name, apiflow.StatusPending,
	); err != nil {
		return "", fmt.Errorf("apiflow: upsert flow: %w", err)
	}

	if err := deleteGraph(ctx, tx, id); err != nil {
		return "", err
	}

	for i, n := range f.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return "", fmt.Errorf("apiflow: encode node %s: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO api_flow_nodes (flow_id, id, ord, type, position_x, position_y, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, n.ID, i, n.Type, n.Position.X, n.Position.Y, string(data),
		); err != nil {
			return "", fmt.Errorf("apiflow: insert node %s: %w", n.ID, err)
		}
	}
	for i, e := range f.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO api_flow_edges (flow_id, id, ord, source, target, source_handle, target_handle) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, e.ID, i, e.Source, e.Target, e.SourceHandle, e.TargetHandle,
		); err != nil {
			return "", fmt.Errorf("apiflow: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("apiflow: commit: %w", err)
	}
	return id, nil
}

func deleteGraph(ctx context.Context, tx *sql.Tx, flowID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_flow_edges WHERE flow_id = ?`, flowID); err != nil {
		return fmt.Errorf("apiflow: delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_flow_nodes WHERE flow_id = ?`, flowID); err != nil {
		return fmt.Errorf("apiflow: delete nodes: %w", err)
	}
	return nil
}

// GetFlow retrieves a flow by id. Returns nil, nil if it does not exist.
func (s *Store) GetFlow(ctx context.Context, id string) (*apiflow.Flow, error) {
	f := &apiflow.Flow{ID: id, Nodes: []apiflow.Node{}, Edges: []apiflow.Edge{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, status, version FROM api_flows WHERE id = ?`, id,
	).Scan(&f.Name, &f.Status, &f.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apiflow: get flow: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, position_x, position_y, data FROM api_flow_nodes WHERE flow_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, fmt.Errorf("apiflow: query nodes: %w", err)
	}
	for rows.Next() {
		var n apiflow.Node
		var data string
		if err := rows.Scan(&n.ID, &n.Type, &n.Position.X, &n.Position.Y, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("apiflow: scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("apiflow: decode node %s: %w", n.ID, err)
		}
		f.Nodes = append(f.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiflow: rows nodes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, source, target, source_handle, target_handle FROM api_flow_edges WHERE flow_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, fmt.Errorf("apiflow: query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e apiflow.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle); err != nil {
			return nil, fmt.Errorf("apiflow: scan edge: %w", err)
		}
		f.Edges = append(f.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiflow: rows edges: %w", err)
	}
	return f, nil
}

// ListFlows returns every flow's summary, most recently updated first.
func (s *Store) ListFlows(ctx context.Context) ([]apiflow.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, version FROM api_flows ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("apiflow: list flows: %w", err)
	}
	defer rows.Close()

	out := []apiflow.Summary{}
	for rows.Next() {
		var sum apiflow.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Status, &sum.Version); err != nil {
			return nil, fmt.Errorf("apiflow: scan flow: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiflow: rows flows: %w", err)
	}
	return out, nil
}

// DeleteFlow removes a flow with its nodes and edges.
// No error if the flow doesn't exist.
func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apiflow: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteGraph(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_flows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("apiflow: delete flow: %w", err)
	}
	return tx.Commit()
}
