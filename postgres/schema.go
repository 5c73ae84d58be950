package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_flows (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'Pending',
    version    INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS api_flow_nodes (
    flow_id    TEXT NOT NULL REFERENCES api_flows(id) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    ord        INTEGER NOT NULL,
    type       TEXT NOT NULL,
    position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
    position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
    data       JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (flow_id, id)
);

CREATE TABLE IF NOT EXISTS api_flow_edges (
    flow_id       TEXT NOT NULL REFERENCES api_flows(id) ON DELETE CASCADE,
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

// CreateSchema creates the flow tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the flow tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS api_flow_edges, api_flow_nodes, api_flows CASCADE;`)
	return err
}
