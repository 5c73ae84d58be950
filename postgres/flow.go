package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/apiflow"
)

// SaveFlow saves a full flow (nodes + edges) in one transaction.
// A new flow gets a generated id and status Pending; an existing id is
// upserted and its version bumped. Nodes and edges are replaced wholesale.
func (s *PGStore) SaveFlow(ctx context.Context, f *apiflow.Flow) (string, error) {
	if f.Name == "" {
		return "", apiflow.ErrNameRequired
	}
	id := f.ID
	if f.IsNew() {
		id = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("apiflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO api_flows (id, name, status, version) VALUES ($1, $2, $3, 1)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, version = api_flows.version + 1, updated_at = NOW()`,
		id, f.Name, apiflow.StatusPending,
	); err != nil {
		return "", fmt.Errorf("apiflow: upsert flow: %w", err)
	}

	// Replace semantics: drop the previous graph first.
	if _, err := tx.Exec(ctx, `DELETE FROM api_flow_edges WHERE flow_id = $1`, id); err != nil {
		return "", fmt.Errorf("apiflow: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM api_flow_nodes WHERE flow_id = $1`, id); err != nil {
		return "", fmt.Errorf("apiflow: delete nodes: %w", err)
	}

	if err := insertNodes(ctx, tx, id, f.Nodes); err != nil {
		return "", err
	}
	if err := insertEdges(ctx, tx, id, f.Edges); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("apiflow: commit: %w", err)
	}
	return id, nil
}

// GetFlow retrieves a full flow by its id.
// Returns nil, nil if the flow does not exist.
func (s *PGStore) GetFlow(ctx context.Context, id string) (*apiflow.Flow, error) {
	f := &apiflow.Flow{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT name, status, version FROM api_flows WHERE id = $1`, id,
	).Scan(&f.Name, &f.Status, &f.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apiflow: get flow: %w", err)
	}

	if f.Nodes, err = s.listNodes(ctx, id); err != nil {
		return nil, err
	}
	if f.Edges, err = s.listEdges(ctx, id); err != nil {
		return nil, err
	}
	return f, nil
}

// ListFlows returns every flow's summary, most recently updated first.
func (s *PGStore) ListFlows(ctx context.Context) ([]apiflow.Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, status, version FROM api_flows ORDER BY updated_at DESC, id`)
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
func (s *PGStore) DeleteFlow(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM api_flows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("apiflow: delete flow: %w", err)
	}
	return nil
}
