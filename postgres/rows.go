package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/apiflow"
)

func insertNodes(ctx context.Context, tx pgx.Tx, flowID string, nodes []apiflow.Node) error {
	for i, n := range nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("apiflow: encode node %s: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO api_flow_nodes (flow_id, id, ord, type, position_x, position_y, data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			flowID, n.ID, i, n.Type, n.Position.X, n.Position.Y, data,
		); err != nil {
			return fmt.Errorf("apiflow: insert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx pgx.Tx, flowID string, edges []apiflow.Edge) error {
	for i, e := range edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO api_flow_edges (flow_id, id, ord, source, target, source_handle, target_handle)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			flowID, e.ID, i, e.Source, e.Target, e.SourceHandle, e.TargetHandle,
		); err != nil {
			return fmt.Errorf("apiflow: insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *PGStore) listNodes(ctx context.Context, flowID string) ([]apiflow.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, position_x, position_y, data FROM api_flow_nodes WHERE flow_id = $1 ORDER BY ord`, flowID)
	if err != nil {
		return nil, fmt.Errorf("apiflow: query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []apiflow.Node{}
	for rows.Next() {
		var n apiflow.Node
		var data []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Position.X, &n.Position.Y, &data); err != nil {
			return nil, fmt.Errorf("apiflow: scan node: %w", err)
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("apiflow: decode node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiflow: rows nodes: %w", err)
	}
	return nodes, nil
}

func (s *PGStore) listEdges(ctx context.Context, flowID string) ([]apiflow.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source, target, source_handle, target_handle FROM api_flow_edges WHERE flow_id = $1 ORDER BY ord`, flowID)
	if err != nil {
		return nil, fmt.Errorf("apiflow: query edges: %w", err)
	}
	defer rows.Close()

	edges := []apiflow.Edge{}
	for rows.Next() {
		var e apiflow.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle); err != nil {
			return nil, fmt.Errorf("apiflow: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiflow: rows edges: %w", err)
	}
	return edges, nil
}
