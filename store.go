package apiflow

import (
	"context"
	"errors"
)

var (
	ErrFlowNotFound = errors.New("apiflow: flow not found")
	ErrNodeNotFound = errors.New("apiflow: node not found")
	ErrEdgeNotFound = errors.New("apiflow: edge not found")
	ErrNameRequired = errors.New("apiflow: flow name is required")
)

// StatusPending is stamped on flows created by a local store.
const StatusPending = "Pending"

// Store defines the contract for persisting and retrieving flows.
// A flow is always saved as a single unit.
type Store interface {
	// ListFlows returns the summary projection of every stored flow.
	ListFlows(ctx context.Context) ([]Summary, error)

	// GetFlow returns the flow with the given id, or nil, nil when it does not exist.
	GetFlow(ctx context.Context, id string) (*Flow, error)

	// SaveFlow creates the flow when it is new and replaces it otherwise.
	// Returns the flow id (generated or provided).
	SaveFlow(ctx context.Context, f *Flow) (string, error)

	// DeleteFlow removes a flow. No error if it doesn't exist.
	DeleteFlow(ctx context.Context, id string) error
}

// Migrator is implemented by stores that own their schema.
type Migrator interface {
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error
}
