package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/client"
	"github.com/meikuraledutech/apiflow/config"
	"github.com/meikuraledutech/apiflow/postgres"
	"github.com/meikuraledutech/apiflow/sqlite"
)

// newClient builds the backend client from the loaded config. It serves
// validation for every driver and persistence for the remote one.
func newClient() *client.Client {
	return client.NewClient(
		client.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		client.WithFlowServer(cfg.Backend.FlowServer),
		client.WithValidationURLs(cfg.Backend.ValidateFlat, cfg.Backend.ValidateNested),
		client.WithRateLimit(cfg.Backend.RateLimit),
		client.WithLogger(logger),
	)
}

// openStore opens the configured flow store. The returned func releases it.
func openStore(ctx context.Context, c *client.Client) (apiflow.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		// The local file is created on first use.
		if err := st.CreateSchema(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("creating sqlite schema: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		return c, func() {}, nil
	}
}

// mustOpenStore opens the configured flow store, exits on error.
func mustOpenStore(ctx context.Context, c *client.Client) (apiflow.Store, func()) {
	st, closeFn, err := openStore(ctx, c)
	if err != nil {
		exitWithError(ExitConfigError, "opening %s store: %v", cfg.Storage.Driver, err)
	}
	return st, closeFn
}
