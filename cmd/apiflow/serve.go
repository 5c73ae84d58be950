package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow/server"
	"github.com/meikuraledutech/apiflow/session"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flow API and editor sessions over HTTP",
	Long: `Serve the flow persistence protocol (/api/flows) and the editor session
API (/api/sessions) on the configured address.

Flows persist through storage.driver; validation always goes to the
configured remote validators.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient()
	flows, closeStore := mustOpenStore(ctx, c)
	defer closeStore()

	sessions := session.NewManager(flows, c, session.WithLogger(logger))
	srv := server.New(flows, sessions, server.WithLogger(logger))

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
