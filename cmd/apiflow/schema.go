package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or drop the flow tables",
	Long: `Manage the flow tables of the postgres and sqlite drivers.
The remote driver owns no schema.`,
}

func init() {
	schemaCmd.AddCommand(schemaCreateCmd, schemaDropCmd)
	rootCmd.AddCommand(schemaCmd)
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the flow tables if they don't exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd, "created", apiflow.Migrator.CreateSchema)
	},
}

var schemaDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the flow tables and everything in them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd, "dropped", apiflow.Migrator.DropSchema)
	},
}

func runSchema(cmd *cobra.Command, status string, op func(apiflow.Migrator, context.Context) error) error {
	ctx := cmd.Context()
	flows, closeStore := mustOpenStore(ctx, newClient())
	defer closeStore()

	m, ok := flows.(apiflow.Migrator)
	if !ok {
		exitWithError(ExitConfigError, "storage driver %q has no schema", cfg.Storage.Driver)
	}
	if err := op(m, ctx); err != nil {
		exitWithError(ExitError, "schema %s failed: %v", status, err)
	}
	if humanOutput {
		outputHuman("Schema %s (%s)\n", status, cfg.Storage.Driver)
		return nil
	}
	return outputJSON(StatusResponse{Status: "schema " + status})
}
