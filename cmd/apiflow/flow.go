package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/client"
	"github.com/meikuraledutech/apiflow/flowjson"
	"github.com/meikuraledutech/apiflow/registry"
)

var (
	flowExportOut string
	flowImportNew bool
	flowValidMode string
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "List, fetch, store and validate flows",
	Long: `Commands for flows in the configured store.

Flow files use the same JSON document the editor downloads and uploads:
{"id", "name", "flow": {"nodes", "edges"}} with node configs as strings.`,
}

func init() {
	flowExportCmd.Flags().StringVarP(&flowExportOut, "out", "o", "", "Output path (default: <flow name>.json)")
	flowImportCmd.Flags().BoolVar(&flowImportNew, "new", false, "Save as a new flow even if the file carries an id")
	flowValidateCmd.Flags().StringVar(&flowValidMode, "mode", "flat", "Validator to use: flat or nested")

	flowCmd.AddCommand(flowListCmd, flowGetCmd, flowExportCmd, flowImportCmd, flowDeleteCmd, flowValidateCmd)
	rootCmd.AddCommand(flowCmd)
}

var flowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flows, closeStore := mustOpenStore(ctx, newClient())
		defer closeStore()

		list, err := flows.ListFlows(ctx)
		if err != nil {
			exitWithError(exitCodeFor(err), "listing flows: %v", err)
		}
		if humanOutput {
			if len(list) == 0 {
				outputHuman("No flows\n")
				return nil
			}
			for _, f := range list {
				outputHuman("%-38s %-10s v%-3d %s\n", f.ID, f.Status, f.Version, f.Name)
			}
			return nil
		}
		return outputJSON(list)
	},
}

var flowGetCmd = &cobra.Command{
	Use:   "get <flow-id>",
	Short: "Print a flow document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := mustGetFlow(cmd.Context(), args[0])
		if humanOutput {
			outputHuman("%s (%s)\n", f.Name, f.ID)
			for _, n := range f.Nodes {
				outputHuman("  node %-16s %-24s %s\n", n.ID, n.Data.NodeType, n.Data.Label)
			}
			for _, e := range f.Edges {
				outputHuman("  edge %s -> %s\n", e.Source, e.Target)
			}
			return nil
		}
		return outputJSON(flowjson.Serialize(f, registry.Default()))
	},
}

var flowExportCmd = &cobra.Command{
	Use:   "export <flow-id>",
	Short: "Write a flow document to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := mustGetFlow(cmd.Context(), args[0])
		path := flowExportOut
		if path == "" {
			path = flowjson.FileName(f)
		}
		if err := flowjson.WriteFile(path, f, registry.Default()); err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if humanOutput {
			outputHuman("Exported %s to %s\n", f.ID, path)
			return nil
		}
		return outputJSON(StatusResponse{Status: "exported", ID: f.ID, Path: path})
	},
}

var flowImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save a flow document from a file",
	Long: `Save a flow document into the configured store. A document with an id
replaces that flow; one without (or with --new) creates a flow.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := flowjson.ReadFile(args[0], registry.Default())
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		if flowImportNew {
			f.ID = apiflow.NewFlowID
		}

		flows, closeStore := mustOpenStore(ctx, newClient())
		defer closeStore()

		id, err := flows.SaveFlow(ctx, f)
		if err != nil {
			exitWithError(exitCodeFor(err), "saving flow: %v", err)
		}
		if humanOutput {
			outputHuman("Saved %q as %s\n", f.Name, id)
			return nil
		}
		return outputJSON(StatusResponse{Status: "saved", ID: id, Path: args[0]})
	},
}

var flowDeleteCmd = &cobra.Command{
	Use:   "delete <flow-id>",
	Short: "Delete a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flows, closeStore := mustOpenStore(ctx, newClient())
		defer closeStore()

		if err := flows.DeleteFlow(ctx, args[0]); err != nil {
			exitWithError(exitCodeFor(err), "deleting flow: %v", err)
		}
		if humanOutput {
			outputHuman("Deleted %s\n", args[0])
			return nil
		}
		return outputJSON(StatusResponse{Status: "deleted", ID: args[0]})
	},
}

var flowValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Send a flow document to the remote validator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := client.ParseMode(flowValidMode)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			exitWithError(ExitError, "reading %s: %v", args[0], err)
		}
		var doc flowjson.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			exitWithError(ExitDataError, "parsing %s: %v", args[0], err)
		}

		body, err := newClient().Validate(cmd.Context(), mode, doc)
		if err != nil {
			exitWithError(exitCodeFor(err), "Error validating flow: %v", err)
		}
		if humanOutput {
			outputHuman("%s\n", body)
			return nil
		}
		return outputJSON(body)
	},
}

// mustGetFlow fetches a flow from the configured store, exits when it is
// missing or the store fails.
func mustGetFlow(ctx context.Context, id string) *apiflow.Flow {
	flows, closeStore := mustOpenStore(ctx, newClient())
	defer closeStore()

	f, err := flows.GetFlow(ctx, id)
	if err != nil {
		exitWithError(exitCodeFor(err), "loading flow %s: %v", id, err)
	}
	if f == nil {
		exitWithError(ExitNotFound, "flow %s: not found", id)
	}
	return f
}

// exitCodeFor maps store and backend errors to exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, apiflow.ErrNameRequired):
		return ExitDataError
	case client.IsNotFound(err):
		return ExitNotFound
	case client.IsTransport(err):
		return ExitBackend
	default:
		return ExitError
	}
}

