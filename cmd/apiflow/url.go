package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow/querybuilder"
)

// URL build flags
var (
	urlServer      string
	urlTable       string
	urlColumns     []string
	urlFilters     []string
	urlDeletedFlag bool
	urlBase        string
)

// URLResult is the JSON output for apiflow url build.
type URLResult struct {
	URL string `json:"url"`
}

func init() {
	urlBuildCmd.Flags().StringVar(&urlServer, "server", "", "Database server name (required)")
	urlBuildCmd.Flags().StringVar(&urlTable, "table", "", "Table name (required)")
	urlBuildCmd.Flags().StringSliceVar(&urlColumns, "columns", nil, "Columns to select, comma separated (required)")
	urlBuildCmd.Flags().StringArrayVar(&urlFilters, "filter", nil, "Condition as type=value; repeatable")
	urlBuildCmd.Flags().BoolVar(&urlDeletedFlag, "deleted-flag", false, "Include deleted_flag=1")
	urlBuildCmd.Flags().StringVar(&urlBase, "base-url", "", "Endpoint (overrides query.base_url)")

	urlCmd.AddCommand(urlBuildCmd)
	rootCmd.AddCommand(urlCmd)
}

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Data access-point URL tools",
}

var urlBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble a dynamic query URL",
	Long: `Assemble a query URL for the dynamic data endpoint.

Filter values are written verbatim; quote strings yourself.

Examples:
  apiflow url build --server s1 --table orders --columns id,total
  apiflow url build --server s1 --table orders --columns id --filter 'status="open"' --filter qty=3`,
	Args: cobra.NoArgs,
	RunE: runURLBuild,
}

// parseFilters turns type=value flags into filters.
func parseFilters(raw []string) ([]querybuilder.Filter, error) {
	out := make([]querybuilder.Filter, 0, len(raw))
	for _, r := range raw {
		typ, val, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected type=value", r)
		}
		out = append(out, querybuilder.Filter{Type: strings.TrimSpace(typ), Value: val})
	}
	return out, nil
}

func runURLBuild(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(urlFilters)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	base := cfg.Query.BaseURL
	if urlBase != "" {
		base = urlBase
	}

	u, err := querybuilder.Builder{BaseURL: base}.Build(querybuilder.Submission{
		Server:      urlServer,
		Table:       urlTable,
		Columns:     urlColumns,
		Filters:     filters,
		DeletedFlag: urlDeletedFlag,
	})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Println(u)
		return nil
	}
	return outputJSON(URLResult{URL: u})
}
