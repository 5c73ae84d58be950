package main

import (
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow/registry"
)

func init() {
	rootCmd.AddCommand(registryCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "List the node types of the palette, by group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		groups := registry.Default().Groups()
		if !humanOutput {
			return outputJSON(groups)
		}
		for _, g := range groups {
			outputHuman("%s\n", g.Label)
			for _, e := range g.Entries {
				outputHuman("  %s %-28s %-28s %s\n", e.Icon, e.Key, e.Label, e.Variant)
			}
		}
		return nil
	},
}
