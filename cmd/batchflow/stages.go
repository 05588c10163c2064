package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aescanero/batchflow/internal/stages"
)

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the built-in stages and their default parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDESCRIPTION\tDEFAULTS")
			for _, info := range stages.NewRegistry().List() {
				keys := make([]string, 0, len(info.Defaults))
				for k := range info.Defaults {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				defaults := make([]string, 0, len(keys))
				for _, k := range keys {
					defaults = append(defaults, fmt.Sprintf("%s=%v", k, info.Defaults[k]))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Description, strings.Join(defaults, " "))
			}
			return w.Flush()
		},
	}
}
