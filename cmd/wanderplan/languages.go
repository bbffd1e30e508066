package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/models"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported output languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tDEFAULT")
			for _, l := range models.Languages {
				def := ""
				if l.IsDefault() {
					def = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", l, l.Name(), def)
			}
			return w.Flush()
		},
	}
}
