package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func viewsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List defined views in definition order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VIEW\tSOURCE\tSTAGES")
			for _, name := range e.registry.Names() {
				v, ok := e.registry.View(name)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", v.Name(), v.Source(), v.Pipeline().Len())
			}
			return w.Flush()
		},
	}
}
