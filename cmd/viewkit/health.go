package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/viewkit/observability"
)

func healthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the configured collection store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			report := observability.NewHealthReport(e.cfg.Name, e.cfg.Version).Check(cmd.Context(), e.backend)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status == observability.HealthStatusDown {
				return fmt.Errorf("store is %s", report.Status)
			}
			return nil
		},
	}
}
