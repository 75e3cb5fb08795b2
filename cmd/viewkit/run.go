package main

import (
	"bufio"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/viewkit/logger"
)

func runCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "run <view>",
		Short: "Run a view or read a collection, printing one JSON document per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())
			return e.run(cmd, args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after n documents (0 prints all)")
	return cmd
}

func (e *env) run(cmd *cobra.Command, name string, limit int) error {
	ctx := cmd.Context()
	start := time.Now()
	it, err := e.registry.Read(ctx, name)
	if err != nil {
		return err
	}
	defer it.Close()

	out := bufio.NewWriter(cmd.OutOrStdout())
	enc := json.NewEncoder(out)
	var n int
	for limit <= 0 || n < limit {
		d, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := enc.Encode(d); err != nil {
			return err
		}
		n++
	}
	if err := out.Flush(); err != nil {
		return err
	}
	e.log.Info("view run complete", logger.MergeWithDuration(logger.Fields(
		logger.FieldView, name,
		logger.FieldDocuments, n,
	), time.Since(start)))
	return nil
}
