package main

import (
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

type explainedStage struct {
	Index      int            `json:"index"`
	Kind       string         `json:"kind"`
	Definition document.Value `json:"definition"`
}

type explanation struct {
	View   string           `json:"view"`
	Source string           `json:"source"`
	Stages []explainedStage `json:"stages"`
}

func explainCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <view>",
		Short: "Print the compiled stage list of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			v, ok := e.registry.View(args[0])
			if !ok {
				return errors.UnknownCollection(args[0])
			}
			ex := explanation{View: v.Name(), Source: v.Source()}
			for _, s := range v.Pipeline().Stages() {
				ex.Stages = append(ex.Stages, explainedStage{Index: s.Index, Kind: s.Kind, Definition: s.Definition})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ex)
		},
	}
}
