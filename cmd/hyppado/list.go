package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aluiziolira/hyppado-ingest/export"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the exports found in the export directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := export.NewReader(a.cfg.ExportDir)
			keys, err := reader.Available()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No exports in %s\n", a.cfg.ExportDir)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tRANGE\tFILE")
			for _, key := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", key.Kind, key.Range, reader.Path(key))
			}
			return tw.Flush()
		},
	}
}
