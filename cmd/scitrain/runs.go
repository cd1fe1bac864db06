package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/registry"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent training runs from the run registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc := a.cfg.Registry
			if rc.DSN == "" {
				return errors.NewValidationError("registry.dsn", "run registry is not configured", rc.DSN)
			}
			reg, err := registry.Open(cmd.Context(), rc.Driver, rc.DSN)
			if err != nil {
				return err
			}
			defer reg.Close()

			runs, err := reg.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTATUS\tBEST MODEL\tSCORE\tSTARTED\tERROR")
			for _, r := range runs {
				score := "-"
				if r.Score != nil {
					score = fmt.Sprintf("%.4f", *r.Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status, r.BestModel, score,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
