package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/report"
	"github.com/abverdict/abverdict/internal/store"
)

func newExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <experiment>",
		Short: "Export the latest analysis",
		Long: `Export the latest analysis of an experiment in CSV, JSON or YAML format.

Examples:
  abv export checkout --format csv > checkout.csv
  abv export checkout --format yaml > checkout.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				res, err := newRunner(s).Results(cmd.Context(), args[0], 0)
				if err != nil {
					return fmt.Errorf("failed to get results: %w", err)
				}

				doc := report.Document{
					Experiment:     args[0],
					Analysis:       res.Analysis,
					Classification: res.Classification,
				}
				if res.Consolidated != nil {
					doc.Range = res.Consolidated.DateRange
				}
				return report.Write(cmd.OutOrStdout(), f, doc)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv, json or yaml)")
	return cmd
}
