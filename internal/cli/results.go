package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/store"
)

func newResultsCmd() *cobra.Command {
	var (
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "results <experiment>",
		Short: "Show the latest analysis of an experiment",
		Long: `Show the cached analysis of an experiment. When no analysis is cached, or
--threshold differs from the cached one, it is recomputed from the
consolidated period.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				res, err := newRunner(s).Results(cmd.Context(), args[0], threshold)
				if err != nil {
					return fmt.Errorf("failed to get results: %w", err)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				renderResult(out, args[0], res)
				return nil
			})
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "reclassify at this confidence threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
