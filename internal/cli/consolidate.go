package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/store"
)

func newConsolidateCmd() *cobra.Command {
	var (
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "consolidate <experiment>",
		Short: "Fold all stored periods into one and analyze it",
		Long: `Sum the counts of every stored period of an experiment, analyze the
aggregate over its full date range and cache the verdict.

Consolidating again after adding periods recomputes from the stored
periods, so counts are never added twice.

Example:
  abv consolidate checkout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				res, err := newRunner(s).Consolidate(cmd.Context(), args[0], threshold)
				if err != nil {
					return err
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

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "confidence threshold in percent (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
