package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/store"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List all experiments with their period counts and latest verdict.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				experiments, err := s.ListExperiments(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list experiments: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(experiments) == 0 {
					fmt.Fprintln(out, "No experiments yet.")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Add a reporting period to start one:")
					fmt.Fprintln(out, `  abv period add <name> --range "Aug 24 - Aug 31, 2025" --control V0:1000:50 --variant V1:1000:60`)
					return nil
				}

				t := Table{Headers: []string{"Name", "Periods", "Consolidated", "Verdict", "Updated"}}
				for _, e := range experiments {
					consolidated := "no"
					if e.HasConsolidated {
						consolidated = "yes"
					}
					verdict := "-"
					if e.Verdict != "" {
						verdict = renderVerdict(e.Verdict)
					}
					t.Rows = append(t.Rows, []string{
						e.Name,
						strconv.Itoa(e.PeriodCount),
						consolidated,
						verdict,
						e.UpdatedAt.Format("2006-01-02"),
					})
				}
				fmt.Fprint(out, RenderTable(t))
				return nil
			})
		},
	}
}
