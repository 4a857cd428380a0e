package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/config"
	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		control      string
		variants     []string
		threshold    float64
		iterations   int
		days         float64
		dailyTraffic float64
		asJSON       bool
		saveAs       string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one set of A/B test counts",
		Long: `Estimate the significance and projected impact of each variant against
the control, and classify each variant as won, lost or inconclusive.

Arms are given as name:trials:successes.

Example:
  abv analyze --control "V0:67662:1461" --variant "V1:61616:1255" --days 8
  abv analyze --control "A:1000:50" --variant "B:1000:61" --variant "C:1000:44" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, vs, err := parseArms(control, variants)
			if err != nil {
				return err
			}
			if threshold != 0 {
				if err := stats.ValidateThreshold(threshold); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("iterations") {
				if iterations < config.MinIterations {
					return &stats.ValidationError{Field: "iterations", Reason: fmt.Sprintf("must be at least %d, got %d", config.MinIterations, iterations)}
				}
				cfg.Analysis.Iterations = iterations
			}

			analyze := func(ctx context.Context, runner *experiment.Runner) (*experiment.Result, error) {
				if cmd.Flags().Changed("daily-traffic") {
					runner = runner.WithDailyTraffic(dailyTraffic)
				}
				return runner.Analyze(ctx, c, vs, threshold, days)
			}

			var res *experiment.Result
			if saveAs == "" {
				res, err = analyze(cmd.Context(), newRunner(nil))
			} else {
				err = withStore(func(s *store.SQLiteStore) error {
					runner := newRunner(s)
					var err error
					if res, err = analyze(cmd.Context(), runner); err != nil {
						return err
					}
					return runner.Save(cmd.Context(), saveAs, res)
				})
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			renderResult(out, "A/B Test Analysis", res)
			if saveAs != "" {
				fmt.Fprintf(out, "\nSaved as '%s'.\n", saveAs)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&control, "control", "", "control arm as name:trials:successes (required)")
	cmd.Flags().StringArrayVar(&variants, "variant", nil, "variant arm as name:trials:successes (repeatable)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "confidence threshold in percent (default from config)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Monte Carlo iterations (default from config)")
	cmd.Flags().Float64Var(&days, "days", 0, "test duration in days, used for impact projection")
	cmd.Flags().Float64Var(&dailyTraffic, "daily-traffic", 0, "visitors per day when the duration is unknown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&saveAs, "save", "", "cache the result under this experiment name")

	return cmd
}
