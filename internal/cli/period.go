package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/store"
)

func newPeriodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage the reporting periods of an experiment",
		Long: `Store one report per period (usually a week) and fold them later with
'abv consolidate'. Adding a period whose date range is already stored
replaces it.`,
	}

	cmd.AddCommand(
		newPeriodAddCmd(),
		newPeriodListCmd(),
		newPeriodRemoveCmd(),
		newPeriodClearCmd(),
	)
	return cmd
}

func newPeriodAddCmd() *cobra.Command {
	var (
		dateRange   string
		control     string
		variants    []string
		periodCount int
	)

	cmd := &cobra.Command{
		Use:   "add <experiment>",
		Short: "Add or replace a period",
		Long: `Add a period to an experiment. Ranges may be written as "Aug 24 - Aug 31, 2025",
"2025-08-24 - 2025-08-31" or in Turkish ("24 Ağu - 31 Ağu 2025").

Example:
  abv period add checkout --range "Aug 24 - Aug 31, 2025" \
    --control "V0:67662:1461" --variant "V1:61616:1255"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, vs, err := parseArms(control, variants)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				p, err := newRunner(s).Periods().AddPeriod(cmd.Context(), args[0], period.Period{
					DateRange:   dateRange,
					Control:     c,
					Variants:    vs,
					PeriodCount: periodCount,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Stored period %s (%s) for '%s'.\n", p.ID, p.DateRange, args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dateRange, "range", "r", "", "date range of the period (required)")
	cmd.Flags().StringVar(&control, "control", "", "control arm as name:trials:successes (required)")
	cmd.Flags().StringArrayVar(&variants, "variant", nil, "variant arm as name:trials:successes (repeatable)")
	cmd.Flags().IntVar(&periodCount, "periods", 1, "number of reporting periods the counts already cover")
	cmd.MarkFlagRequired("range")
	cmd.MarkFlagRequired("control")

	return cmd
}

func newPeriodListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <experiment>",
		Short: "List the stored periods of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				periods, err := s.ListPeriods(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("experiment '%s' not found", args[0])
					}
					return fmt.Errorf("failed to list periods: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(periods) == 0 {
					fmt.Fprintln(out, "No periods stored.")
					return nil
				}

				t := Table{
					Title:   args[0],
					Headers: []string{"ID", "Range", "Control", "Variants", "Trials", "Successes"},
				}
				for _, p := range periods {
					trials, successes := p.Control.Trials, p.Control.Successes
					for _, v := range p.Variants {
						trials += v.Trials
						successes += v.Successes
					}
					t.Rows = append(t.Rows, []string{
						p.ID,
						p.DateRange,
						p.Control.Name,
						strconv.Itoa(len(p.Variants)),
						formatNumber(trials),
						formatNumber(successes),
					})
				}
				fmt.Fprint(out, RenderTable(t))
				return nil
			})
		},
	}
}

func newPeriodRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <experiment> <id>",
		Short: "Remove one period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				if err := s.RemovePeriod(cmd.Context(), args[0], args[1]); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("period '%s' not found in '%s'", args[1], args[0])
					}
					return fmt.Errorf("failed to remove period: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed period %s.\n", args[1])
				return nil
			})
		},
	}
}

func newPeriodClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear <experiment>",
		Short: "Remove every period of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete all periods of '%s'", name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			return withStore(func(s *store.SQLiteStore) error {
				if err := s.ClearPeriods(cmd.Context(), name); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("experiment '%s' not found", name)
					}
					return fmt.Errorf("failed to clear periods: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared all periods of '%s'.\n", name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
