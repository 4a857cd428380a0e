package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/config"
	"github.com/abverdict/abverdict/internal/stats"
)

// thresholdChoices are offered by set-threshold when no value is given.
var thresholdChoices = []string{"90", "95", "99"}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), resolvedConfigPath())
				return nil
			},
		},
		newSetThresholdCmd(),
	)
	return cmd
}

func newSetThresholdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-threshold [percent]",
		Short: "Set the default confidence threshold",
		Long: `Set the default confidence threshold, in percent, and save it to the
config file. Without an argument, pick one interactively.

Example:
  abv config set-threshold 99`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			} else {
				picked, err := promptThreshold()
				if err != nil {
					return err
				}
				raw = picked
			}

			threshold, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return &stats.ValidationError{Field: "threshold", Reason: fmt.Sprintf("not a number: %q", raw)}
			}
			if err := stats.ValidateThreshold(threshold); err != nil {
				return err
			}

			path := resolvedConfigPath()
			fileCfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			fileCfg.Analysis.ConfidenceThreshold = threshold
			if err := config.Save(path, fileCfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Confidence threshold set to %g%% in %s\n", threshold, path)
			return nil
		},
	}
}

func promptThreshold() (string, error) {
	prompt := promptui.Select{
		Label: "Confidence threshold (%)",
		Items: thresholdChoices,
		Size:  len(thresholdChoices),
	}

	_, value, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return value, nil
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.ConfigPath()
}
