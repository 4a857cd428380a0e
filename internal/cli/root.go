package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/config"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	cfg    = config.DefaultConfig()
	logger = slog.Default()
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "abv",
		Short: "abverdict - Bayesian significance and verdicts for A/B test reports",
		Long: `abverdict decides whether an A/B test variant beat its control.

It estimates significance with a Monte Carlo Beta-Binomial model, projects
the impact of shipping each variant, folds weekly reports into one
consolidated period and classifies every variant as won, lost or
inconclusive.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default from config or "+config.EnvDBPath+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newPeriodCmd(),
		newConsolidateCmd(),
		newResultsCmd(),
		newExportCmd(),
		newListCmd(),
		newConfigCmd(),
		newServeCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

func Execute() error {
	return newRootCmd().Execute()
}

// setup loads the config and installs the process logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		loaded.Storage.DBPath = dbPath
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = loaded
	dbPath = cfg.Storage.DBPath

	logger = newLogger(cfg.Log, verbose)
	slog.SetDefault(logger)
	return nil
}

func newLogger(lc config.LogConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
