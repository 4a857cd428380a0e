package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// newRunner builds a runner from the loaded config. st may be nil for
// ad-hoc analyses that never touch the database.
func newRunner(st experiment.Store) *experiment.Runner {
	analyzer := stats.NewAnalyzer(stats.AnalyzerConfig{
		Iterations: cfg.Analysis.Iterations,
		Seed:       cfg.Analysis.Seed,
		Impact:     cfg.ImpactOptions(),
		Logger:     logger,
	})
	return experiment.NewRunner(st, analyzer, period.NewConsolidator(logger), cfg.Analysis.ConfidenceThreshold, logger)
}

// parseArm parses "name:trials:successes". The name may itself contain
// colons; the last two fields are the counts.
func parseArm(s string) (stats.Arm, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return stats.Arm{}, &stats.ValidationError{Field: "arm", Reason: fmt.Sprintf("expected name:trials:successes, got %q", s)}
	}

	n := len(parts)
	name := strings.TrimSpace(strings.Join(parts[:n-2], ":"))
	trials, err := strconv.Atoi(strings.TrimSpace(parts[n-2]))
	if err != nil {
		return stats.Arm{}, &stats.ValidationError{Field: "arm", Reason: fmt.Sprintf("invalid trials in %q", s)}
	}
	successes, err := strconv.Atoi(strings.TrimSpace(parts[n-1]))
	if err != nil {
		return stats.Arm{}, &stats.ValidationError{Field: "arm", Reason: fmt.Sprintf("invalid successes in %q", s)}
	}

	arm := stats.Arm{Name: name, Trials: trials, Successes: successes}
	if err := arm.Validate(); err != nil {
		return stats.Arm{}, err
	}
	return arm, nil
}

// parseArms parses the control flag and every variant flag.
func parseArms(control string, variants []string) (stats.Arm, []stats.Arm, error) {
	if control == "" || len(variants) == 0 {
		return stats.Arm{}, nil, &stats.ValidationError{Reason: "missing control or variant group (use --control and --variant)"}
	}

	c, err := parseArm(control)
	if err != nil {
		return stats.Arm{}, nil, err
	}
	vs := make([]stats.Arm, 0, len(variants))
	for _, v := range variants {
		arm, err := parseArm(v)
		if err != nil {
			return stats.Arm{}, nil, err
		}
		vs = append(vs, arm)
	}
	return c, vs, nil
}

// getTokenFilePath returns the path to the token file
func getTokenFilePath() string {
	// Store token file alongside the database
	dir := filepath.Dir(dbPath)
	return filepath.Join(dir, ".abv-token")
}

func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
