package experiment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/testutil"
)

func newRunner(t *testing.T) *experiment.Runner {
	t.Helper()
	logger := testutil.DiscardLogger()
	analyzer := stats.NewAnalyzer(stats.AnalyzerConfig{Iterations: 20_000, Seed: 11, Logger: logger})
	consolidator := period.NewConsolidator(logger).WithDefaultYear(2025)
	return experiment.NewRunner(testutil.SetupTestStore(t), analyzer, consolidator, 95, logger)
}

func TestRunner_Analyze(t *testing.T) {
	r := newRunner(t)

	res, err := r.Analyze(context.Background(),
		stats.Arm{Name: "V0", Trials: 10_000, Successes: 500},
		[]stats.Arm{{Name: "V1", Trials: 10_000, Successes: 650}},
		0, 0)
	require.NoError(t, err)

	assert.Equal(t, 95.0, res.Analysis.ConfidenceThreshold)
	assert.Equal(t, stats.VerdictWon, res.Classification.Overall)
	assert.Nil(t, res.Consolidated)
}

func TestRunner_AnalyzeRejectsBadCounts(t *testing.T) {
	r := newRunner(t)

	_, err := r.Analyze(context.Background(),
		stats.Arm{Name: "V0", Trials: 10, Successes: 20},
		[]stats.Arm{{Name: "V1", Trials: 10, Successes: 1}},
		0, 0)
	require.Error(t, err)
	assert.True(t, stats.IsValidation(err))

	_, err = r.Analyze(context.Background(), stats.Arm{Name: "V0", Trials: 10}, nil, 0, 0)
	require.Error(t, err)
	assert.True(t, stats.IsValidation(err))
}

func TestRunner_ConsolidateCachesResult(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	var analyses, consolidations int
	r.OnAnalysis = func(time.Duration) { analyses++ }
	r.OnConsolidation = func(*period.Consolidated) { consolidations++ }

	_, err := r.Periods().AddPeriod(ctx, "checkout", testutil.Period("Aug 1 - Aug 7, 2025", 5000, 250, 5000, 330))
	require.NoError(t, err)
	_, err = r.Periods().AddPeriod(ctx, "checkout", testutil.Period("Aug 8 - Aug 14, 2025", 5000, 250, 5000, 320))
	require.NoError(t, err)

	res, err := r.Consolidate(ctx, "checkout", 0)
	require.NoError(t, err)
	require.NotNil(t, res.Consolidated)
	assert.Equal(t, 10_000, res.Analysis.Control.Trials)
	assert.Equal(t, 14.0, res.Analysis.DurationDays)
	assert.Equal(t, 1, analyses)
	assert.Equal(t, 1, consolidations)

	cached, err := r.Results(ctx, "checkout", 0)
	require.NoError(t, err)
	assert.Equal(t, res.Classification, cached.Classification)
	assert.Equal(t, "Aug 1, 2025 - Aug 14, 2025", cached.Consolidated.DateRange)
	assert.Equal(t, 1, analyses, "cached results must not re-run the analysis")

	// a different threshold recomputes from the snapshot
	again, err := r.Results(ctx, "checkout", 99.9)
	require.NoError(t, err)
	assert.Equal(t, 99.9, again.Analysis.ConfidenceThreshold)
	assert.Equal(t, 2, analyses)
}

func TestRunner_ResultsWithoutConsolidation(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	_, err := r.Results(ctx, "missing", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, period.ErrNotFound))

	_, err = r.Periods().AddPeriod(ctx, "checkout", testutil.Period("Aug 1 - Aug 7, 2025", 100, 10, 100, 12))
	require.NoError(t, err)

	_, err = r.Results(ctx, "checkout", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, period.ErrNotFound))
	assert.Contains(t, err.Error(), "consolidate")
}

func TestRunner_Save(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	res, err := r.Analyze(ctx,
		stats.Arm{Name: "V0", Trials: 1000, Successes: 50},
		[]stats.Arm{{Name: "V1", Trials: 1000, Successes: 52}},
		90, 7)
	require.NoError(t, err)
	require.NoError(t, r.Save(ctx, "adhoc", res))

	cached, err := r.Results(ctx, "adhoc", 0)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cached.Analysis.ConfidenceThreshold)
	assert.Nil(t, cached.Consolidated)
}
