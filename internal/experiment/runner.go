// Package experiment ties period consolidation, analysis and the analysis
// cache together for the CLI and the HTTP server.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
	"github.com/abverdict/abverdict/internal/store"
)

// Store is the storage a Runner needs.
type Store interface {
	period.Store
	SaveAnalysis(ctx context.Context, experiment string, a *store.CachedAnalysis) error
	GetAnalysis(ctx context.Context, experiment string) (*store.CachedAnalysis, error)
}

// Result is an analysis with its verdicts, and the snapshot it came from
// when it was computed from stored periods.
type Result struct {
	Consolidated   *period.Consolidated `json:"consolidated,omitempty" yaml:"consolidated,omitempty"`
	Analysis       *stats.Analysis      `json:"analysis" yaml:"analysis"`
	Classification stats.Classification `json:"classification" yaml:"classification"`
}

// Cached converts the result for the analysis cache.
func (r *Result) Cached() *store.CachedAnalysis {
	c := &store.CachedAnalysis{
		Analysis:       r.Analysis,
		Classification: r.Classification,
		UpdatedAt:      time.Now().UTC(),
	}
	if r.Consolidated != nil {
		c.Range = r.Consolidated.DateRange
	}
	return c
}

// Runner runs analyses over stored or ad-hoc counts.
type Runner struct {
	store     Store
	service   *period.Service
	analyzer  *stats.Analyzer
	threshold float64
	logger    *slog.Logger

	// OnAnalysis, when set, is called after every analysis with its duration.
	OnAnalysis func(time.Duration)
	// OnConsolidation, when set, is called after every consolidation.
	OnConsolidation func(*period.Consolidated)
}

// NewRunner returns a Runner. threshold is the default confidence threshold
// in percent; 0 selects stats.DefaultConfidenceThreshold.
func NewRunner(st Store, analyzer *stats.Analyzer, consolidator *period.Consolidator, threshold float64, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold == 0 {
		threshold = stats.DefaultConfidenceThreshold
	}
	if analyzer == nil {
		analyzer = stats.NewAnalyzer(stats.AnalyzerConfig{Logger: logger})
	}
	return &Runner{
		store:     st,
		service:   period.NewService(st, consolidator, logger),
		analyzer:  analyzer,
		threshold: threshold,
		logger:    logger,
	}
}

// Threshold returns the default confidence threshold.
func (r *Runner) Threshold() float64 {
	return r.threshold
}

// WithDailyTraffic returns a copy of the runner whose impact estimates
// assume traffic visitors per day when the test duration is unknown.
func (r *Runner) WithDailyTraffic(traffic float64) *Runner {
	cp := *r
	cp.analyzer = r.analyzer.WithDailyTraffic(traffic)
	return &cp
}

// Periods returns the period service over the runner's store.
func (r *Runner) Periods() *period.Service {
	return r.service
}

// Analyze compares ad-hoc counts. A zero threshold selects the runner's
// default; durationDays may be 0 when unknown.
func (r *Runner) Analyze(ctx context.Context, control stats.Arm, variants []stats.Arm, threshold, durationDays float64) (*Result, error) {
	if threshold == 0 {
		threshold = r.threshold
	}
	if err := control.Validate(); err != nil {
		return nil, err
	}
	for _, v := range variants {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	a, err := r.analyzer.Analyze(ctx, &control, variants, threshold, durationDays)
	if err != nil {
		return nil, err
	}
	if r.OnAnalysis != nil {
		r.OnAnalysis(time.Since(start))
	}

	return &Result{Analysis: a, Classification: stats.Classify(a, threshold)}, nil
}

// Consolidate folds the stored periods of name, analyzes the aggregate with
// its date range as the test duration, and caches the result.
func (r *Runner) Consolidate(ctx context.Context, name string, threshold float64) (*Result, error) {
	c, err := r.service.Consolidate(ctx, name)
	if err != nil {
		return nil, err
	}
	if r.OnConsolidation != nil {
		r.OnConsolidation(c)
	}
	return r.analyzeSnapshot(ctx, name, c, threshold)
}

// Results returns the cached analysis of name, recomputing it from the
// consolidated snapshot when the cache is empty. A non-zero threshold that
// differs from the cached one also triggers a recompute.
func (r *Runner) Results(ctx context.Context, name string, threshold float64) (*Result, error) {
	cached, err := r.store.GetAnalysis(ctx, name)
	switch {
	case err == nil && (threshold == 0 || threshold == cached.Analysis.ConfidenceThreshold):
		res := &Result{Analysis: cached.Analysis, Classification: cached.Classification}
		if c, err := r.store.GetConsolidated(ctx, name); err == nil {
			res.Consolidated = c
		}
		return res, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to get cached analysis: %w", err)
	}

	c, err := r.store.GetConsolidated(ctx, name)
	if err != nil {
		if errors.Is(err, period.ErrNotFound) {
			return nil, fmt.Errorf("experiment %q has no results yet, run consolidate first: %w", name, err)
		}
		return nil, fmt.Errorf("failed to get consolidated period: %w", err)
	}
	return r.analyzeSnapshot(ctx, name, c, threshold)
}

// Save caches res under name.
func (r *Runner) Save(ctx context.Context, name string, res *Result) error {
	if err := r.store.SaveAnalysis(ctx, name, res.Cached()); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (r *Runner) analyzeSnapshot(ctx context.Context, name string, c *period.Consolidated, threshold float64) (*Result, error) {
	res, err := r.Analyze(ctx, c.Control, c.Variants, threshold, c.DurationDays())
	if err != nil {
		return nil, err
	}
	res.Consolidated = c

	if err := r.Save(ctx, name, res); err != nil {
		return nil, err
	}
	r.logger.Info("analysis cached",
		"experiment", name,
		"verdict", res.Classification.Overall,
		"range", c.DateRange,
	)
	return res, nil
}
