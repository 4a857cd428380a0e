package period

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abverdict/abverdict/internal/stats"
)

// Service validates periods on the way into a Store and consolidates them on
// the way out.
type Service struct {
	store        Store
	consolidator *Consolidator
	logger       *slog.Logger
}

// NewService returns a Service over store. A nil consolidator gets the
// default one.
func NewService(store Store, consolidator *Consolidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if consolidator == nil {
		consolidator = NewConsolidator(logger)
	}
	return &Service{store: store, consolidator: consolidator, logger: logger}
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// AddPeriod validates p and stores it under experiment. The date range is
// rewritten to its canonical form so the same window always lands on the
// same stored period, whatever format it was entered in. A period may carry
// only one of the groups; Consolidate requires both somewhere in the set.
func (s *Service) AddPeriod(ctx context.Context, experiment string, p Period) (Period, error) {
	experiment = strings.TrimSpace(experiment)
	if experiment == "" {
		return Period{}, &stats.ValidationError{Field: "experiment", Reason: "experiment name is required"}
	}
	if !p.hasControl() && len(p.Variants) == 0 {
		return Period{}, &stats.ValidationError{Reason: fmt.Sprintf("period %q: missing control or variant group", p.DateRange)}
	}
	if err := p.validateArms(); err != nil {
		return Period{}, err
	}
	rng, err := s.consolidator.ParseRange(p.DateRange)
	if err != nil {
		return Period{}, err
	}
	p.DateRange = rng.String()

	stored, err := s.store.AddPeriod(ctx, experiment, p)
	if err != nil {
		return Period{}, fmt.Errorf("failed to add period: %w", err)
	}
	s.logger.Info("period added", "experiment", experiment, "id", stored.ID, "range", stored.DateRange)
	return stored, nil
}

// Consolidate folds every stored source period of experiment once and
// replaces the experiment's snapshot with the result.
func (s *Service) Consolidate(ctx context.Context, experiment string) (*Consolidated, error) {
	periods, err := s.store.ListPeriods(ctx, experiment)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, &stats.ValidationError{Reason: fmt.Sprintf("experiment %q has no periods", experiment)}
	}

	c, err := s.consolidator.Consolidate(periods)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceConsolidated(ctx, experiment, *c); err != nil {
		return nil, fmt.Errorf("failed to save consolidated period: %w", err)
	}
	s.logger.Info("experiment consolidated",
		"experiment", experiment,
		"periods", c.PeriodCount,
		"range", c.DateRange,
	)
	return c, nil
}
