// Package period accumulates experiment observations collected over several
// date windows and folds them into one aggregate.
package period

import (
	"fmt"
	"time"

	"github.com/abverdict/abverdict/internal/stats"
)

// Period is one experiment's counts over one date window.
type Period struct {
	ID        string      `json:"id,omitempty" yaml:"id,omitempty"`
	DateRange string      `json:"date_range" yaml:"date_range"`
	Control   stats.Arm   `json:"control" yaml:"control"`
	Variants  []stats.Arm `json:"variants" yaml:"variants"`
	// PeriodCount is the number of source windows folded into this period;
	// 0 and 1 both mean a single raw window.
	PeriodCount int       `json:"period_count,omitempty" yaml:"period_count,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// complete reports whether the period carries both groups.
func (p Period) complete() bool {
	return p.hasControl() && len(p.Variants) > 0
}

func (p Period) hasControl() bool {
	return p.Control.Name != ""
}

// validateArms checks the arms the period does carry. A period may lack the
// control or the variants; an arm that is present must be named and sane.
func (p Period) validateArms() error {
	if !p.hasControl() && (p.Control.Trials != 0 || p.Control.Successes != 0) {
		return &stats.ValidationError{Field: "control", Reason: fmt.Sprintf("period %q has counts for an unnamed control", p.DateRange)}
	}
	if err := p.Control.Validate(); err != nil {
		return fmt.Errorf("period %q: %w", p.DateRange, err)
	}
	seen := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if v.Name == "" {
			return &stats.ValidationError{Field: "variant", Reason: fmt.Sprintf("period %q has an unnamed variant", p.DateRange)}
		}
		if seen[v.Name] {
			return &stats.ValidationError{Field: "variant", Reason: fmt.Sprintf("period %q lists variant %q twice", p.DateRange, v.Name)}
		}
		seen[v.Name] = true
		if err := v.Validate(); err != nil {
			return fmt.Errorf("period %q: %w", p.DateRange, err)
		}
	}
	return nil
}

func (p Period) count() int {
	if p.PeriodCount < 1 {
		return 1
	}
	return p.PeriodCount
}

// Consolidated is the fold of several periods: counts are summed and the
// range spans the earliest start to the latest end.
type Consolidated struct {
	Period
	Range    DateRange `json:"range" yaml:"range"`
	Warnings []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// DurationDays returns the length of the consolidated range in days.
func (c *Consolidated) DurationDays() float64 {
	return float64(c.Range.Days())
}

// ExperimentSummary describes the stored state of one experiment. Verdict is
// the overall verdict of the last cached analysis, empty when there is none.
type ExperimentSummary struct {
	Name            string        `json:"name" yaml:"name"`
	PeriodCount     int           `json:"period_count" yaml:"period_count"`
	HasConsolidated bool          `json:"has_consolidated" yaml:"has_consolidated"`
	Verdict         stats.Verdict `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at" yaml:"updated_at"`
}
