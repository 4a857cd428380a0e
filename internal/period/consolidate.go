package period

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abverdict/abverdict/internal/stats"
)

// Consolidator folds observation periods into one aggregate period.
type Consolidator struct {
	logger      *slog.Logger
	defaultYear int
}

// NewConsolidator returns a Consolidator. Date ranges without a year are
// placed in the current UTC year.
func NewConsolidator(logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{logger: logger, defaultYear: time.Now().UTC().Year()}
}

// WithDefaultYear returns a copy that resolves year-less ranges to year.
func (c *Consolidator) WithDefaultYear(year int) *Consolidator {
	cp := *c
	cp.defaultYear = year
	return &cp
}

// ParseRange parses a date range with the consolidator's default year.
func (c *Consolidator) ParseRange(s string) (DateRange, error) {
	return ParseDateRange(s, c.defaultYear)
}

type parsedPeriod struct {
	Period
	rng DateRange
}

// Consolidate sums control and per-variant counts over periods, in any
// order. Every period is folded exactly once. A period may carry only the
// control or only some variants; each arm accumulates from the periods it
// appears in, and at least one period must carry both groups. Gaps or
// overlaps between consecutive windows are reported as warnings, never as
// errors; a missing or unparsable date range is an error because skipping
// it would under-count.
func (c *Consolidator) Consolidate(periods []Period) (*Consolidated, error) {
	if len(periods) == 0 {
		return nil, &stats.ValidationError{Reason: "no periods to consolidate"}
	}

	parsed := make([]parsedPeriod, len(periods))
	anyComplete := false
	for i, p := range periods {
		if err := p.validateArms(); err != nil {
			return nil, fmt.Errorf("period %d: %w", i+1, err)
		}
		if p.DateRange == "" {
			return nil, &stats.ValidationError{Field: "date_range", Reason: fmt.Sprintf("period %d: missing date range", i+1)}
		}
		rng, err := c.ParseRange(p.DateRange)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", i+1, err)
		}
		parsed[i] = parsedPeriod{Period: p, rng: rng}
		anyComplete = anyComplete || p.complete()
	}
	if !anyComplete {
		return nil, &stats.ValidationError{Reason: "missing control or variant group: no period has both"}
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].rng.Start.Before(parsed[j].rng.Start)
	})

	warnings := c.checkContiguity(parsed)

	result := &Consolidated{Warnings: warnings}

	variantIndex := make(map[string]int)
	earliest, latest := parsed[0].rng.Start, parsed[0].rng.End
	total := 0

	for _, p := range parsed {
		if result.Control.Name == "" && p.hasControl() {
			result.Control.Name = p.Control.Name
		}
		result.Control.Trials += p.Control.Trials
		result.Control.Successes += p.Control.Successes

		for _, v := range p.Variants {
			idx, ok := variantIndex[v.Name]
			if !ok {
				idx = len(result.Variants)
				variantIndex[v.Name] = idx
				result.Variants = append(result.Variants, stats.Arm{Name: v.Name})
			}
			result.Variants[idx].Trials += v.Trials
			result.Variants[idx].Successes += v.Successes
		}

		if p.rng.End.After(latest) {
			latest = p.rng.End
		}
		total += p.count()
	}

	result.Range = DateRange{Start: earliest, End: latest}
	result.DateRange = result.Range.String()
	result.PeriodCount = total
	result.CreatedAt = time.Now().UTC()

	c.logger.Debug("periods consolidated",
		"periods", total,
		"range", result.DateRange,
		"variants", len(result.Variants),
		"warnings", len(warnings),
	)
	return result, nil
}

// checkContiguity expects each window to start the day after the previous
// one ended, within a day either way.
func (c *Consolidator) checkContiguity(sorted []parsedPeriod) []string {
	var warnings []string
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].rng, sorted[i].rng
		nextDay := prev.End.AddDate(0, 0, 1)
		diff := cur.Start.Sub(nextDay)
		if diff < 0 {
			diff = -diff
		}
		if diff > 24*time.Hour {
			msg := fmt.Sprintf("periods are not contiguous: %s is followed by %s",
				prev.End.Format(displayLayout), cur.Start.Format(displayLayout))
			c.logger.Warn("non-contiguous periods",
				"previous_end", prev.End.Format(time.DateOnly),
				"next_start", cur.Start.Format(time.DateOnly),
			)
			warnings = append(warnings, msg)
		}
	}
	return warnings
}
