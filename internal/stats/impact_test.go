package stats_test

import (
	"math"
	"testing"

	"github.com/abverdict/abverdict/internal/stats"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimateImpact_Extrapolation(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 1000, Successes: 100}
	variant := stats.Arm{Name: "V1", Trials: 1000, Successes: 120}

	got := stats.EstimateImpact(control, variant, stats.DefaultImpactOptions())

	if !approx(got.AbsoluteLift, 0.02) {
		t.Errorf("absolute lift = %f, want 0.02", got.AbsoluteLift)
	}
	if !approx(got.DailyExtra, 20) {
		t.Errorf("daily extra = %f, want 20", got.DailyExtra)
	}
	if !approx(got.MonthlyExtra, 600) {
		t.Errorf("monthly extra = %f, want 600", got.MonthlyExtra)
	}
	if !approx(got.YearlyExtra, 7300) {
		t.Errorf("yearly extra = %f, want 7300", got.YearlyExtra)
	}
	if !approx(got.RelativeLiftPercent, 20) {
		t.Errorf("relative lift = %f, want 20", got.RelativeLiftPercent)
	}
}

func TestEstimateImpact_UsesDurationWhenKnown(t *testing.T) {
	control := stats.Arm{Trials: 1000, Successes: 100}
	variant := stats.Arm{Trials: 1000, Successes: 120}
	opts := stats.DefaultImpactOptions()
	opts.DurationDays = 10

	got := stats.EstimateImpact(control, variant, opts)

	// 2000 visitors over 10 days = 200/day
	if !approx(got.DailyExtra, 4) {
		t.Errorf("daily extra = %f, want 4", got.DailyExtra)
	}
	if !approx(got.YearlyExtra, 1460) {
		t.Errorf("yearly extra = %f, want 1460", got.YearlyExtra)
	}
}

func TestEstimateImpact_ZeroTrials(t *testing.T) {
	got := stats.EstimateImpact(stats.Arm{}, stats.Arm{}, stats.DefaultImpactOptions())

	if got != (stats.Impact{}) {
		t.Errorf("expected zero impact, got %+v", got)
	}
}

func TestEstimateImpact_ZeroControlRate(t *testing.T) {
	got := stats.EstimateImpact(
		stats.Arm{Trials: 500, Successes: 0},
		stats.Arm{Trials: 500, Successes: 5},
		stats.DefaultImpactOptions(),
	)

	if got.RelativeLiftPercent != 0 {
		t.Errorf("relative lift = %f, want 0 for zero control rate", got.RelativeLiftPercent)
	}
	if !approx(got.DailyExtra, 10) {
		t.Errorf("daily extra = %f, want 10", got.DailyExtra)
	}
}

func TestImpactOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    stats.ImpactOptions
		wantErr bool
	}{
		{"defaults", stats.DefaultImpactOptions(), false},
		{"negative traffic", stats.ImpactOptions{DailyTraffic: -1, TrafficSplit: 0.5}, true},
		{"split of one", stats.ImpactOptions{DailyTraffic: 1, TrafficSplit: 1}, true},
		{"negative duration", stats.ImpactOptions{DailyTraffic: 1, TrafficSplit: 0.5, DurationDays: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !stats.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}
