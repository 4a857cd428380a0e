package stats_test

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/abverdict/abverdict/internal/stats"
)

func newTestAnalyzer() *stats.Analyzer {
	return stats.NewAnalyzer(stats.AnalyzerConfig{Seed: 7})
}

func TestAnalyze_EndToEndScenario(t *testing.T) {
	control := stats.Arm{Name: "V0 - Control", Trials: 67662, Successes: 1461}
	variants := []stats.Arm{{Name: "V1 - New checkout", Trials: 61616, Successes: 1255}}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if math.Abs(result.Control.ConversionRate*100-2.159) > 0.001 {
		t.Errorf("control rate = %f%%, want ~2.159%%", result.Control.ConversionRate*100)
	}

	v := result.Variants[0]
	if math.Abs(v.ConversionRate*100-2.037) > 0.001 {
		t.Errorf("variant rate = %f%%, want ~2.037%%", v.ConversionRate*100)
	}
	if math.Abs(float64(v.UpliftPercent)-(-5.67)) > 0.01 {
		t.Errorf("uplift = %f%%, want ~-5.67%%", float64(v.UpliftPercent))
	}

	p := v.Significance.ControlWinProbability
	if p < 0.85 || p > 0.99 {
		t.Errorf("control win probability = %f, want in [0.85, 0.99]", p)
	}
	if v.Significance.VariantWinProbability > 0.15 {
		t.Errorf("variant win probability = %f, want small", v.Significance.VariantWinProbability)
	}

	// The posterior puts control ahead with roughly 94% probability, so the
	// experiment reads as lost at any threshold that probability clears.
	classification := stats.Classify(result, 90)
	if classification.Overall != stats.VerdictLost {
		t.Errorf("overall verdict at 90%% = %s, want lost", classification.Overall)
	}
}

func TestAnalyze_ZeroControlUplift(t *testing.T) {
	control := stats.Arm{Name: "control", Trials: 100, Successes: 0}
	variants := []stats.Arm{
		{Name: "v1", Trials: 100, Successes: 0},
		{Name: "v2", Trials: 100, Successes: 3},
	}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got := float64(result.Variants[0].UpliftPercent); got != 0 || math.IsNaN(got) {
		t.Errorf("uplift with zero rates = %f, want 0", got)
	}
	if !result.Variants[1].UpliftPercent.IsInf() {
		t.Errorf("uplift over zero control = %f, want +Inf", float64(result.Variants[1].UpliftPercent))
	}
}

func TestAnalyze_PreservesVariantOrder(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 1000, Successes: 50}
	variants := []stats.Arm{
		{Name: "V3", Trials: 1000, Successes: 80},
		{Name: "V1", Trials: 1000, Successes: 40},
		{Name: "V2", Trials: 1000, Successes: 55},
	}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for i, v := range result.Variants {
		if v.Name != variants[i].Name {
			t.Errorf("variant %d = %s, want %s", i, v.Name, variants[i].Name)
		}
	}
}

func TestAnalyze_MissingGroups(t *testing.T) {
	a := newTestAnalyzer()
	control := stats.Arm{Name: "V0", Trials: 10, Successes: 1}

	if _, err := a.Analyze(context.Background(), nil, []stats.Arm{control}, 95, 0); !stats.IsValidation(err) {
		t.Errorf("nil control: expected ValidationError, got %v", err)
	}

	_, err := a.Analyze(context.Background(), &control, nil, 95, 0)
	if !stats.IsValidation(err) {
		t.Fatalf("no variants: expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing control or variant group") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestAnalyze_RejectsThresholdOutOfRange(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 10, Successes: 1}
	variants := []stats.Arm{{Name: "V1", Trials: 10, Successes: 2}}

	for _, threshold := range []float64{0, 0.5, 100, 150} {
		if _, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, threshold, 0); !stats.IsValidation(err) {
			t.Errorf("threshold %g: expected ValidationError, got %v", threshold, err)
		}
	}
}

func TestAnalyze_DurationFeedsImpact(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 1000, Successes: 100}
	variants := []stats.Arm{{Name: "V1", Trials: 1000, Successes: 120}}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 20)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// 2000 visitors over 20 days = 100/day
	if got := result.Variants[0].Impact.DailyExtra; !approx(got, 2) {
		t.Errorf("daily extra = %f, want 2", got)
	}
	if result.DurationDays != 20 {
		t.Errorf("duration = %f, want 20", result.DurationDays)
	}
}

func TestAnalyze_InvalidCountsDegradeToNeutral(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 100, Successes: 10}
	variants := []stats.Arm{{Name: "V1", Trials: 100, Successes: 140}}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Variants[0].Significance != stats.Neutral() {
		t.Errorf("expected neutral significance, got %+v", result.Variants[0].Significance)
	}
}

func TestAnalyze_SameSeedSameResult(t *testing.T) {
	control := stats.Arm{Name: "V0", Trials: 5000, Successes: 250}
	variants := []stats.Arm{{Name: "V1", Trials: 5000, Successes: 270}, {Name: "V2", Trials: 5000, Successes: 230}}

	first, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for i := range first.Variants {
		if first.Variants[i].Significance != second.Variants[i].Significance {
			t.Errorf("variant %d: %+v vs %+v", i, first.Variants[i].Significance, second.Variants[i].Significance)
		}
	}
}

func TestAnalysis_JSONRoundTripWithInfiniteUplift(t *testing.T) {
	control := stats.Arm{Name: "control", Trials: 100, Successes: 0}
	variants := []stats.Arm{{Name: "variant", Trials: 100, Successes: 4}}

	result, err := newTestAnalyzer().Analyze(context.Background(), &control, variants, 95, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"uplift_percent":"Infinity"`) {
		t.Errorf("expected Infinity uplift in %s", data)
	}

	var decoded stats.Analysis
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Variants[0].UpliftPercent.IsInf() {
		t.Errorf("expected +Inf uplift after decode, got %f", float64(decoded.Variants[0].UpliftPercent))
	}
	if decoded.Control.Name != "control" || decoded.Control.Trials != 100 {
		t.Errorf("control arm not preserved: %+v", decoded.Control)
	}
}
