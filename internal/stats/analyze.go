package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Uplift is a relative change in percent. It is +Inf when the control
// converted nothing and the variant converted something, and encodes as the
// string "Infinity" in that case.
type Uplift float64

func (u Uplift) MarshalJSON() ([]byte, error) {
	f := float64(u)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte(`0`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (u *Uplift) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"Infinity"`:
		*u = Uplift(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*u = Uplift(math.Inf(-1))
		return nil
	case `null`:
		*u = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid uplift %s: %w", b, err)
	}
	*u = Uplift(f)
	return nil
}

// MarshalYAML mirrors the JSON encoding.
func (u Uplift) MarshalYAML() (interface{}, error) {
	if math.IsInf(float64(u), 0) {
		b, _ := u.MarshalJSON()
		s, _ := strconv.Unquote(string(b))
		return s, nil
	}
	return float64(u), nil
}

// IsInf reports whether the uplift is unbounded.
func (u Uplift) IsInf() bool {
	return math.IsInf(float64(u), 0)
}

// ControlSummary is the control arm with its derived rate.
type ControlSummary struct {
	Arm            `yaml:",inline"`
	ConversionRate float64  `json:"conversion_rate" yaml:"conversion_rate"`
	Interval       Interval `json:"interval" yaml:"interval"`
}

// VariantAnalysis compares one variant with the control.
type VariantAnalysis struct {
	Arm            `yaml:",inline"`
	ConversionRate float64      `json:"conversion_rate" yaml:"conversion_rate"`
	UpliftPercent  Uplift       `json:"uplift_percent" yaml:"uplift_percent"`
	Significance   Significance `json:"significance" yaml:"significance"`
	Impact         Impact       `json:"impact" yaml:"impact"`
	Interval       Interval     `json:"interval" yaml:"interval"`
}

// Analysis is the result of one Analyze call. It is built fresh on every
// call; edits to the inputs produce a new Analysis.
type Analysis struct {
	Control             ControlSummary    `json:"control" yaml:"control"`
	Variants            []VariantAnalysis `json:"variants" yaml:"variants"`
	ConfidenceThreshold float64           `json:"confidence_threshold" yaml:"confidence_threshold"`
	Iterations          int               `json:"iterations" yaml:"iterations"`
	DurationDays        float64           `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
	AnalyzedAt          time.Time         `json:"analyzed_at" yaml:"analyzed_at"`
}

// AnalyzerConfig configures an Analyzer. Zero values select the defaults.
type AnalyzerConfig struct {
	Iterations int
	// Seed makes the Monte Carlo streams reproducible when non-zero.
	Seed   uint64
	Impact ImpactOptions
	Logger *slog.Logger
}

// Analyzer runs the significance engine and the impact calculator for one
// control and any number of variants.
type Analyzer struct {
	iterations int
	seed       uint64
	impact     ImpactOptions
	logger     *slog.Logger
}

// NewAnalyzer returns an Analyzer for cfg.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Impact == (ImpactOptions{}) {
		cfg.Impact = DefaultImpactOptions()
	}
	if cfg.Impact.TrafficSplit == 0 {
		cfg.Impact.TrafficSplit = DefaultTrafficSplit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		iterations: cfg.Iterations,
		seed:       cfg.Seed,
		impact:     cfg.Impact,
		logger:     cfg.Logger,
	}
}

// WithDailyTraffic returns a copy of the analyzer that assumes traffic
// visitors per day when the test duration is unknown.
func (a *Analyzer) WithDailyTraffic(traffic float64) *Analyzer {
	cp := *a
	cp.impact.DailyTraffic = traffic
	return &cp
}

// Iterations returns the Monte Carlo draws per variant.
func (a *Analyzer) Iterations() int {
	return a.iterations
}

// ValidateThreshold checks a confidence threshold percentage.
func ValidateThreshold(threshold float64) error {
	if threshold < 1 || threshold > 99.9 {
		return &ValidationError{Field: "confidence_threshold", Reason: fmt.Sprintf("must be between 1 and 99.9, got %g", threshold)}
	}
	return nil
}

// Analyze compares every variant with the control at the given confidence
// threshold (a percentage). Variants are analyzed concurrently and reported
// in input order. durationDays, when positive, overrides the analyzer's
// default traffic assumption for the impact estimate.
func (a *Analyzer) Analyze(ctx context.Context, control *Arm, variants []Arm, threshold, durationDays float64) (*Analysis, error) {
	if control == nil || len(variants) == 0 {
		return nil, &ValidationError{Reason: "missing control or variant group"}
	}
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	opts := a.impact
	if durationDays > 0 {
		opts.DurationDays = durationDays
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	controlRate := control.ConversionRate()

	results := make([]VariantAnalysis, len(variants))
	g, _ := errgroup.WithContext(ctx)
	for i := range variants {
		i := i
		g.Go(func() error {
			engine := NewEngine(a.iterations, a.samplerFor(i))
			results[i] = analyzeVariant(engine, *control, controlRate, variants[i], threshold, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("analysis complete",
		"control", control.Name,
		"variants", len(variants),
		"iterations", a.iterations,
		"threshold", threshold,
		"duration", time.Since(start),
	)

	return &Analysis{
		Control: ControlSummary{
			Arm:            *control,
			ConversionRate: controlRate,
			Interval:       control.Interval(threshold),
		},
		Variants:            results,
		ConfidenceThreshold: threshold,
		Iterations:          a.iterations,
		DurationDays:        opts.DurationDays,
		AnalyzedAt:          time.Now().UTC(),
	}, nil
}

func (a *Analyzer) samplerFor(i int) *Sampler {
	if a.seed == 0 {
		return NewSampler(rand.New(rand.NewPCG(rand.Uint64(), uint64(i))))
	}
	return NewSeededSampler(a.seed + uint64(i)*0x2545f4914f6cdd1d)
}

func analyzeVariant(engine *Engine, control Arm, controlRate float64, variant Arm, threshold float64, opts ImpactOptions) VariantAnalysis {
	variantRate := variant.ConversionRate()
	return VariantAnalysis{
		Arm:            variant,
		ConversionRate: variantRate,
		UpliftPercent:  uplift(controlRate, variantRate),
		Significance:   engine.Estimate(control.Trials, control.Successes, variant.Trials, variant.Successes, threshold),
		Impact:         EstimateImpact(control, variant, opts),
		Interval:       variant.Interval(threshold),
	}
}

func uplift(controlRate, variantRate float64) Uplift {
	switch {
	case controlRate > 0:
		return Uplift((variantRate - controlRate) / controlRate * 100)
	case variantRate > 0:
		return Uplift(math.Inf(1))
	default:
		return 0
	}
}
