package stats

import "fmt"

// Defaults for impact extrapolation when the test duration is unknown.
const (
	DefaultDailyTraffic = 1000.0
	DefaultTrafficSplit = 0.5
)

// ImpactOptions supplies the traffic context for EstimateImpact.
type ImpactOptions struct {
	// DailyTraffic is used when DurationDays is unknown.
	DailyTraffic float64
	// TrafficSplit is reserved; it is validated but does not enter the estimate.
	TrafficSplit float64
	// DurationDays is the test length in days, 0 when unknown.
	DurationDays float64
}

// DefaultImpactOptions returns 1000 visitors/day, a 50/50 split and no duration.
func DefaultImpactOptions() ImpactOptions {
	return ImpactOptions{
		DailyTraffic: DefaultDailyTraffic,
		TrafficSplit: DefaultTrafficSplit,
	}
}

// Validate rejects options that would make the extrapolation meaningless.
func (o ImpactOptions) Validate() error {
	if o.DailyTraffic < 0 {
		return &ValidationError{Field: "daily_traffic", Reason: fmt.Sprintf("must not be negative, got %g", o.DailyTraffic)}
	}
	if o.TrafficSplit <= 0 || o.TrafficSplit >= 1 {
		return &ValidationError{Field: "traffic_split", Reason: fmt.Sprintf("must be between 0 and 1, got %g", o.TrafficSplit)}
	}
	if o.DurationDays < 0 {
		return &ValidationError{Field: "duration_days", Reason: fmt.Sprintf("must not be negative, got %g", o.DurationDays)}
	}
	return nil
}

// Impact is an order-of-magnitude business estimate: the measured lift
// applied to a steady daily traffic volume. It carries no error bars.
type Impact struct {
	AbsoluteLift        float64 `json:"absolute_lift" yaml:"absolute_lift"`
	RelativeLiftPercent float64 `json:"relative_lift_percent" yaml:"relative_lift_percent"`
	DailyExtra          float64 `json:"daily_extra" yaml:"daily_extra"`
	MonthlyExtra        float64 `json:"monthly_extra" yaml:"monthly_extra"`
	YearlyExtra         float64 `json:"yearly_extra" yaml:"yearly_extra"`
}

// EstimateImpact extrapolates the extra conversions per day, month (30 days)
// and year (365 days) if all traffic went to the variant.
func EstimateImpact(control, variant Arm, opts ImpactOptions) Impact {
	controlRate := control.ConversionRate()
	variantRate := variant.ConversionRate()

	absoluteLift := variantRate - controlRate
	relativeLift := 0.0
	if controlRate > 0 {
		relativeLift = absoluteLift / controlRate * 100
	}

	dailyTotal := opts.DailyTraffic
	if opts.DurationDays > 0 {
		dailyTotal = float64(control.Trials+variant.Trials) / opts.DurationDays
	}

	daily := dailyTotal * absoluteLift
	return Impact{
		AbsoluteLift:        absoluteLift,
		RelativeLiftPercent: relativeLift,
		DailyExtra:          daily,
		MonthlyExtra:        daily * 30,
		YearlyExtra:         daily * 365,
	}
}
