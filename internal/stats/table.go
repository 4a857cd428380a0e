package stats

import (
	"fmt"
	"math"
	"strings"
)

// Segment is one row of a scraped report table.
type Segment struct {
	Name   string             `json:"segment"`
	Values map[string]float64 `json:"metrics"`
}

// Table is a report of named segments by named metrics.
type Table struct {
	Metrics  []string  `json:"kpis"`
	Segments []Segment `json:"segments"`
}

// LegacyReport is the older single-variant payload shape.
type LegacyReport struct {
	Control Arm `json:"control"`
	Variant Arm `json:"variant"`
}

// Normalize returns the control and a one-element variant slice.
func (r LegacyReport) Normalize() (Arm, []Arm) {
	return r.Control, []Arm{r.Variant}
}

// IsControlSegment reports whether a segment name denotes the control group.
func IsControlSegment(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "v0") || strings.Contains(lower, "control")
}

func isNamedVariant(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"v1", "v2", "v3", "variant"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isTotalsRow(name string) bool {
	return strings.Contains(strings.ToLower(name), "totals")
}

// ResolveSegments picks the control and the variants out of a report table.
// The control is the first segment whose name contains "v0" or "control"
// (case-insensitive); every other segment is a variant, in table order. A
// "totals" row is dropped when explicitly named variants are present.
func ResolveSegments(t Table, trialsMetric, successesMetric string) (Arm, []Arm, error) {
	var control *Segment
	var candidates []Segment
	namedVariants := false

	for i := range t.Segments {
		seg := t.Segments[i]
		if IsControlSegment(seg.Name) {
			if control == nil {
				control = &t.Segments[i]
			}
			continue
		}
		if isNamedVariant(seg.Name) {
			namedVariants = true
		}
		candidates = append(candidates, seg)
	}

	var variantSegs []Segment
	for _, seg := range candidates {
		if namedVariants && isTotalsRow(seg.Name) {
			continue
		}
		variantSegs = append(variantSegs, seg)
	}

	if control == nil || len(variantSegs) == 0 {
		return Arm{}, nil, &ValidationError{Reason: "missing control or variant group"}
	}

	controlArm, err := segmentArm(*control, trialsMetric, successesMetric)
	if err != nil {
		return Arm{}, nil, err
	}

	variants := make([]Arm, 0, len(variantSegs))
	for _, seg := range variantSegs {
		arm, err := segmentArm(seg, trialsMetric, successesMetric)
		if err != nil {
			return Arm{}, nil, err
		}
		variants = append(variants, arm)
	}
	return controlArm, variants, nil
}

func segmentArm(seg Segment, trialsMetric, successesMetric string) (Arm, error) {
	trials, ok := seg.Values[trialsMetric]
	if !ok {
		return Arm{}, &ValidationError{Field: trialsMetric, Reason: fmt.Sprintf("metric %q missing for segment %q", trialsMetric, seg.Name)}
	}
	successes, ok := seg.Values[successesMetric]
	if !ok {
		return Arm{}, &ValidationError{Field: successesMetric, Reason: fmt.Sprintf("metric %q missing for segment %q", successesMetric, seg.Name)}
	}
	return Arm{
		Name:      seg.Name,
		Trials:    int(math.Round(trials)),
		Successes: int(math.Round(successes)),
	}, nil
}
