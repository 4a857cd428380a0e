// Package report renders analyses for export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abverdict/abverdict/internal/stats"
)

// Format is an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, json, yaml or yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", &stats.ValidationError{Field: "format", Reason: fmt.Sprintf("must be csv, json or yaml, got %q", s)}
}

// Document is everything an export carries.
type Document struct {
	Experiment     string               `json:"experiment" yaml:"experiment"`
	Range          string               `json:"range,omitempty" yaml:"range,omitempty"`
	Analysis       *stats.Analysis      `json:"analysis" yaml:"analysis"`
	Classification stats.Classification `json:"classification" yaml:"classification"`
}

// Row is one arm, formatted for a table.
type Row struct {
	Name           string
	Trials         int
	Successes      int
	ConversionRate string
	Uplift         string
	Significance   string
}

// Header is the column header matching Row.
var Header = []string{"Variant", "Trials", "Successes", "Conv. Rate", "Uplift", "Significance"}

// Cells returns the row as strings in Header order.
func (r Row) Cells() []string {
	return []string{
		r.Name,
		strconv.Itoa(r.Trials),
		strconv.Itoa(r.Successes),
		r.ConversionRate,
		r.Uplift,
		r.Significance,
	}
}

// Rows returns the control row followed by one row per variant. The control
// has no uplift and its significance is the mean probability, over all
// comparisons, that the control is better.
func Rows(a *stats.Analysis) []Row {
	if a == nil {
		return nil
	}

	var controlWin float64
	for _, v := range a.Variants {
		controlWin += v.Significance.ControlWinProbability
	}
	if len(a.Variants) > 0 {
		controlWin /= float64(len(a.Variants))
	}

	rows := make([]Row, 0, len(a.Variants)+1)
	rows = append(rows, Row{
		Name:           a.Control.Name,
		Trials:         a.Control.Trials,
		Successes:      a.Control.Successes,
		ConversionRate: Percent(a.Control.ConversionRate),
		Uplift:         "-",
		Significance:   Probability(controlWin),
	})
	for _, v := range a.Variants {
		rows = append(rows, Row{
			Name:           v.Name,
			Trials:         v.Trials,
			Successes:      v.Successes,
			ConversionRate: Percent(v.ConversionRate),
			Uplift:         UpliftString(v.UpliftPercent),
			Significance:   Probability(v.Significance.VariantWinProbability),
		})
	}
	return rows
}

// Percent formats a rate in [0,1] as a percentage with two decimals.
func Percent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

// Probability formats a probability in [0,1] as a percentage with one decimal.
func Probability(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// UpliftString formats an uplift percentage; an unbounded uplift prints as ∞.
func UpliftString(u stats.Uplift) string {
	if u.IsInf() {
		return "∞"
	}
	return fmt.Sprintf("%.2f%%", float64(u))
}

// Write renders doc in format.
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, doc)
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatYAML:
		return WriteYAML(w, doc)
	}
	return &stats.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", format)}
}

// WriteCSV writes a short preamble naming the experiment and its range,
// a blank line, then the arm table.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)

	preamble := [][]string{
		{"Test Name", doc.Experiment},
		{"Date Range", doc.Range},
		{""},
		Header,
	}
	for _, rec := range preamble {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, r := range Rows(doc.Analysis) {
		if err := cw.Write(r.Cells()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
