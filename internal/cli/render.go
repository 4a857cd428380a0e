package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/report"
	"github.com/abverdict/abverdict/internal/stats"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	wonStyle          = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	lostStyle         = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	inconclusiveStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorOrange)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	width := 55
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows. The first
// column is left-aligned, the rest right-aligned.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + pad(h, widths[i], false) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(valueStyle.Render(" " + pad(cell, widths[i], i > 0) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╰", "┴", "╯")
	return b.String()
}

// pad pads s to width display cells.
func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func renderVerdict(v stats.Verdict) string {
	label := strings.ToUpper(string(v))
	switch v {
	case stats.VerdictWon:
		return wonStyle.Render(label)
	case stats.VerdictLost:
		return lostStyle.Render(label)
	default:
		return inconclusiveStyle.Render(label)
	}
}

// renderResult prints the arms table, the impact table and the verdicts.
func renderResult(w io.Writer, title string, res *experiment.Result) {
	a := res.Analysis

	fmt.Fprintln(w, RenderTitle(title))
	if res.Consolidated != nil {
		fmt.Fprintf(w, "  %s %s (%d periods)\n",
			mutedStyle.Render("Range:"), res.Consolidated.DateRange, res.Consolidated.PeriodCount)
		for _, warning := range res.Consolidated.Warnings {
			fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("!"), warning)
		}
	}
	fmt.Fprintf(w, "  %s %.1f%%   %s %s\n\n",
		mutedStyle.Render("Threshold:"), a.ConfidenceThreshold,
		mutedStyle.Render("Iterations:"), formatNumber(a.Iterations))

	rows := report.Rows(a)
	t := Table{Title: "Arms", Headers: report.Header}
	for _, r := range rows {
		cells := r.Cells()
		cells[1] = formatNumber(r.Trials)
		cells[2] = formatNumber(r.Successes)
		t.Rows = append(t.Rows, cells)
	}
	fmt.Fprint(w, RenderTable(t))

	impact := Table{
		Title:   "Projected impact",
		Headers: []string{"Variant", "Abs. Lift", "Rel. Lift", "Daily", "Monthly", "Yearly"},
	}
	for _, v := range a.Variants {
		impact.Rows = append(impact.Rows, []string{
			v.Name,
			fmt.Sprintf("%+.4f", v.Impact.AbsoluteLift),
			fmt.Sprintf("%+.2f%%", v.Impact.RelativeLiftPercent),
			fmt.Sprintf("%+.1f", v.Impact.DailyExtra),
			fmt.Sprintf("%+.0f", v.Impact.MonthlyExtra),
			fmt.Sprintf("%+.0f", v.Impact.YearlyExtra),
		})
	}
	fmt.Fprint(w, RenderTable(impact))

	fmt.Fprintln(w)
	for _, pv := range res.Classification.PerVariant {
		fmt.Fprintf(w, "  %-16s %s\n", pv.Name, renderVerdict(pv.Verdict))
	}
	fmt.Fprintf(w, "  %-16s %s\n", "Overall", renderVerdict(res.Classification.Overall))
}
