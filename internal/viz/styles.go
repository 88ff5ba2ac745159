package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("#444466"))

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Label = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888899"))

	Value = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ccff")).
		Bold(true)

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	OK = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ff88"))

	Warn = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffaa00"))

	Failed = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ff4444"))
)

// Field is one labelled line of a report.
type Field struct {
	Label string
	Value float64
	Unit  string
}

// Report renders a titled panel of aligned label/value lines. Non-finite
// values are shown in the failure style.
func Report(title string, fields []Field) string {
	width := 0
	for _, f := range fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	var b strings.Builder
	b.WriteString(Title.Render(title))
	for _, f := range fields {
		b.WriteString("\n")
		b.WriteString(Label.Render(fmt.Sprintf("%-*s", width, f.Label)))
		b.WriteString("  ")
		b.WriteString(formatValue(f.Value))
		if f.Unit != "" {
			b.WriteString(" ")
			b.WriteString(Subtle.Render(f.Unit))
		}
	}
	return Panel.Render(b.String())
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Failed.Render(fmt.Sprint(v))
	case v != 0 && (math.Abs(v) >= 1e6 || math.Abs(v) < 1e-3):
		return Value.Render(fmt.Sprintf("%.4e", v))
	default:
		return Value.Render(fmt.Sprintf("%.4f", v))
	}
}

// Status summarizes a batch outcome in one styled line.
func Status(points, failed int) string {
	switch {
	case failed == 0:
		return OK.Render(fmt.Sprintf("%d points ok", points))
	case failed == points:
		return Failed.Render(fmt.Sprintf("all %d points failed", points))
	default:
		return Warn.Render(fmt.Sprintf("%d of %d points failed", failed, points))
	}
}
