package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/prltutor/internal/ui/theme"
)

// ProgressBar displays a horizontal progress bar.
type ProgressBar struct {
	Label       string
	Percent     float64
	ShowPercent bool
	Width       int

	// Marks are fractions of the bar drawn as ticks, e.g. promotion and
	// demotion thresholds.
	Marks []float64
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(label string, percent float64, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Percent:     percent,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // " 100%"
	}

	barWidth := p.Width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := min(max(int(float64(barWidth)*p.Percent), 0), barWidth)

	ticks := make(map[int]bool, len(p.Marks))
	for _, m := range p.Marks {
		if m > 0 && m < 1 {
			ticks[int(float64(barWidth)*m)] = true
		}
	}

	var bar strings.Builder
	for i := range barWidth {
		cell := " "
		if ticks[i] {
			cell = "│"
		}
		if i < filled {
			bar.WriteString(theme.ProgressFilled.Render(cell))
		} else {
			bar.WriteString(theme.ProgressEmpty.Render(cell))
		}
	}
	result += bar.String()

	if p.ShowPercent {
		result += lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf("  %d%%", int(p.Percent*100)))
	}

	return result
}
