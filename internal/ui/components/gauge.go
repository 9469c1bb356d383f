package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

// UsageGauge renders a reading against the usage alert threshold.
type UsageGauge struct {
	progress progress.Model
}

// NewUsageGauge creates a gauge that shades from calm to alert as the
// reading approaches the threshold.
func NewUsageGauge(width int) UsageGauge {
	p := progress.New(
		progress.WithScaledGradient("#5fd7ff", "#ff5f5f"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return UsageGauge{progress: p}
}

// Fraction returns the reading as a share of the threshold, capped to [0, 1].
func Fraction(litres, threshold float64) float64 {
	if threshold <= 0 || litres <= 0 {
		return 0
	}
	f := litres / threshold
	if f > 1 {
		return 1
	}
	return f
}

// View renders the gauge with a label and the reading in litres.
// A threshold of zero disables the bar and shows only the reading.
func (g UsageGauge) View(label string, litres, threshold float64, width int) string {
	labelStr := styles.LabelStyle.Render(label)
	valueStr := styles.GetUsageStyle(litres, threshold).Render(fmt.Sprintf("%.0f L", litres))

	if threshold <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, valueStr)
	}

	barWidth := width - 40
	if barWidth < 10 {
		barWidth = 10
	}
	g.progress.Width = barWidth

	bar := g.progress.ViewAs(Fraction(litres, threshold))
	limit := styles.HelpStyle.Render(fmt.Sprintf(" / %.0f L", threshold))

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", valueStr, limit)
}

// RenderShareBar renders a single line split between named parts,
// e.g. the components of a bill.
func RenderShareBar(parts []float64, colors []lipgloss.Color, width int) string {
	total := 0.0
	for _, p := range parts {
		if p > 0 {
			total += p
		}
	}
	if total == 0 || width <= 0 {
		return ""
	}

	var out string
	used := 0
	for i, p := range parts {
		if p <= 0 {
			continue
		}
		n := int(p / total * float64(width))
		if i == len(parts)-1 {
			n = width - used
		}
		if n <= 0 {
			continue
		}
		used += n
		color := styles.Subtle
		if i < len(colors) {
			color = colors[i]
		}
		out += lipgloss.NewStyle().Foreground(color).Render(repeatRune('█', n))
	}
	return out
}

func repeatRune(r rune, n int) string {
	buf := make([]rune, n)
	for i := range buf {
		buf[i] = r
	}
	return string(buf)
}
