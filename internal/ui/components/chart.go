// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// HeatmapBlocks are Unicode block characters for heatmaps (low to high intensity).
var HeatmapBlocks = []rune{'░', '▒', '▓', '█'}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChart(width, height)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.DarkCyan),
	)
}

// RenderUsageChart plots per-bucket litres against the running total.
// The running total is rescaled onto the litres axis so both lines share a plot.
func RenderUsageChart(litres, cumulative []float64, width, height int, caption string) string {
	if len(litres) == 0 && len(cumulative) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChart(width, height)

	n := max(len(litres), len(cumulative))
	a := make([]float64, n)
	b := make([]float64, n)
	copy(a, litres)
	copy(b, cumulative)

	peakA, peakB := maxOf(a), maxOf(b)
	if peakB > 0 && peakA > 0 {
		for i := range b {
			b[i] = b[i] / peakB * peakA
		}
	}

	return asciigraph.PlotMany([][]float64{a, b},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(
			asciigraph.DarkCyan,
			asciigraph.Goldenrod,
		),
	)
}

func clampChart(width, height int) (int, int) {
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	return width, height
}

func maxOf(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// scale maps v onto [0, steps-1] relative to peak.
func scale(v, peak float64, steps int) int {
	if peak <= 0 {
		return 0
	}
	idx := int((v / peak) * float64(steps-1))
	if idx >= steps {
		idx = steps - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := maxOf(values)
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		if len(l) > maxLabelLen {
			maxLabelLen = len(l)
		}
	}

	barWidth := width - maxLabelLen - 12
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := int((v / maxVal) * float64(barWidth))
		if barLen < 0 {
			barLen = 0
		}

		bar := lipgloss.NewStyle().Foreground(styles.Water).Render(strings.Repeat("█", barLen))
		lines = append(lines, fmt.Sprintf("%*s │%s %.0f", maxLabelLen, label, bar, v))
	}

	return strings.Join(lines, "\n")
}

// RenderHourlyHeatmap renders one cell per time-of-day bucket. Hourly and
// half-hourly profiles (24 or 48 values) are both accepted.
func RenderHourlyHeatmap(profile []float64) string {
	if len(profile) != 24 && len(profile) != 48 {
		padded := make([]float64, 24)
		copy(padded, profile)
		profile = padded
	}

	peak := maxOf(profile)
	noon := len(profile)/2 - 1

	var result strings.Builder
	result.WriteString("00 ")

	for i, v := range profile {
		intensity := scale(v, peak, len(HeatmapBlocks))

		var style lipgloss.Style
		switch intensity {
		case 0:
			style = lipgloss.NewStyle().Foreground(styles.Subtle)
		case 1:
			style = lipgloss.NewStyle().Foreground(styles.Info)
		case 2:
			style = lipgloss.NewStyle().Foreground(styles.Water)
		default:
			style = lipgloss.NewStyle().Foreground(styles.Warning)
		}

		result.WriteString(style.Render(string(HeatmapBlocks[intensity])))

		if i == noon {
			result.WriteString(" ")
		}
	}

	result.WriteString(" 23")
	return result.String()
}

// RenderWeeklyPattern renders one spark per weekday, Sunday first.
func RenderWeeklyPattern(patterns []float64, dayNames []string) string {
	if len(patterns) != 7 {
		padded := make([]float64, 7)
		copy(padded, patterns)
		patterns = padded
	}
	if len(dayNames) != 7 {
		dayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	}

	peak := maxOf(patterns)
	parts := make([]string, 0, 7)
	for i, v := range patterns {
		spark := string(sparkChars[scale(v, peak, len(sparkChars))])
		parts = append(parts, fmt.Sprintf("%s %s", dayNames[i], spark))
	}

	return strings.Join(parts, " ")
}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	peak := maxOf(values)

	var result strings.Builder
	step := float64(len(values)) / float64(width)
	if step < 1 {
		step = 1
	}

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		result.WriteRune(sparkChars[scale(val, peak, len(sparkChars))])
	}

	return result.String()
}

// RenderThresholdSparkline colors each spark by how close that bucket came
// to the alert threshold.
func RenderThresholdSparkline(values []float64, width int, threshold float64) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	peak := maxOf(values)

	var result strings.Builder
	step := float64(len(values)) / float64(width)
	if step < 1 {
		step = 1
	}

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		spark := string(sparkChars[scale(val, peak, len(sparkChars))])
		result.WriteString(styles.GetUsageStyle(val, threshold).Render(spark))
	}

	return result.String()
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}
