package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	if m.loading && !m.loaded {
		return m.renderLoading()
	}
	if m.errorMsg != "" {
		return m.renderError()
	}
	if len(m.statistics) == 0 {
		return m.renderEmpty()
	}

	sections := []string{m.renderHeader(), m.renderSummary()}
	if m.summary.HasData() {
		sections = append(sections, m.renderChart())
		if m.summary.SubDaily {
			sections = append(sections, m.renderHourlyPattern())
		}
		if m.summary.Daily {
			sections = append(sections, m.renderWeeklyPattern())
		}
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(styles.HelpStyle.Render("Loading history data..."))
}

func (m *Model) renderError() string {
	content := fmt.Sprintf("%s %s",
		styles.ErrorTextStyle.Render("Error:"),
		m.errorMsg,
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderEmpty() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("History"),
		"",
		styles.HelpStyle.Render("No statistics stored yet."),
		styles.HelpStyle.Render("Points appear after the first successful fetch."),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) unit() string {
	if meta, ok := m.selectedMeta(); ok {
		return meta.Unit
	}
	return statistics.UnitLitres
}

// formatValue renders v in the unit of the selected statistic.
func (m *Model) formatValue(v float64) string {
	if m.unit() == statistics.UnitNZD {
		return styles.CostStyle.Render(fmt.Sprintf("$%.2f", v))
	}
	return styles.ValueStyle.Render(fmt.Sprintf("%.0f L", v))
}

func (m *Model) renderHeader() string {
	name := m.selected
	if meta, ok := m.selectedMeta(); ok {
		name = meta.Name
	}
	title := styles.TitleStyle.Render(name)

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.String()))

	index := 0
	for i, meta := range m.statistics {
		if meta.StatisticID == m.selected {
			index = i + 1
		}
	}
	statIndicator := rangeStyle.Render(fmt.Sprintf("[s] %d/%d", index, len(m.statistics)))

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator, " ", statIndicator)

	subtitle := styles.HelpStyle.Render(m.selected)
	if !m.lastRefresh.IsZero() {
		subtitle += styles.HelpStyle.Render("  · loaded " + m.lastRefresh.Format("15:04:05"))
	}
	if m.loading {
		subtitle += styles.HelpStyle.Render("  · reloading")
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) card(icon, title string, body []string) string {
	cardWidth := max(m.width-6, 40)
	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	rows := append([]string{fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render(title))}, body...)
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderSummary() string {
	s := m.summary
	if !s.HasData() {
		return m.card("Σ", "Summary", []string{styles.HelpStyle.Render("  No points in this range")})
	}

	row := func(label, value string) string {
		return "  " + styles.LabelStyle.Render(label) + value
	}
	return m.card("Σ", "Summary", []string{
		row("Total", m.formatValue(s.Total)),
		row("Average per point", m.formatValue(s.Average)),
		row("Peak", fmt.Sprintf("%s on %s", m.formatValue(s.Peak), s.PeakAt.Local().Format("Jan 2, 2006 15:04"))),
		row("Points", fmt.Sprintf("%d", s.Count)),
		row("Data", fmt.Sprintf("%s → %s",
			s.First.Local().Format("Jan 2, 2006"),
			s.Last.Local().Format("Jan 2, 2006"))),
	})
}

func (m *Model) renderChart() string {
	cardWidth := max(m.width-6, 40)
	chartWidth := max(cardWidth-16, 30)

	caption := fmt.Sprintf("%d points · %s", m.summary.Count, m.timeRange.String())

	// Cost statistics are plotted as their running total only.
	if m.unit() == statistics.UnitNZD {
		chart := components.RenderLineChart(m.summary.Sums, chartWidth, 8, caption+" · NZD")
		rows := []string{""}
		for line := range strings.SplitSeq(chart, "\n") {
			rows = append(rows, "  "+line)
		}
		return m.card("▤", "Cost Over Time", rows)
	}

	chart := components.RenderUsageChart(m.summary.States, m.summary.Sums, chartWidth, 8, caption)

	var rows []string
	rows = append(rows, "")
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
		{Label: "Per point", Color: styles.Water},
		{Label: "Cumulative (scaled)", Color: styles.Money},
	}))

	return m.card("▤", "Usage Over Time", rows)
}

func (m *Model) renderHourlyPattern() string {
	s := m.summary
	return m.card("◷", "Hourly Pattern", []string{
		"",
		"  " + components.RenderHourlyHeatmap(s.HourProfile),
		"",
		fmt.Sprintf("  Peak: %s (avg %s)",
			lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).
				Render(fmt.Sprintf("%02d:00-%02d:00", s.PeakHour, (s.PeakHour+1)%24)),
			m.formatValue(s.HourProfile[s.PeakHour]),
		),
	})
}

func (m *Model) renderWeeklyPattern() string {
	s := m.summary
	cardWidth := max(m.width-6, 40)

	names := make([]string, 7)
	for d := range names {
		names[d] = time.Weekday(d).String()[:3]
	}

	rows := []string{""}
	for line := range strings.SplitSeq(components.RenderBarChart(s.WeekdayProfile, names, cardWidth-12), "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows,
		"",
		"  "+components.RenderWeeklyPattern(s.WeekdayProfile, names),
		"",
		fmt.Sprintf("  Peak day: %s (avg %s per day)",
			lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Render(s.PeakWeekday.String()),
			m.formatValue(s.WeekdayProfile[s.PeakWeekday]),
		),
	)
	return m.card("▦", "Weekly Pattern", rows)
}
