package dashboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/usage"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

// detailPrefixes are the flattened provider sections shown in the details card.
var detailPrefixes = []string{"statistics.", "efficiency.", "account."}

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.renderLoading()
	}

	cardWidth := max(m.width-6, 40)
	usageState := m.state.GetUsage()

	sections := []string{
		m.renderTitle(usageState),
		m.renderReading(usageState, cardWidth),
	}
	if usageState != nil {
		if costs := m.renderCosts(usageState.Attributes, cardWidth); costs != "" {
			sections = append(sections, costs)
		}
	}
	sections = append(sections, m.renderLastRun(cardWidth))
	if m.showDetails && usageState != nil {
		sections = append(sections, m.renderDetails(usageState.Attributes, cardWidth))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
}

func (m *Model) renderTitle(state *models.UsageState) string {
	title := styles.TitleStyle.Render("Watercare Dashboard")

	endpoint := m.state.GetOptions().Endpoint
	if state != nil && state.Endpoint != "" {
		endpoint = state.Endpoint
	}
	sub := "Household water usage"
	if endpoint != "" {
		sub = fmt.Sprintf("%s usage", endpoint.DisplayName())
	}
	if state != nil && !state.UpdatedAt.IsZero() {
		sub += " · updated " + state.UpdatedAt.Local().Format("Mon 2 Jan 15:04")
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render(sub), "")
}

func cardHeader(icon, title string) string {
	return fmt.Sprintf("%s %s",
		lipgloss.NewStyle().Foreground(styles.Primary).Render(icon),
		styles.CardTitleStyle.Render(title))
}

func row(label, value string) string {
	return "  " + styles.LabelStyle.Render(label) + value
}

func (m *Model) renderReading(state *models.UsageState, width int) string {
	rows := []string{cardHeader("◈", "Latest Reading")}

	if state == nil || !state.HasState {
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows,
			fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No usage data yet")),
			"",
			styles.InfoTextStyle.Render("  ╰─▶ Press r to fetch now"),
		)
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	attrs := state.Attributes
	reading := m.reading.Current
	if reading == 0 && m.reading.Target == 0 {
		reading = state.State
	}
	rows = append(rows, "  "+m.gauge.View(periodLabel(state.Endpoint), reading, m.threshold, width-8), "")
	if spark := m.renderRecent(width); spark != "" {
		rows = append(rows, row("Recent buckets", spark))
	}

	if start, ok := attrs[usage.AttrLastPeriodStart]; ok {
		rows = append(rows, row("Period start", formatStamp(start)))
	}
	if days, ok := attrs[usage.AttrPeriodDays]; ok {
		rows = append(rows, row("Period days", days))
	}
	if y, ok := attrs[usage.AttrYesterdayLitres]; ok {
		rows = append(rows, row("Yesterday", litres(y, m.threshold)))
	}
	if to, ok := attrs[usage.AttrBillingTo]; ok {
		from := attrs[usage.AttrBillingFrom]
		if from == "" {
			from = "?"
		}
		rows = append(rows, row("Billing period", fmt.Sprintf("%s → %s", from, to)))
	}
	if total, ok := attrs[usage.AttrTotalLitresWindow]; ok {
		window := fmt.Sprintf("%s over %s buckets", litres(total, 0), attrs[usage.AttrBucketCount])
		rows = append(rows, row("Fetched window", window))
	}
	if skipped := attrs[usage.AttrSkippedRecords]; skipped != "" && skipped != "0" {
		rows = append(rows, row("Skipped records", styles.WarningTextStyle.Render(skipped)))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderRecent draws the last imported window, coloured against the alert
// threshold when one is set.
func (m *Model) renderRecent(width int) string {
	recent := m.state.GetRecentUsage()
	if len(recent) == 0 {
		return ""
	}
	w := min(len(recent), max(width-24, 10))
	if m.threshold > 0 {
		return components.RenderThresholdSparkline(recent, w, m.threshold)
	}
	return components.RenderSparkline(recent, w)
}

func periodLabel(endpoint models.EndpointKind) string {
	switch endpoint.Granularity() {
	case models.GranularityHour:
		return "Last hour"
	case models.GranularityDay:
		return "Last day"
	default:
		return "Last period"
	}
}

func (m *Model) renderCosts(attrs map[string]string, width int) string {
	total, ok := parseAttr(attrs, usage.AttrCostTotal)
	if !ok {
		return ""
	}
	consumption, _ := parseAttr(attrs, usage.AttrCostConsumption)
	wastewater, _ := parseAttr(attrs, usage.AttrCostWastewater)
	lineCharge, _ := parseAttr(attrs, usage.AttrCostLineCharge)

	rows := []string{
		cardHeader("$", "Estimated Cost"),
		row("Water", money(consumption)),
		row("Wastewater", money(wastewater)),
		row("Fixed charge", money(lineCharge)),
		row("Total", styles.CostStyle.Bold(true).Render(fmt.Sprintf("$%.2f", total))),
	}

	bar := components.RenderShareBar(
		[]float64{consumption, wastewater, lineCharge},
		[]lipgloss.Color{styles.Water, styles.Secondary, styles.Money},
		max(width-10, 10),
	)
	if bar != "" {
		rows = append(rows, "", "  "+bar, "  "+components.RenderLegend([]components.LegendItem{
			{Label: "Water", Color: styles.Water},
			{Label: "Wastewater", Color: styles.Secondary},
			{Label: "Fixed", Color: styles.Money},
		}))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderLastRun(width int) string {
	rows := []string{cardHeader("⟳", "Last Update")}

	run := m.state.GetLastRun()
	if run == nil {
		rows = append(rows, styles.HelpStyle.Render("  No updates recorded"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	status := styles.GetRunStyle(run.Failed()).Render(strings.ToUpper(run.Status))
	rows = append(rows,
		row("Status", status),
		row("Started", run.StartedAt.Local().Format("2006-01-02 15:04:05")),
		row("Duration", (time.Duration(run.DurationMs)*time.Millisecond).String()),
		row("Points imported", strconv.Itoa(run.Points)),
	)
	if run.Error != "" {
		rows = append(rows, row("Error", styles.ErrorTextStyle.Render(run.Error)))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDetails(attrs map[string]string, width int) string {
	rows := []string{cardHeader("≡", "Provider Details")}

	keys := lo.Filter(lo.Keys(attrs), func(k string, _ int) bool {
		return lo.SomeBy(detailPrefixes, func(p string) bool { return strings.HasPrefix(k, p) })
	})
	sort.Strings(keys)

	if len(keys) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No additional details"))
	}
	for _, k := range keys {
		v := attrs[k]
		if v == "" {
			v = styles.HelpStyle.Render("-")
		}
		rows = append(rows, "  "+styles.LabelStyle.Width(36).Render(k)+v)
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func parseAttr(attrs map[string]string, key string) (float64, bool) {
	raw, ok := attrs[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func litres(raw string, threshold float64) string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return styles.GetUsageStyle(v, threshold).Render(fmt.Sprintf("%.0f L", v))
}

func money(v float64) string {
	return styles.CostStyle.Render(fmt.Sprintf("$%.2f", v))
}

func formatStamp(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("Mon 2 Jan 2006 15:04")
}
