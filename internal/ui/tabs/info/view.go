package info

import (
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
	"github.com/j-veylop/watercare-dashboard-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderTariffCard(),
		m.renderSessionCard(),
		m.renderRunsCard(),
		m.renderAboutCard(),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, session and refresh history")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func (m *Model) card(title string, rows []string) string {
	body := append([]string{styles.CardTitleStyle.Render(title)}, rows...)
	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, body...),
	)
}

// renderConfigRow renders a configuration key-value row.
func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func (m *Model) renderConfigCard() string {
	if m.services == nil || m.services.Config() == nil {
		return m.card("Configuration", []string{styles.HelpStyle.Render("Configuration not loaded")})
	}
	cfg := m.services.Config()

	alert := "off"
	if cfg.UsageAlertLitres > 0 {
		alert = fmt.Sprintf("%.0f L", cfg.UsageAlertLitres)
	}
	metricsAddr := cfg.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = "off"
	}

	return m.card("Configuration", []string{
		m.renderConfigRow("Account", cfg.Username),
		m.renderConfigRow("Endpoint", m.endpoint().DisplayName()),
		m.renderConfigRow("Refresh", cfg.RefreshInterval.String()),
		m.renderConfigRow("Lookback", fmt.Sprintf("%d days", cfg.LookbackDays)),
		m.renderConfigRow("Usage alert", alert),
		m.renderConfigRow("Database", cfg.DatabasePath),
		m.renderConfigRow("Options file", m.services.OptionsPath()),
		m.renderConfigRow("Log file", cfg.LogPath),
		m.renderConfigRow("Metrics", metricsAddr),
		m.renderConfigRow("Mirror", redactURL(cfg.PostgresURL)),
	})
}

func (m *Model) endpoint() models.EndpointKind {
	if ep := m.state.GetOptions().Endpoint; ep != "" {
		return ep
	}
	if m.services != nil {
		return m.services.Options().Endpoint
	}
	return models.DefaultEndpoint
}

// redactURL hides the password of a connection string.
func redactURL(raw string) string {
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "configured"
	}
	return u.Redacted()
}

func (m *Model) renderTariffCard() string {
	rates := m.state.GetOptions().Rates
	if rates.Zero() && m.services != nil {
		rates = m.services.Options().Rates
	}
	return m.card("Tariff", []string{
		m.renderConfigRow("Water", fmt.Sprintf("$%.3f / kL", rates.ConsumptionRate)),
		m.renderConfigRow("Wastewater", fmt.Sprintf("$%.3f / kL", rates.WastewaterRate)),
		m.renderConfigRow("Wastewater ratio", strconv.FormatFloat(rates.WastewaterRatio, 'f', -1, 64)),
		m.renderConfigRow("Fixed charge", fmt.Sprintf("$%.2f / year", rates.AnnualLineCharge)),
	})
}

func (m *Model) renderSessionCard() string {
	s := m.session
	if !s.Authenticated {
		return m.card("Session", []string{styles.HelpStyle.Render("Not logged in")})
	}
	return m.card("Session", []string{
		m.renderConfigRow("Account number", s.AccountNumber),
		m.renderConfigRow("Logged in", formatTime(s.LoggedInAt)),
		m.renderConfigRow("Access expires", formatTime(s.AccessExpiry)),
		m.renderConfigRow("Refresh expires", formatTime(s.RefreshExpiry)),
		m.renderConfigRow("Tokens", tokenStatus(s.Fresh)),
	})
}

func tokenStatus(fresh bool) string {
	if fresh {
		return styles.SuccessTextStyle.Render("fresh")
	}
	return styles.WarningTextStyle.Render("renewal due")
}

func (m *Model) renderRunsCard() string {
	if m.runsErr != nil {
		return m.card("Recent Updates", []string{styles.ErrorTextStyle.Render(m.runsErr.Error())})
	}
	if len(m.runs) == 0 {
		return m.card("Recent Updates", []string{styles.HelpStyle.Render("No updates recorded")})
	}

	header := styles.TableHeaderStyle.Render(fmt.Sprintf("%-17s %-8s %8s %7s", "Started", "Status", "Duration", "Points"))
	rows := []string{header}
	for _, run := range m.runs {
		line := fmt.Sprintf("%-17s %s %8s %7d",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			styles.GetRunStyle(run.Failed()).Width(8).Render(run.Status),
			(time.Duration(run.DurationMs) * time.Millisecond).Round(time.Millisecond*100).String(),
			run.Points,
		)
		rows = append(rows, styles.TableCellStyle.Render(line))
		if run.Error != "" {
			rows = append(rows, styles.ErrorTextStyle.Render("  ╰─ "+run.Error))
		}
	}
	return m.card("Recent Updates", rows)
}

func (m *Model) renderAboutCard() string {
	return m.card("About Watercare Dashboard TUI", []string{
		m.renderConfigRow("Version", version.GetVersion()),
		m.renderConfigRow("Build Date", version.GetDate()),
		m.renderConfigRow("Git Commit", version.GetCommit()),
		m.renderConfigRow("Go Version", runtime.Version()),
		m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
