package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

// navbarHeight is the navbar plus the vertical margins of the tab documents.
const navbarHeight = 5

// View renders the application UI.
func (m *Model) View() string {
	if !m.ready {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.spinner.View() + " Loading...")
	}

	main := m.renderNavbar() + "\n"
	if tab := m.activeTabModel(); tab != nil {
		main += tab.View()
	} else {
		main += m.renderPlaceholder()
	}

	if m.showHelp {
		help := m.renderHelp()
		x := (m.width - lipgloss.Width(help)) / 2
		y := (m.height - lipgloss.Height(help)) / 2
		main = placeOverlay(main, help, x, y)
	}

	if toasts := m.renderNotifications(); toasts != "" {
		x := m.width - lipgloss.Width(toasts) - 2
		main = placeOverlay(main, toasts, x, 2)
	}

	return main
}

// placeOverlay draws overlay over base with its top-left corner at x, y.
// Base is extended with blank lines when the overlay reaches past its end.
func placeOverlay(base, overlay string, x, y int) string {
	x, y = max(x, 0), max(y, 0)
	baseLines := strings.Split(base, "\n")
	width := lipgloss.Width(overlay)

	for i, line := range strings.Split(overlay, "\n") {
		row := y + i
		for row >= len(baseLines) {
			baseLines = append(baseLines, "")
		}
		left := ansi.Truncate(baseLines[row], x, "")
		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		right := ansi.TruncateLeft(baseLines[row], x+width, "")
		baseLines[row] = left + line + right
	}

	return strings.Join(baseLines, "\n")
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, tabCount)
	for i := range tabCount {
		label := fmt.Sprintf("%d %s", i+1, TabID(i))
		if TabID(i) == m.activeTab {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	status := styles.HelpStyle.Render(m.status())
	gap := max(m.width-lipgloss.Width(bar)-lipgloss.Width(status)-1, 1)

	return styles.NavbarStyle.Width(m.width).Render(bar + strings.Repeat(" ", gap) + status)
}

// status summarises the endpoint and the age of the shown reading.
func (m *Model) status() string {
	endpoint := m.state.GetOptions().Endpoint
	name := "Watercare"
	if endpoint != "" {
		name = endpoint.DisplayName()
	}

	if m.state.IsLoading(ResourceUsage) {
		return fmt.Sprintf("%s %s · fetching", m.spinner.View(), name)
	}
	updated := m.state.GetLastUpdated()
	if updated.IsZero() || m.state.GetUsage() == nil {
		return name + " · no data"
	}
	return fmt.Sprintf("%s · updated %s ago", name, time.Since(updated).Round(time.Second))
}

func (m *Model) renderNotifications() string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return ""
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		style, prefix := styles.NotificationInfoStyle, "i"
		switch n.Type {
		case NotificationSuccess:
			style, prefix = styles.NotificationSuccessStyle, "✓"
		case NotificationError:
			style, prefix = styles.NotificationErrorStyle, "✗"
		case NotificationWarning:
			style, prefix = styles.NotificationWarningStyle, "!"
		case NotificationLoading:
			prefix = m.spinner.View()
		}
		toasts = append(toasts, style.Render(prefix+" "+n.Message))
	}

	return lipgloss.JoinVertical(lipgloss.Right, toasts...)
}

func (m *Model) renderHelp() string {
	lines := []string{styles.TitleStyle.Render("Keyboard Shortcuts")}

	lines = append(lines, styles.SubTitleStyle.Render("Global"))
	lines = append(lines, helpRows(m.keymap.FullHelp())...)

	if tab := m.activeTabModel(); tab != nil {
		if rows := helpRows(tab.FullHelp()); len(rows) > 0 {
			lines = append(lines, "", styles.SubTitleStyle.Render(m.activeTab.String()+" Tab"))
			lines = append(lines, rows...)
		}
	}

	lines = append(lines, "", styles.HelpStyle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func helpRows(groups [][]key.Binding) []string {
	var rows []string
	for _, group := range groups {
		for _, b := range group {
			if !b.Enabled() {
				continue
			}
			rows = append(rows, "  "+
				styles.HelpKeyStyle.Width(12).Render(b.Help().Key)+
				styles.HelpDescStyle.Render(b.Help().Desc))
		}
	}
	return rows
}

func (m *Model) renderPlaceholder() string {
	return lipgloss.NewStyle().Padding(1, 2).Render(
		styles.HelpStyle.Render(m.activeTab.String() + " is starting..."),
	)
}
