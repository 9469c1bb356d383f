// Package history provides the history tab for browsing stored statistics.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
)

const loadTimeout = 10 * time.Second

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange   key.Binding
	NextStatistic key.Binding
	PrevStatistic key.Binding
	Reload        key.Binding
	Up            key.Binding
	Down          key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		NextStatistic: key.NewBinding(
			key.WithKeys("s", "right", "l"),
			key.WithHelp("s/→", "next statistic"),
		),
		PrevStatistic: key.NewBinding(
			key.WithKeys("S", "left", "h"),
			key.WithHelp("S/←", "prev statistic"),
		),
		Reload: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reload"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg is sent when history data is loaded.
type historyLoadedMsg struct {
	statistics []models.StatisticMetadata
	selected   string
	points     []models.StatisticPoint
}

// historyErrorMsg is sent when there's an error loading history.
type historyErrorMsg struct {
	err string
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	timeRange  models.TimeRange
	statistics []models.StatisticMetadata
	selected   string
	summary    Summary

	loading     bool
	loaded      bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:     state,
		services:  svc,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.TimeRange30Days,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.loadHistoryCmd()
}

// loadHistoryCmd lists the stored statistics and loads the selected one.
// With nothing selected it picks the consumption statistic of the
// configured endpoint, falling back to the first stored.
func (m *Model) loadHistoryCmd() tea.Cmd {
	svc := m.services
	selected := m.selected
	timeRange := m.timeRange
	endpoint := m.state.GetOptions().Endpoint

	return func() tea.Msg {
		if svc == nil {
			return historyErrorMsg{err: "Services not initialized"}
		}

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		metas, err := svc.Statistics(ctx)
		if err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		if len(metas) == 0 {
			return historyLoadedMsg{}
		}

		selected = pickStatistic(metas, selected, endpoint)
		points, err := svc.History(ctx, selected, timeRange)
		if err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		return historyLoadedMsg{statistics: metas, selected: selected, points: points}
	}
}

func pickStatistic(metas []models.StatisticMetadata, current string, endpoint models.EndpointKind) string {
	for _, meta := range metas {
		if meta.StatisticID == current {
			return current
		}
	}
	if endpoint != "" {
		preferred := statistics.StatisticID(endpoint, statistics.TypeConsumption)
		for _, meta := range metas {
			if meta.StatisticID == preferred {
				return preferred
			}
		}
	}
	return metas[0].StatisticID
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.statistics = msg.statistics
		m.selected = msg.selected
		m.summary = Summarize(msg.points, time.Local)
		m.loading = false
		m.loaded = true
		m.lastRefresh = time.Now()
		m.errorMsg = ""
		m.state.SetLoading(app.ResourceHistory, false)

	case historyErrorMsg:
		m.loading = false
		m.errorMsg = msg.err
		m.state.SetLoading(app.ResourceHistory, false)
		cmds = append(cmds, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		})

	case app.StatisticsImportedMsg, app.OptionsChangedMsg:
		cmds = append(cmds, m.reload())

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory {
			cmds = append(cmds, m.reload())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
	}

	return m, tea.Batch(cmds...)
}

// reload starts a load unless one is already running.
func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	m.loading = true
	m.state.SetLoading(app.ResourceHistory, true)
	return m.loadHistoryCmd()
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		return m.reload()

	case key.Matches(msg, m.keys.NextStatistic):
		return m.cycleStatistic(1)

	case key.Matches(msg, m.keys.PrevStatistic):
		return m.cycleStatistic(-1)

	case key.Matches(msg, m.keys.Reload):
		return m.reload()

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

func (m *Model) cycleStatistic(delta int) tea.Cmd {
	n := len(m.statistics)
	if n < 2 {
		return nil
	}
	idx := 0
	for i, meta := range m.statistics {
		if meta.StatisticID == m.selected {
			idx = i
			break
		}
	}
	m.selected = m.statistics[(idx+delta+n)%n].StatisticID
	return m.reload()
}

// selectedMeta returns the metadata of the selected statistic.
func (m *Model) selectedMeta() (models.StatisticMetadata, bool) {
	for _, meta := range m.statistics {
		if meta.StatisticID == m.selected {
			return meta, true
		}
	}
	return models.StatisticMetadata{}, false
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.NextStatistic,
		m.keys.Reload,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.Reload},
		{m.keys.NextStatistic, m.keys.PrevStatistic},
		{m.keys.Up, m.keys.Down},
	}
}
