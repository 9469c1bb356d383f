// Package info provides the info tab for the Watercare Dashboard TUI.
package info

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/auth"
)

const recentRunLimit = 8

// keyMap defines the key bindings specific to the info tab.
type keyMap struct {
	Reload key.Binding
	Up     key.Binding
	Down   key.Binding
}

// defaultKeyMap returns the default key bindings for the info tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Reload: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reload runs"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

type runsLoadedMsg struct {
	runs    []models.RefreshRun
	session auth.Snapshot
	err     error
}

// Model represents the info tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	runs    []models.RefreshRun
	session auth.Snapshot
	runsErr error
}

// New creates a new info model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:    state,
		services: svc,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init loads the refresh history and session.
func (m *Model) Init() tea.Cmd {
	return m.loadRunsCmd()
}

func (m *Model) loadRunsCmd() tea.Cmd {
	svc := m.services
	if svc == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runs, err := svc.RecentRuns(ctx, recentRunLimit)
		return runsLoadedMsg{runs: runs, session: svc.Session(), err: err}
	}
}

// Update handles messages for the info tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		m.runs = msg.runs
		m.session = msg.session
		m.runsErr = msg.err

	case app.TabSwitchMsg:
		if msg.Tab == app.TabInfo {
			return m, m.loadRunsCmd()
		}

	case app.ServiceEventMsg:
		if _, ok := msg.Event.(services.StateUpdatedEvent); ok {
			return m, m.loadRunsCmd()
		}

	case app.UsageRefreshedMsg:
		return m, m.loadRunsCmd()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Reload) {
			return m, m.loadRunsCmd()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// SetSize sets the available size for the info tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Reload,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Reload},
		{m.keys.Up, m.keys.Down},
	}
}
