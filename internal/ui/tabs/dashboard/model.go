// Package dashboard provides the main usage tab of the Watercare Dashboard TUI.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/components"
)

const animationDuration = 1.5 // seconds

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ToggleDetails key.Binding
	Top           key.Binding
	Refresh       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleDetails: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle details"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "fetch now"),
		),
	}
}

// AnimationState eases the gauge from its previous reading to the new one.
type AnimationState struct {
	StartTime time.Time
	Current   float64
	Target    float64
	Start     float64
}

// step advances the animation and reports whether it is still moving.
func (a *AnimationState) step(now time.Time) bool {
	if a.Current == a.Target {
		return false
	}
	elapsed := now.Sub(a.StartTime).Seconds()
	if elapsed >= animationDuration {
		a.Current = a.Target
		return false
	}
	progress := elapsed / animationDuration
	ease := 1.0 - (1.0-progress)*(1.0-progress)
	a.Current = a.Start + (a.Target-a.Start)*ease
	return true
}

// retarget starts a new animation when the target changes.
func (a *AnimationState) retarget(target float64, now time.Time) bool {
	if target == a.Target {
		return a.Current != a.Target
	}
	a.Start = a.Current
	a.Target = target
	a.StartTime = now
	return true
}

// Model represents the dashboard tab state.
type Model struct {
	state       *app.State
	spinner     components.LoadingSpinner
	keys        keyMap
	viewport    viewport.Model
	gauge       components.UsageGauge
	reading     AnimationState
	threshold   float64
	width       int
	height      int
	showDetails bool
}

// New creates a new dashboard model. A positive threshold enables the
// usage gauge.
func New(state *app.State, threshold float64) *Model {
	return &Model{
		state:     state,
		spinner:   components.NewSpinner("Loading usage..."),
		gauge:     components.NewUsageGauge(30),
		threshold: threshold,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		if cmd := m.handleAnimationTick(time.Time(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case app.StateLoadedMsg, app.UsageRefreshedMsg, app.ServiceEventMsg, app.TabSwitchMsg:
		if m.syncReading(time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(now time.Time) tea.Cmd {
	m.syncReading(now)
	if m.reading.step(now) || m.state.IsInitialLoading() {
		return animationTickCmd()
	}
	return nil
}

// syncReading points the animation at the current state value.
func (m *Model) syncReading(now time.Time) bool {
	usage := m.state.GetUsage()
	if usage == nil || !usage.HasState {
		return false
	}
	return m.reading.retarget(usage.State, now)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ToggleDetails):
		m.showDetails = !m.showDetails
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleDetails,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleDetails, m.keys.Top},
		{m.keys.Refresh},
	}
}
