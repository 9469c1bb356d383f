// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabDashboard is the ID for the dashboard tab.
	TabDashboard TabID = iota
	// TabHistory is the ID for the history tab.
	TabHistory
	// TabInfo is the ID for the info tab.
	TabInfo

	tabCount = 3
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabHistory:
		return "History"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Tab, tea.Cmd)
	View() string
	SetSize(width, height int)
	ShortHelp() []key.Binding
	FullHelp() [][]key.Binding
}

// KeyMap holds the global bindings. Scrolling and tab specific actions are
// bound by the tabs themselves.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Help    key.Binding
	Escape  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		Tab2:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "history")),
		Tab3:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "info")),
		NextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "fetch usage now")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.NextTab, k.PrevTab},
		{k.Refresh, k.Help, k.Escape, k.Quit},
	}
}

// Model is the main application model.
type Model struct {
	activeTab TabID
	tabs      []Tab

	state    *State
	services *services.Manager
	commands *Commands
	keymap   KeyMap
	spinner  spinner.Model

	width    int
	height   int
	showHelp bool
	ready    bool

	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model. Tabs are attached afterwards
// with SetTabs.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.ValueStyle

	return &Model{
		activeTab: TabDashboard,
		tabs:      make([]Tab, tabCount),
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(mgr),
		keymap:    DefaultKeyMap(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the state shared with the tabs.
func (m *Model) GetState() *State {
	return m.state
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.commands.Tick(DefaultTickInterval),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services), m.commands.LoadState())
	} else {
		m.state.SetLoading(ResourceInitial, false)
		m.state.ClearLoadingNotification()
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model. Every message is also passed
// to the active tab.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.updateTabSizes()

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, m.commands.Tick(DefaultTickInterval))

	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))

	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}

	case StateLoadedMsg:
		m.state.SetLoading(ResourceInitial, false)
		m.state.SetUsage(msg.Usage)
		m.state.SetLastRun(msg.LastRun)
		m.state.SetOptions(msg.Options)
		m.stopLoading(ResourceInitial)

	case UsageRefreshedMsg:
		cmds = append(cmds, m.handleUsageRefreshed(msg))

	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, m.commands.ClearNotification(id, msg.Duration))
		}

	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)

	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()

	case StartLoadingMsg:
		m.startLoading(msg.Resource)

	case StopLoadingMsg:
		m.stopLoading(msg.Resource)

	case ErrorMsg:
		text := msg.Error.Error()
		if msg.Context != "" {
			text = fmt.Sprintf("%s: %v", msg.Context, msg.Error)
		}
		cmds = append(cmds, m.commands.NotifyError(text))

	case RefreshMsg:
		cmds = append(cmds, m.refresh())

	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()

	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleUsageRefreshed(msg UsageRefreshedMsg) tea.Cmd {
	m.stopLoading(ResourceUsage)

	switch {
	case msg.Error == nil && msg.State != nil && msg.State.HasState:
		m.state.SetUsage(msg.State)
		return m.commands.NotifySuccess(fmt.Sprintf("Usage refreshed: %.0f L", msg.State.State))
	case msg.Error == nil:
		m.state.SetUsage(msg.State)
		return m.commands.NotifyWarning("Refresh returned no usage data")
	case errors.Is(msg.Error, services.ErrClosed):
		return m.commands.NotifyError("Services are shut down")
	}
	// Other failures arrive as an ErrorEvent from the manager.
	return nil
}

func (m *Model) startLoading(resource string) {
	m.state.SetLoading(resource, true)
	m.state.SetLoadingNotification("Fetching usage...")
}

func (m *Model) stopLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

// refresh starts an update cycle unless one is already running.
func (m *Model) refresh() tea.Cmd {
	if m.services == nil || m.state.IsLoading(ResourceUsage) {
		return nil
	}
	m.startLoading(ResourceUsage)
	return m.commands.RefreshUsage()
}

// switchTab activates a tab and tells it so it can reload stale data.
func (m *Model) switchTab(id TabID) tea.Cmd {
	m.activeTab = id
	m.updateTabSizes()
	return func() tea.Msg { return TabSwitchMsg{Tab: id} }
}

func (m *Model) activeTabModel() Tab {
	if int(m.activeTab) < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return nil
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	tab := m.activeTabModel()
	if tab == nil {
		return nil
	}
	var cmd tea.Cmd
	m.tabs[m.activeTab], cmd = tab.Update(msg)
	return cmd
}

// updateTabSizes gives the tabs everything below the navbar.
func (m *Model) updateTabSizes() {
	contentHeight := max(0, m.height-navbarHeight)
	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	n := len(m.tabs)

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, m.keymap.Escape):
		m.showHelp = false
	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabDashboard)
	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabHistory)
	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabInfo)
	case key.Matches(msg, m.keymap.NextTab) && !m.showHelp && n > 0:
		return m.switchTab(TabID((int(m.activeTab) + 1) % n))
	case key.Matches(msg, m.keymap.PrevTab) && !m.showHelp && n > 0:
		return m.switchTab(TabID((int(m.activeTab) - 1 + n) % n))
	case key.Matches(msg, m.keymap.Refresh):
		return m.refresh()
	}
	return nil
}

// handleServiceEvent copies service data into the shared state and forwards
// what the tabs react to.
func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.StateUpdatedEvent:
		m.state.SetUsage(&e.State)
		m.state.SetLastRun(&e.Run)

	case services.StatisticsImportedEvent:
		m.state.SetLastImported(e.Points)
		m.state.SetRecentUsage(e.Recent)
		return func() tea.Msg {
			return StatisticsImportedMsg{Endpoint: e.Endpoint, Points: e.Points}
		}

	case services.OptionsChangedEvent:
		m.state.SetOptions(e.Options)
		return tea.Batch(
			m.commands.NotifyInfo(fmt.Sprintf("Options reloaded (%s)", e.Options.Endpoint)),
			func() tea.Msg { return OptionsChangedMsg{Options: e.Options} },
		)

	case services.ErrorEvent:
		return m.commands.NotifyError(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}
