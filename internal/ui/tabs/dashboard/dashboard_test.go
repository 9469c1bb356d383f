package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/usage"
)

func dailyState() *models.UsageState {
	return &models.UsageState{
		Endpoint:  models.EndpointDailyWithStats,
		UpdatedAt: time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC),
		State:     412,
		HasState:  true,
		Attributes: map[string]string{
			usage.AttrLastPeriodStart:   "2024-05-02T00:00:00+12:00",
			usage.AttrPeriodDays:        "1",
			usage.AttrYesterdayLitres:   "412",
			usage.AttrTotalLitresWindow: "2950",
			usage.AttrBucketCount:       "7",
			usage.AttrCostConsumption:   "0.95",
			usage.AttrCostWastewater:    "1.29",
			usage.AttrCostLineCharge:    "0.70",
			usage.AttrCostTotal:         "2.94",
			"statistics.averageDaily":   "421.4",
			"account.meterSerial":       "M123",
		},
	}
}

func newLoaded(threshold float64) (*app.State, *Model) {
	state := app.NewState()
	state.SetLoading(app.ResourceInitial, false)
	m := New(state, threshold)
	m.SetSize(120, 80)
	return state, m
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), 0)
	if m == nil {
		t.Fatal("New returned nil")
	}
}

func TestModel_Init(t *testing.T) {
	m := New(app.NewState(), 0)
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), 0)
	updated, _ := m.Update(nil)
	if updated == nil {
		t.Error("Update returned nil model")
	}
}

func TestModel_ViewLoading(t *testing.T) {
	m := New(app.NewState(), 0)
	m.SetSize(80, 24)
	if !strings.Contains(m.View(), "Loading usage") {
		t.Error("initial view should show the loading spinner")
	}
}

func TestModel_ViewEmpty(t *testing.T) {
	_, m := newLoaded(0)
	view := ansi.Strip(m.View())
	if !strings.Contains(view, "No usage data yet") {
		t.Errorf("empty view missing placeholder: %q", view)
	}
	if !strings.Contains(view, "No updates recorded") {
		t.Error("empty view should say no updates recorded")
	}
}

func TestModel_ViewWithState(t *testing.T) {
	state, m := newLoaded(500)
	state.SetUsage(dailyState())
	state.SetLastRun(&models.RefreshRun{
		StartedAt:  time.Now(),
		Status:     models.RunStatusSuccess,
		DurationMs: 1200,
		Points:     14,
	})

	view := ansi.Strip(m.View())
	for _, want := range []string{"412 L", "/ 500 L", "Yesterday", "$2.94", "SUCCESS", "14"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "meterSerial") {
		t.Error("details should be hidden until toggled")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	view = ansi.Strip(m.View())
	if !strings.Contains(view, "account.meterSerial") || !strings.Contains(view, "M123") {
		t.Error("details card should list provider attributes")
	}
}

func TestModel_RecentSparkline(t *testing.T) {
	for _, threshold := range []float64{0, 500} {
		state, m := newLoaded(threshold)
		state.SetUsage(dailyState())
		if strings.Contains(ansi.Strip(m.View()), "Recent buckets") {
			t.Fatal("sparkline needs imported values")
		}

		state.SetRecentUsage([]float64{100, 800, 412})
		view := ansi.Strip(m.View())
		if !strings.Contains(view, "Recent buckets") || !strings.Contains(view, "▁█") {
			t.Errorf("threshold %v: sparkline missing from %q", threshold, view)
		}
	}
}

func TestModel_ViewFailedRun(t *testing.T) {
	state, m := newLoaded(0)
	state.SetLastRun(&models.RefreshRun{
		StartedAt: time.Now(),
		Status:    models.RunStatusError,
		Error:     "login failed",
	})
	view := ansi.Strip(m.View())
	if !strings.Contains(view, "ERROR") || !strings.Contains(view, "login failed") {
		t.Errorf("failed run not shown: %q", view)
	}
}

func TestModel_NoCostWithoutAttributes(t *testing.T) {
	state, m := newLoaded(0)
	st := dailyState()
	delete(st.Attributes, usage.AttrCostTotal)
	state.SetUsage(st)
	if strings.Contains(ansi.Strip(m.View()), "Estimated Cost") {
		t.Error("cost card should be hidden without a total")
	}
}

func TestModel_Animation(t *testing.T) {
	state, m := newLoaded(0)
	state.SetUsage(dailyState())

	_, cmd := m.Update(app.StateLoadedMsg{})
	if cmd == nil {
		t.Fatal("a new reading should start the animation")
	}

	start := time.Now()
	m.Update(animationTickMsg(start.Add(100 * time.Millisecond)))
	if m.reading.Target != 412 {
		t.Errorf("target = %v, want 412", m.reading.Target)
	}

	_, cmd = m.Update(animationTickMsg(start.Add(5 * time.Second)))
	if m.reading.Current != 412 {
		t.Errorf("current = %v after animation, want 412", m.reading.Current)
	}
	if cmd != nil {
		t.Error("settled animation should stop ticking")
	}
}

func TestAnimationState(t *testing.T) {
	now := time.Now()
	var a AnimationState
	if !a.retarget(100, now) {
		t.Fatal("retarget should report movement")
	}
	if !a.step(now.Add(750 * time.Millisecond)) {
		t.Error("animation should still be moving halfway")
	}
	if a.Current <= 0 || a.Current >= 100 {
		t.Errorf("halfway value = %v", a.Current)
	}
	if a.step(now.Add(2 * time.Second)) {
		t.Error("animation should settle after its duration")
	}
	if a.retarget(100, now) {
		t.Error("same target should not restart")
	}
}

func TestPeriodLabel(t *testing.T) {
	if got := periodLabel(models.EndpointDailyWithStats); got != "Last day" {
		t.Errorf("periodLabel(daily) = %q", got)
	}
	if got := periodLabel(models.DefaultEndpoint); got != "Last period" {
		t.Errorf("periodLabel(monthly) = %q", got)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), 0)
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}

func TestModel_KeyBindings(t *testing.T) {
	_, m := newLoaded(0)
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if m.showDetails {
		t.Error("navigation keys should not toggle details")
	}
}
