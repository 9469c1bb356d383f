package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/config"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/usage"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
)

const dailyBody = `{"usage":[
	{"timestamp":"2024-05-01T00:00:00Z","litres":300},
	{"timestamp":"2024-05-02T00:00:00Z","litres":400}
]}`

type stubFetcher struct {
	loc *time.Location
}

func (f *stubFetcher) Fetch(_ context.Context, kind models.EndpointKind, _ *usage.DateRange) (*usage.RawPayload, error) {
	return &usage.RawPayload{Endpoint: kind, Body: []byte(dailyBody), FetchedAt: time.Now()}, nil
}

func (f *stubFetcher) Location() *time.Location { return f.loc }

// newTestServices builds a manager whose database already holds one import.
func newTestServices(t *testing.T, update bool) *services.Manager {
	t.Helper()

	loc, err := time.LoadLocation(usage.LocalZone)
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	tmpDir := t.TempDir()
	cfg := &config.Config{
		Username:     "user@example.com",
		Password:     "secret",
		Endpoint:     models.EndpointDailyWithStats,
		Rates:        models.DefaultRates(),
		DatabasePath: filepath.Join(tmpDir, "test.db"),
		OptionsPath:  filepath.Join(tmpDir, "options.yaml"),
		HTTPTimeout:  time.Second,
		LookbackDays: 7,
	}
	now := time.Date(2024, 5, 3, 9, 0, 0, 0, loc)

	mgr, err := services.NewManager(cfg,
		services.WithFetcher(&stubFetcher{loc: loc}),
		services.WithClock(func() time.Time { return now }),
		services.WithNotifier(func(string, string) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	if update {
		if _, err := mgr.Update(context.Background()); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	return mgr
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a load command")
	}
	m.Update(cmd())
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.timeRange != models.TimeRange30Days {
		t.Errorf("default range = %v, want 30 days", m.timeRange)
	}
}

func TestModel_InitWithoutServices(t *testing.T) {
	m := New(app.NewState(), nil)
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init returned nil")
	}
	msg, ok := cmd().(historyErrorMsg)
	if !ok {
		t.Fatalf("expected historyErrorMsg, got %T", cmd())
	}

	_, notify := m.Update(msg)
	if notify == nil {
		t.Error("load errors should raise a notification")
	}
	m.SetSize(80, 24)
	if !strings.Contains(m.View(), "Services not initialized") {
		t.Error("error view should show the message")
	}
}

func TestModel_Empty(t *testing.T) {
	m := New(app.NewState(), newTestServices(t, false))
	m.SetSize(100, 40)

	cmd := m.Init()
	if !strings.Contains(m.View(), "Loading history") {
		t.Error("first view should show loading")
	}
	run(t, m, cmd)

	if !strings.Contains(ansi.Strip(m.View()), "No statistics stored yet") {
		t.Error("empty database should render the empty state")
	}
}

func TestModel_LoadsStatistics(t *testing.T) {
	mgr := newTestServices(t, true)
	state := app.NewState()
	state.SetOptions(mgr.Options())

	m := New(state, mgr)
	m.SetSize(120, 120)
	run(t, m, m.Init())

	if len(m.statistics) != 4 {
		t.Fatalf("statistics = %d, want 4", len(m.statistics))
	}
	if m.selected != "watercare:dailywithstats_consumption" {
		t.Errorf("selected = %q", m.selected)
	}
	if m.summary.Total != 700 {
		t.Errorf("total = %v, want 700", m.summary.Total)
	}

	view := ansi.Strip(m.View())
	for _, want := range []string{"Consumption", "700 L", "[t] 30 Days", "Usage Over Time", "Weekly Pattern"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Hourly Pattern") {
		t.Error("daily series should not show the hourly pattern")
	}
}

func TestModel_CycleStatistic(t *testing.T) {
	mgr := newTestServices(t, true)
	m := New(app.NewState(), mgr)
	m.SetSize(120, 120)
	run(t, m, m.Init())

	first := m.selected
	run(t, m, m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}))
	if m.selected == first {
		t.Fatal("s should select the next statistic")
	}
	if meta, _ := m.selectedMeta(); meta.Unit == "L" {
		if !strings.Contains(ansi.Strip(m.View()), " L") {
			t.Error("litre statistic should render litres")
		}
	} else if !strings.Contains(ansi.Strip(m.View()), "$") {
		t.Error("cost statistic should render dollars")
	}

	run(t, m, m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'S'}}))
	if m.selected != first {
		t.Errorf("S should go back to %q, got %q", first, m.selected)
	}
}

func TestModel_CostChart(t *testing.T) {
	mgr := newTestServices(t, true)
	m := New(app.NewState(), mgr)
	m.SetSize(120, 120)
	run(t, m, m.Init())

	for range len(m.statistics) {
		if meta, _ := m.selectedMeta(); meta.Unit == statistics.UnitNZD {
			break
		}
		run(t, m, m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}))
	}
	if meta, _ := m.selectedMeta(); meta.Unit != statistics.UnitNZD {
		t.Fatal("no cost statistic stored")
	}

	view := ansi.Strip(m.View())
	if !strings.Contains(view, "Cost Over Time") {
		t.Error("cost statistics should plot their running total")
	}
	if strings.Contains(view, "Usage Over Time") {
		t.Error("cost statistics should not use the usage chart")
	}
}

func TestModel_ToggleRange(t *testing.T) {
	mgr := newTestServices(t, true)
	m := New(app.NewState(), mgr)
	run(t, m, m.Init())

	run(t, m, m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}}))
	if m.timeRange != models.TimeRange1Year {
		t.Errorf("range = %v, want 1 year", m.timeRange)
	}
	if m.summary.Count != 2 {
		t.Errorf("count = %d, want 2", m.summary.Count)
	}
}

func TestModel_ReloadTriggers(t *testing.T) {
	mgr := newTestServices(t, true)
	state := app.NewState()
	m := New(state, mgr)
	run(t, m, m.Init())

	_, cmd := m.Update(app.StatisticsImportedMsg{Points: 8})
	if cmd == nil {
		t.Fatal("an import should reload")
	}
	if !state.IsLoading(app.ResourceHistory) {
		t.Error("history should be marked loading")
	}

	// A second trigger while loading is ignored.
	if _, again := m.Update(app.OptionsChangedMsg{}); again != nil {
		t.Error("reload should not stack")
	}
	m.Update(cmd())
	if state.IsLoading(app.ResourceHistory) {
		t.Error("loading flag should clear")
	}

	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabInfo}); cmd != nil {
		t.Error("switching to another tab should not reload")
	}
	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabHistory}); cmd == nil {
		t.Error("switching to history should reload")
	}
}

func TestPickStatistic(t *testing.T) {
	metas := []models.StatisticMetadata{
		{StatisticID: "watercare:monthly_consumption"},
		{StatisticID: "watercare:dailywithstats_consumption"},
	}
	if got := pickStatistic(metas, "", models.EndpointDailyWithStats); got != metas[1].StatisticID {
		t.Errorf("preferred endpoint not picked: %q", got)
	}
	if got := pickStatistic(metas, metas[0].StatisticID, models.EndpointDailyWithStats); got != metas[0].StatisticID {
		t.Errorf("current selection not kept: %q", got)
	}
	if got := pickStatistic(metas, "gone", models.EndpointHalfHourly); got != metas[0].StatisticID {
		t.Errorf("fallback = %q", got)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if Summarize(nil, time.UTC).HasData() {
		t.Error("empty summary should have no data")
	}
}

func TestSummarize_Hourly(t *testing.T) {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC) // Monday
	var points []models.StatisticPoint
	sum := 0.0
	for h := range 48 {
		v := 10.0
		if h%24 == 7 {
			v = 50
		}
		sum += v
		points = append(points, models.StatisticPoint{
			Start: start.Add(time.Duration(h) * time.Hour),
			State: v,
			Sum:   sum,
		})
	}

	s := Summarize(points, time.UTC)
	if !s.SubDaily || !s.Daily {
		t.Fatal("hourly series should be sub-daily")
	}
	if s.Count != 48 || s.Total != sum {
		t.Errorf("count=%d total=%v", s.Count, s.Total)
	}
	if s.Peak != 50 || !s.PeakAt.Equal(start.Add(7*time.Hour)) {
		t.Errorf("peak = %v at %v", s.Peak, s.PeakAt)
	}
	if s.PeakHour != 7 || s.HourProfile[7] != 50 || s.HourProfile[8] != 10 {
		t.Errorf("hour profile wrong: peak %d %v", s.PeakHour, s.HourProfile)
	}
	dayTotal := 23*10.0 + 50
	if s.WeekdayProfile[time.Monday] != dayTotal || s.WeekdayProfile[time.Tuesday] != dayTotal {
		t.Errorf("weekday profile = %v", s.WeekdayProfile)
	}
}

func TestSummarize_BillingPeriods(t *testing.T) {
	points := []models.StatisticPoint{
		{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), State: 9000},
		{Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), State: 8000},
	}
	s := Summarize(points, time.UTC)
	if s.SubDaily || s.Daily {
		t.Error("monthly series should have no profiles")
	}
	if s.Average != 8500 {
		t.Errorf("average = %v", s.Average)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) == 0 || len(m.FullHelp()) == 0 {
		t.Error("help bindings empty")
	}
}
