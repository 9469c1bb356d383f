package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/watercare-dashboard-tui/internal/config"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/usage"
)

const dailyBody = `{"usage":[
	{"timestamp":"2024-05-01T00:00:00Z","litres":300},
	{"timestamp":"2024-05-02T00:00:00Z","litres":400}
]}`

type stubFetcher struct {
	loc  *time.Location
	body string
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, kind models.EndpointKind, _ *usage.DateRange) (*usage.RawPayload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usage.RawPayload{Endpoint: kind, Body: []byte(f.body), FetchedAt: time.Now()}, nil
}

func (f *stubFetcher) Location() *time.Location { return f.loc }

// newTestServices builds a manager on a temp database that serves dailyBody.
func newTestServices(t *testing.T, fetcher *stubFetcher) *services.Manager {
	t.Helper()

	loc, err := time.LoadLocation(usage.LocalZone)
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	if fetcher == nil {
		fetcher = &stubFetcher{body: dailyBody}
	}
	fetcher.loc = loc

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
		services.WithFetcher(fetcher),
		services.WithClock(func() time.Time { return now }),
		services.WithNotifier(func(string, string) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestCommands_Tick(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.Tick(time.Millisecond) == nil {
		t.Error("Tick returned nil")
	}
}

func TestCommands_NilManager(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.LoadState() != nil {
		t.Error("LoadState should be nil without a manager")
	}
	if cmds.RefreshUsage() != nil {
		t.Error("RefreshUsage should be nil without a manager")
	}
}

func TestCommands_Notifications(t *testing.T) {
	cmds := NewCommands(nil)

	tests := []struct {
		name string
		fn   func(string) tea.Cmd
		want NotificationType
	}{
		{"Success", cmds.NotifySuccess, NotificationSuccess},
		{"Error", cmds.NotifyError, NotificationError},
		{"Warning", cmds.NotifyWarning, NotificationWarning},
		{"Info", cmds.NotifyInfo, NotificationInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.fn("msg")()

			addMsg, ok := msg.(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", msg)
			}
			if addMsg.Type != tt.want {
				t.Errorf("Type = %v, want %v", addMsg.Type, tt.want)
			}
			if addMsg.Message != "msg" {
				t.Errorf("Message = %q, want msg", addMsg.Message)
			}
			if addMsg.Duration <= 0 {
				t.Error("notifications should expire")
			}
		})
	}
}

func TestCommands_ClearNotification(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.ClearNotification("id", time.Millisecond) == nil {
		t.Error("ClearNotification returned nil")
	}
}

func TestCommands_LoadState(t *testing.T) {
	mgr := newTestServices(t, nil)
	cmds := NewCommands(mgr)

	msg := cmds.LoadState()()
	loaded, ok := msg.(StateLoadedMsg)
	if !ok {
		t.Fatalf("Expected StateLoadedMsg, got %T", msg)
	}
	if loaded.Usage != nil {
		t.Error("a fresh database should have no state")
	}
	if loaded.Options.Endpoint != models.EndpointDailyWithStats {
		t.Errorf("Options.Endpoint = %q", loaded.Options.Endpoint)
	}
}

func TestCommands_RefreshUsage(t *testing.T) {
	mgr := newTestServices(t, nil)
	cmds := NewCommands(mgr)

	msg := cmds.RefreshUsage()()
	refreshed, ok := msg.(UsageRefreshedMsg)
	if !ok {
		t.Fatalf("Expected UsageRefreshedMsg, got %T", msg)
	}
	if refreshed.Error != nil {
		t.Fatalf("refresh failed: %v", refreshed.Error)
	}
	if refreshed.State == nil || refreshed.State.State != 400 {
		t.Errorf("State = %+v, want 400 L", refreshed.State)
	}

	loaded := cmds.LoadState()().(StateLoadedMsg)
	if loaded.LastRun == nil || loaded.LastRun.Failed() {
		t.Errorf("LastRun = %+v, want a successful run", loaded.LastRun)
	}
}

func TestWaitForServiceEventCmd(t *testing.T) {
	ch := make(chan services.ServiceEvent, 1)
	ch <- services.ErrorEvent{Service: "usage"}

	msg := waitForServiceEventCmd(ch)()
	eventMsg, ok := msg.(ServiceEventMsg)
	if !ok {
		t.Fatalf("Expected ServiceEventMsg, got %T", msg)
	}
	if _, ok := eventMsg.Event.(services.ErrorEvent); !ok {
		t.Errorf("Event = %T, want ErrorEvent", eventMsg.Event)
	}

	close(ch)
	if msg := waitForServiceEventCmd(ch)(); msg != nil {
		t.Errorf("closed channel should yield nil, got %T", msg)
	}
}
