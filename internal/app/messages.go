package app

import (
	"time"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/options"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// StateLoadedMsg carries the state restored by the service manager.
type StateLoadedMsg struct {
	Usage   *models.UsageState
	LastRun *models.RefreshRun
	Options options.Options
}

// UsageRefreshedMsg contains the result of a manual refresh.
type UsageRefreshedMsg struct {
	State *models.UsageState
	Error error
}

// StatisticsImportedMsg is forwarded to tabs when new points were stored.
type StatisticsImportedMsg struct {
	Endpoint models.EndpointKind
	Points   int
}

// OptionsChangedMsg is forwarded to tabs when the options file was reloaded.
type OptionsChangedMsg struct {
	Options options.Options
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
