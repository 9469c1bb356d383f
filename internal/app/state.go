// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/options"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// Loading resources.
const (
	ResourceInitial = "initial"
	ResourceUsage   = "usage"
	ResourceHistory = "history"
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Usage   bool
	History bool
}

// State is the UI-side copy of the service data shared by all tabs.
type State struct {
	mu sync.RWMutex

	Usage   *models.UsageState
	LastRun *models.RefreshRun
	Options options.Options

	Loading LoadingState

	LastUpdated  time.Time
	LastImported int
	RecentUsage  []float64

	notifications   []Notification
	notificationSeq int
}

// NewState creates an empty state with the initial load pending.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.Loading.Initial = loading
	case ResourceUsage:
		s.Loading.Usage = loading
	case ResourceHistory:
		s.Loading.History = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Usage || s.Loading.History
}

// IsLoading reports whether a single resource is loading.
func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resource {
	case ResourceInitial:
		return s.Loading.Initial
	case ResourceUsage:
		return s.Loading.Usage
	case ResourceHistory:
		return s.Loading.History
	}
	return false
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, ResourceInitial)
	}
	if s.Loading.Usage {
		resources = append(resources, ResourceUsage)
	}
	if s.Loading.History {
		resources = append(resources, ResourceHistory)
	}
	return resources
}

// SetUsage replaces the presentation state. A nil state keeps the old one.
func (s *State) SetUsage(state *models.UsageState) {
	if state == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.Usage = &cp
	s.LastUpdated = time.Now()
}

// GetUsage returns the presentation state, or nil before the first update.
func (s *State) GetUsage() *models.UsageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Usage == nil {
		return nil
	}
	cp := *s.Usage
	return &cp
}

// SetLastRun records the latest update cycle.
func (s *State) SetLastRun(run *models.RefreshRun) {
	if run == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.LastRun = &cp
}

// GetLastRun returns the latest update cycle, or nil.
func (s *State) GetLastRun() *models.RefreshRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastRun == nil {
		return nil
	}
	cp := *s.LastRun
	return &cp
}

// SetOptions updates the options in effect.
func (s *State) SetOptions(opts options.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Options = opts
}

// GetOptions returns the options in effect.
func (s *State) GetOptions() options.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Options
}

// SetLastImported records how many points the last import wrote.
func (s *State) SetLastImported(points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastImported = points
}

// GetLastImported returns how many points the last import wrote.
func (s *State) GetLastImported() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastImported
}

// SetRecentUsage records the per-bucket litres of the last imported window.
func (s *State) SetRecentUsage(values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecentUsage = values
}

// GetRecentUsage returns the per-bucket litres of the last imported window.
func (s *State) GetRecentUsage() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RecentUsage
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	now := time.Now()
	id := fmt.Sprintf("%s-%d", now.Format("20060102150405"), s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: now,
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// GetLastUpdated returns the last time the usage state was replaced.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
