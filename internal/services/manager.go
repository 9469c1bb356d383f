// Package services provides service orchestration for the TUI and the
// headless commands.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/watercare-dashboard-tui/internal/config"
	"github.com/j-veylop/watercare-dashboard-tui/internal/db"
	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/options"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services/usage"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
)

type (
	// StateUpdatedEvent is emitted after a successful update cycle.
	StateUpdatedEvent struct {
		State models.UsageState
		Run   models.RefreshRun
	}

	// StatisticsImportedEvent is emitted when batches were written to the store.
	// Recent holds the per-bucket litres of the imported consumption window.
	StatisticsImportedEvent struct {
		Endpoint   models.EndpointKind
		Recent     []float64
		Cumulative float64
		Batches    int
		Points     int
	}

	// OptionsChangedEvent is emitted when the options file was reloaded.
	OptionsChangedEvent struct {
		Options options.Options
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (StateUpdatedEvent) isServiceEvent()       {}
func (StatisticsImportedEvent) isServiceEvent() {}
func (OptionsChangedEvent) isServiceEvent()     {}
func (ErrorEvent) isServiceEvent()              {}

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("service manager closed")

// Fetcher retrieves one raw usage report.
type Fetcher interface {
	Fetch(ctx context.Context, kind models.EndpointKind, rng *usage.DateRange) (*usage.RawPayload, error)
	Location() *time.Location
}

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Option configures a Manager.
type Option func(*Manager)

// WithFetcher replaces the Watercare usage client.
func WithFetcher(f Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithMirror adds a second statistics sink. Mirror failures are reported but
// do not fail the update cycle.
func WithMirror(imp statistics.Importer) Option {
	return func(m *Manager) { m.mirror = imp }
}

// WithNotifier replaces the desktop notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notify = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAuthOptions passes options to the session manager.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(m *Manager) { m.authOpts = append(m.authOpts, opts...) }
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	updateMu    sync.Mutex
	cfg         *config.Config
	auth        *auth.Manager
	authOpts    []auth.Option
	fetcher     Fetcher
	options     *options.Service
	database    *db.DB
	mirror      statistics.Importer
	notify      Notifier
	now         func() time.Time
	state       *models.UsageState
	lastRun     *models.RefreshRun
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan ServiceEvent
	closeOnce   sync.Once
	pollOnce    sync.Once
}

// NewManager creates a new service manager.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		notify:    desktopNotify,
		now:       time.Now,
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.options, err = options.New(cfg.OptionsPath, options.Options{Endpoint: cfg.Endpoint, Rates: cfg.Rates})
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	authOpts := append([]auth.Option{auth.WithTimeout(cfg.HTTPTimeout)}, m.authOpts...)
	m.auth = auth.NewManager(auth.Credentials{Username: cfg.Username, Password: cfg.Password}, authOpts...)

	if m.fetcher == nil {
		m.fetcher, err = usage.NewService(m.auth, m.auth.Endpoints().APIBase, usage.WithTimeout(cfg.HTTPTimeout))
		if err != nil {
			_ = m.options.Close()
			_ = m.database.Close()
			return nil, err
		}
	}

	// Restore the last state so a restart shows data and does not re-alert.
	m.state, err = m.database.LoadState(context.Background())
	if err != nil {
		logger.Warn("failed to load saved state", "error", err)
	}
	if runs, err := m.database.GetRecentRefreshRuns(context.Background(), 1); err == nil && len(runs) > 0 {
		m.lastRun = &runs[0]
	}

	go m.routeEvents()

	return m, nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.options.Events():
			m.handleOptionsEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleOptionsEvent(event options.Event) {
	switch event.Type {
	case options.EventChanged:
		m.broadcast(OptionsChangedEvent{Options: event.Options})
	case options.EventError:
		m.broadcast(ErrorEvent{Service: "options", Error: event.Error})
	}
}

// Start runs an update now and then every interval until Close.
func (m *Manager) Start(interval time.Duration) {
	m.pollOnce.Do(func() {
		go m.poll(pollInterval(interval))
	})
}

// pollInterval replaces a non-positive interval with the default.
func pollInterval(interval time.Duration) time.Duration {
	if interval > 0 {
		return interval
	}
	logger.Warn("invalid poll interval, using default", "interval", interval, "default", config.DefaultRefreshInterval)
	return config.DefaultRefreshInterval
}

func (m *Manager) poll(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := m.Update(ctx); err != nil {
		logger.Warn("update failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.Update(ctx); err != nil {
				logger.Warn("update failed", "error", err)
			}
		case <-m.stopChan:
			return
		}
	}
}

// Update runs one cycle: fetch the configured endpoint, normalize it, import
// the statistics and publish the new state. Concurrent calls run one after the
// other.
func (m *Manager) Update(ctx context.Context) (*models.UsageState, error) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	select {
	case <-m.stopChan:
		return nil, ErrClosed
	default:
	}

	opts := m.options.Current()
	started := m.now()
	run := models.RefreshRun{StartedAt: started, Endpoint: opts.Endpoint}

	state, points, err := m.update(ctx, opts, started)
	run.DurationMs = m.now().Sub(started).Milliseconds()
	run.Points = points
	if err != nil {
		run.Status = models.RunStatusError
		run.Error = err.Error()
	} else {
		run.Status = models.RunStatusSuccess
	}

	if dbErr := m.database.InsertRefreshRun(context.WithoutCancel(ctx), &run); dbErr != nil {
		logger.Warn("failed to record refresh run", "error", dbErr)
	}

	m.mu.Lock()
	m.lastRun = &run
	previous := m.state
	if err == nil {
		m.state = state
	}
	m.mu.Unlock()

	if err != nil {
		service := "usage"
		if models.IsAuthFailure(err) {
			service = "auth"
		}
		logger.Error("update failed", "service", service, "endpoint", opts.Endpoint, "error", err)
		m.broadcast(ErrorEvent{Service: service, Error: err})
		return nil, err
	}

	logger.Info("usage updated", "endpoint", opts.Endpoint, "state", state.State, "points", points)
	m.broadcast(StateUpdatedEvent{State: *state, Run: run})
	m.checkNotifications(previous, state)
	return state, nil
}

func (m *Manager) update(ctx context.Context, opts options.Options, now time.Time) (*models.UsageState, int, error) {
	loc := m.fetcher.Location()
	rng := usage.DefaultRange(opts.Endpoint, now, m.cfg.LookbackDays, loc)

	raw, err := m.fetcher.Fetch(ctx, opts.Endpoint, rng)
	if err != nil {
		return nil, 0, err
	}

	payload, err := usage.Decode(raw, loc)
	if err != nil {
		return nil, 0, err
	}
	series := usage.Normalize(payload, loc)

	batches := statistics.BuildBatches(series, opts.Rates)
	points, err := statistics.ImportAll(ctx, m.database, batches)
	if err != nil {
		return nil, points, err
	}
	for _, b := range batches {
		metrics.AddStatisticPoints(b.Metadata.StatisticID, len(b.Points))
	}

	if m.mirror != nil {
		if _, err := statistics.ImportAll(ctx, m.mirror, batches); err != nil {
			logger.Warn("mirror import failed", "error", err)
			m.broadcast(ErrorEvent{Service: "mirror", Error: err})
		}
	}

	if len(batches) > 0 {
		m.broadcast(importedEvent(opts.Endpoint, batches, points))
	}

	state := usage.BuildState(series, payload, opts.Rates, now, loc)
	if !raw.FetchedAt.IsZero() {
		state.UpdatedAt = raw.FetchedAt
	}
	if err := m.database.SaveState(ctx, &state); err != nil {
		return nil, points, err
	}
	if state.HasState {
		metrics.SetLastState(state.State)
	}

	return &state, points, nil
}

// importedEvent summarises an import. The first batch is always consumption.
func importedEvent(endpoint models.EndpointKind, batches []models.StatisticBatch, points int) StatisticsImportedEvent {
	consumption := batches[0]
	event := StatisticsImportedEvent{
		Endpoint: endpoint,
		Recent:   make([]float64, len(consumption.Points)),
		Batches:  len(batches),
		Points:   points,
	}
	for i, p := range consumption.Points {
		event.Recent[i] = p.State
	}
	if last, ok := consumption.Last(); ok {
		event.Cumulative = last.Sum
	}
	return event
}

// checkNotifications alerts when the latest bucket crosses the configured
// usage threshold.
func (m *Manager) checkNotifications(previous, current *models.UsageState) {
	threshold := m.cfg.UsageAlertLitres
	if threshold <= 0 || current == nil || !current.HasState || current.State < threshold {
		return
	}
	if previous != nil && previous.HasState && previous.State >= threshold {
		return
	}

	title := fmt.Sprintf("High water usage: %s", current.Endpoint.DisplayName())
	body := fmt.Sprintf("Latest reading is %.0f L (alert at %.0f L)", current.State, threshold)
	if err := m.notify(title, body); err != nil {
		logger.Debug("notification failed", "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd that waits for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// State returns the last published state, or nil before the first update.
func (m *Manager) State() *models.UsageState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil
	}
	s := *m.state
	return &s
}

// LastRun returns the most recent update cycle, or nil.
func (m *Manager) LastRun() *models.RefreshRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRun == nil {
		return nil
	}
	r := *m.lastRun
	return &r
}

// Options returns the options in effect.
func (m *Manager) Options() options.Options {
	return m.options.Current()
}

// OptionsPath returns the watched options file.
func (m *Manager) OptionsPath() string {
	return m.options.Path()
}

// Session returns the token-free session state.
func (m *Manager) Session() auth.Snapshot {
	return m.auth.Snapshot()
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Statistics lists the stored statistics.
func (m *Manager) Statistics(ctx context.Context) ([]models.StatisticMetadata, error) {
	return m.database.ListStatisticMeta(ctx)
}

// History returns the stored points of a statistic inside a time range.
func (m *Manager) History(ctx context.Context, statisticID string, r models.TimeRange) ([]models.StatisticPoint, error) {
	return m.database.GetStatistics(ctx, statisticID, r.Since(m.now()))
}

// RecentRuns returns the latest update cycles, newest first.
func (m *Manager) RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	return m.database.GetRecentRefreshRuns(ctx, limit)
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		if m.stopChan != nil {
			close(m.stopChan)
		}

		// Wait for an in-flight update before closing the store.
		m.updateMu.Lock()
		defer m.updateMu.Unlock()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.options != nil {
			if err := m.options.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c, ok := m.mirror.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
