// Package options provides the user-editable options file with file watching.
package options

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// Options are the settings that can change after setup.
type Options struct {
	Endpoint models.EndpointKind `yaml:"endpoint"`
	Rates    models.Rates        `yaml:",inline"`
}

// Validate checks the endpoint and rejects negative tariffs.
func (o Options) Validate() error {
	if !o.Endpoint.Valid() {
		return fmt.Errorf("%w: unknown endpoint %q", models.ErrValidation, o.Endpoint)
	}
	r := o.Rates
	if r.ConsumptionRate < 0 || r.WastewaterRate < 0 || r.WastewaterRatio < 0 || r.AnnualLineCharge < 0 {
		return fmt.Errorf("%w: rates must not be negative", models.ErrValidation)
	}
	return nil
}

// Event represents an options service event.
type Event struct {
	Type    EventType
	Error   error
	Options Options
}

// EventType defines the type of options event.
type EventType int

const (
	EventLoaded EventType = iota
	EventChanged
	EventError
)

// Service holds the current options and reloads them when the file changes.
type Service struct {
	mu            sync.RWMutex
	current       Options
	filePath      string
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	closeOnce     sync.Once
}

// New loads the options file, creating it from defaults if it does not exist,
// and starts watching it.
func New(filePath string, defaults Options) (*Service, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		current:   defaults,
		filePath:  filePath,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create options directory: %w", err)
	}

	opts, err := s.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.write(defaults); err != nil {
			return nil, fmt.Errorf("failed to create options file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load options: %w", err)
	default:
		s.current = opts
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded, Options: s.Current()})
	return s, nil
}

// Events returns the event channel for subscribing to option changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Current returns the options in effect.
func (s *Service) Current() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the options file path.
func (s *Service) Path() string {
	return s.filePath
}

// Set validates and persists new options. The watcher sees the write but
// emits nothing since the options already match.
func (s *Service) Set(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(opts); err != nil {
		return err
	}
	s.current = opts
	return nil
}

// read parses the file, filling omitted fields from the current options.
func (s *Service) read() (Options, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return Options{}, err
	}

	s.mu.RLock()
	opts := s.current
	s.mu.RUnlock()

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("%w: options file: %v", models.ErrParse, err)
	}
	opts.Endpoint, err = models.ParseEndpointKind(string(opts.Endpoint))
	if err != nil {
		return Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (s *Service) write(opts Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// startWatcher watches the directory so editors that replace the file are
// still seen.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			s.mu.Lock()
			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the file. Invalid content keeps the old options.
func (s *Service) handleFileChange() {
	opts, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Warn("ignoring invalid options file", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err, Options: s.Current()})
		return
	}

	s.mu.Lock()
	changed := opts != s.current
	s.current = opts
	s.mu.Unlock()

	if changed {
		logger.Info("options reloaded", "endpoint", opts.Endpoint)
		s.sendEvent(Event{Type: EventChanged, Options: opts})
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
