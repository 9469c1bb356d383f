// Package main is the entry point for the Watercare Dashboard TUI application.
// The root command runs the Bubble Tea program; subcommands cover headless use.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/watercare-dashboard-tui/internal/app"
	"github.com/j-veylop/watercare-dashboard-tui/internal/config"
	"github.com/j-veylop/watercare-dashboard-tui/internal/db/pgmirror"
	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/services"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/tabs/history"
	"github.com/j-veylop/watercare-dashboard-tui/internal/ui/tabs/info"
	"github.com/j-veylop/watercare-dashboard-tui/internal/version"
)

const mirrorConnectTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "wdt",
		Short:        "Watercare Dashboard TUI - water usage and cost monitor",
		Long:         usageText,
		Version:      version.GetVersion(),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTUI()
		},
	}
	root.SetVersionTemplate(version.Info() + "\n")

	root.AddCommand(newFetchCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// runTUI contains the interactive application logic.
func runTUI() error {
	// 1. Load configuration from .env files and environment variables
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Logs go to a file so they do not draw over the TUI
	logFile, err := openLogFile(cfg.LogPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger.Configure(cfg.LogLevel, cfg.LogFormat, logFile)

	// 3. Initialize the service manager
	svcManager, err := newManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// Ensure cleanup on exit
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	// 4. Create the root Bubble Tea model and its tabs
	model := app.NewModel(svcManager)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state, cfg.UsageAlertLitres), // Tab 0: Dashboard - current reading and costs
		history.New(state, svcManager),             // Tab 1: History - stored statistics
		info.New(state, svcManager),                // Tab 2: Info - configuration and refresh runs
	})

	// 5. Poll the provider in the background
	svcManager.Start(cfg.RefreshInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// newManager builds the service manager, attaching the Postgres mirror when
// one is configured.
func newManager(cfg *config.Config) (*services.Manager, error) {
	var opts []services.Option
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorConnectTimeout)
		mirror, err := pgmirror.Open(ctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres mirror: %w", err)
		}
		opts = append(opts, services.WithMirror(mirror))
	}
	if cfg.MetricsAddr != "" {
		metrics.Init()
	}

	mgr, err := services.NewManager(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// configureStderrLogging is used by the headless commands.
func configureStderrLogging(cfg *config.Config, w io.Writer) {
	logger.Configure(cfg.LogLevel, cfg.LogFormat, w)
}

const usageText = `Watercare Dashboard TUI - water usage and cost monitor

Logs in to the Watercare customer portal, imports usage into a local
statistics store and shows it in the terminal.

Keyboard Shortcuts:
  1-3             Switch between tabs (Dashboard, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Scroll
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  WATERCARE_USERNAME      Account email (WATERCARE_EMAIL also accepted)
  WATERCARE_PASSWORD      Account password
  WATERCARE_ENDPOINT      halfhourly, dailywithstats, monthly or mechanicalmonthly
  REFRESH_INTERVAL        Polling interval (default: 12h)
  FETCH_LOOKBACK_DAYS     Days fetched for record endpoints (default: 7)
  USAGE_ALERT_LITRES      Desktop alert threshold, 0 disables
  DATABASE_PATH           SQLite database path
  OPTIONS_PATH            Options YAML file path
  POSTGRES_URL            Optional Postgres mirror
  METRICS_ADDR            Prometheus listen address for serve
  LOG_LEVEL, LOG_FORMAT   Logging (info/text by default)
  LOG_PATH                Log file used by the TUI

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/watercare-tui/.env
  - ~/.watercare/.env`
