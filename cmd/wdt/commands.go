package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/j-veylop/watercare-dashboard-tui/internal/config"
	"github.com/j-veylop/watercare-dashboard-tui/internal/db"
	"github.com/j-veylop/watercare-dashboard-tui/internal/export"
	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/metrics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
	"github.com/j-veylop/watercare-dashboard-tui/internal/statistics"
	"github.com/j-veylop/watercare-dashboard-tui/internal/version"
)

const fetchTimeout = 2 * time.Minute

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run one update cycle and print the state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			configureStderrLogging(cfg, cmd.ErrOrStderr())

			mgr, err := newManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer mgr.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			state, err := mgr.Update(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll in the background and expose /metrics when METRICS_ADDR is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			configureStderrLogging(cfg, cmd.ErrOrStderr())

			mgr, err := newManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer mgr.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, mgr.Start)
		},
	}
}

// serve starts polling and blocks until ctx is done, running the metrics
// endpoint alongside when configured.
func serve(ctx context.Context, cfg *config.Config, start func(time.Duration)) error {
	start(cfg.RefreshInterval)
	logger.Info("polling started", "interval", cfg.RefreshInterval, "endpoint", cfg.Endpoint)

	if cfg.MetricsAddr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type exportFlags struct {
	format    string
	out       string
	statistic string
	since     time.Duration
}

func newExportCommand() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a usage statement for a stored statistic",
		Long: "Export renders the points stored locally for one statistic as an xlsx workbook or a pdf statement.\n" +
			"It reads the local database only and does not log in.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadLocal()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			configureStderrLogging(cfg, cmd.ErrOrStderr())
			return runExport(cmd.Context(), cfg, flags, time.Now())
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", string(export.FormatXLSX), "statement format: xlsx or pdf")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output file (required)")
	cmd.Flags().StringVarP(&flags.statistic, "statistic", "s", "", "statistic id (default: consumption of the configured endpoint)")
	cmd.Flags().DurationVar(&flags.since, "since", 30*24*time.Hour, "export points newer than this, 0 for all")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(ctx context.Context, cfg *config.Config, flags exportFlags, now time.Time) error {
	format, err := export.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	store, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	id := flags.statistic
	if id == "" {
		id = statistics.StatisticID(cfg.Endpoint, statistics.TypeConsumption)
	}

	metas, err := store.ListStatisticMeta(ctx)
	if err != nil {
		return err
	}
	meta, ok := lo.Find(metas, func(m models.StatisticMetadata) bool { return m.StatisticID == id })
	if !ok {
		return fmt.Errorf("unknown statistic %q", id)
	}

	var since time.Time
	if flags.since > 0 {
		since = now.Add(-flags.since)
	}
	points, err := store.GetStatistics(ctx, id, since)
	if err != nil {
		return err
	}

	f, err := os.Create(flags.out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", flags.out, err)
	}
	if err := export.Write(f, format, meta, points); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("statement exported", "statistic", id, "format", format, "points", len(points), "out", flags.out)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
