package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Upreak/miv1-sub001/pkg/balancer"
	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/executor"
	"github.com/Upreak/miv1-sub001/pkg/health"
	"github.com/Upreak/miv1-sub001/pkg/orchestrator"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/registry"
	"github.com/Upreak/miv1-sub001/pkg/telemetry/logging"
	"github.com/Upreak/miv1-sub001/pkg/telemetry/metrics"
	"github.com/Upreak/miv1-sub001/pkg/usage"
	"github.com/Upreak/miv1-sub001/pkg/usage/storage"
)

var watchConfig bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestration service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService()
	},
}

func init() {
	runCmd.Flags().BoolVar(&watchConfig, "watch", true, "reload configuration on file changes")
}

func runService() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.Telemetry.Logging.Level, cfg.Telemetry.Logging.Format)
	logger.Info("starting orchestration service", "version", version, "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	tracker := usage.NewTracker(backend)
	defer tracker.Close()

	var providerMetrics *metrics.ProviderMetrics
	var recorder health.Recorder
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		providerMetrics = metrics.New(cfg.Telemetry.Metrics.Namespace)
		recorder = providerMetrics
	}

	reg, err := registry.Load(cfg.Providers)
	if err != nil {
		return err
	}
	defer reg.Close()

	monitor, err := health.NewMonitor(health.Config{
		ProbeInterval:      cfg.Health.ProbeInterval,
		ProbeTimeout:       cfg.Health.ProbeTimeout,
		DecaySchedule:      cfg.Health.DecaySchedule,
		UnhealthyThreshold: cfg.Health.UnhealthyThreshold,
		Probers:            enabledInvokers(reg),
		Recorder:           recorder,
	})
	if err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer monitor.Stop()

	exec := executor.NewExecutor(tracker, monitor, cfg.Limits.Cooldown)

	strategy, err := balancer.NewStrategy(cfg.Routing.Strategy)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Registry:   reg,
		Tracker:    tracker,
		Monitor:    monitor,
		Executor:   exec,
		Strategy:   strategy,
		DailyLimit: cfg.Limits.DailyLimit,
	})
	if err != nil {
		return err
	}

	if watchConfig {
		watcher, err := config.NewWatcher(configPath, logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, orch.ApplyConfig); err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Telemetry.Metrics.ListenAddress,
		Handler:           newServer(orch, providerMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}

	return nil
}

// buildBackend constructs the usage persistence backend from configuration.
func buildBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryBackend(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return storage.NewSQLiteBackend(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// enabledInvokers returns a probe source covering the currently enabled
// fleet, re-evaluated on every probe cycle.
func enabledInvokers(reg *registry.Registry) func() []providers.Invoker {
	return func() []providers.Invoker {
		entries := reg.List()
		out := make([]providers.Invoker, 0, len(entries))
		for _, entry := range entries {
			if entry.Config.IsEnabled() {
				out = append(out, entry.Invoker)
			}
		}
		return out
	}
}
