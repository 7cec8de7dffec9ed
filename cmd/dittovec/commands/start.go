package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/internal/telemetry"
	"github.com/marmos91/dittovec/pkg/api"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/connection"
	"github.com/marmos91/dittovec/pkg/metrics"
	"github.com/marmos91/dittovec/pkg/orchestrator"
	"github.com/spf13/cobra"
)

const serviceName = "dittovec"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dittovec server",
	Long: `Start the orchestrator with the HTTP API, the metrics endpoint and the
background status probe, as enabled in the configuration. The server runs in
the foreground until SIGINT or SIGTERM, then releases every store.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dittovec/config.yaml.

Examples:
  # Start with the default config
  dittovec start

  # Start with custom config file
  dittovec start --config /etc/dittovec/config.yaml

  # Start with environment variable overrides
  DITTOVEC_LOGGING_LEVEL=DEBUG dittovec start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.Tracing(serviceName, Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.Profiler(serviceName, Version, cfg.ProfileTags()))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	fmt.Println("dittovec - multi-backend store orchestrator")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// The registry must exist before the orchestrator so its collectors
	// register on it.
	serverErrs := make(chan error, 2)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, metrics.InitRegistry())
		go func() { serverErrs <- metricsServer.Start(ctx) }()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	orch, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	var apiServer *api.Server
	if cfg.API.IsEnabled() {
		apiServer = api.NewServer(cfg.API, orch)
		go func() { serverErrs <- apiServer.Start(ctx) }()
		logger.Info("API server configured", "port", cfg.API.Port)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-serverErrs:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			runErr = err
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Orchestrator.ShutdownTimeout)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
		}
	}
	logShutdownReport(orch.Shutdown(shutdownCtx))
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", logger.Err(err))
		}
	}

	if runErr == nil {
		logger.Info("Server stopped gracefully")
	}
	return runErr
}

func logShutdownReport(report *connection.ShutdownReport) {
	if report.OK() {
		logger.Info("Stores released",
			logger.Count(len(report.Released)),
			logger.DurationMs(float64(report.Duration.Microseconds())/1000))
		return
	}
	for name, err := range report.Errors {
		logger.Warn("Store release failed", logger.Store(name), logger.Err(err))
	}
	if report.DrainErr != nil {
		logger.Warn("Worker pool did not drain", logger.Err(report.DrainErr))
	}
	logger.Warn("Shutdown finished with errors",
		logger.Count(len(report.Released)),
		"failed", len(report.Errors))
}
