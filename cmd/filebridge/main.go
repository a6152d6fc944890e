package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filebridge-dev/filebridge/cmd/filebridge/commands"
	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/internal/telemetry"
	"github.com/filebridge-dev/filebridge/pkg/api"
	"github.com/filebridge-dev/filebridge/pkg/bridge"
	"github.com/filebridge-dev/filebridge/pkg/config"
	"github.com/filebridge-dev/filebridge/pkg/metrics"
	prommetrics "github.com/filebridge-dev/filebridge/pkg/metrics/prometheus"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
	"github.com/filebridge-dev/filebridge/pkg/server"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `filebridge - Native-messaging file access bridge

Reads byte ranges of allow-listed local files on behalf of a sandboxed
host process. The host speaks a length-prefixed JSON envelope over
stdin/stdout; logs go to stderr.

Usage:
  filebridge <command> [flags]

Commands:
  init        Initialize a sample configuration file
  start       Run the bridge session on stdin/stdout
  check-path  Test a path against the configured allow-list
  roots       Show the configured allow-list roots
  schema      Print the configuration JSON Schema
  version     Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/filebridge/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  # Initialize config file interactively
  filebridge init

  # Start the bridge (normally launched by the host, not by hand)
  filebridge start

  # Check whether a path would be readable
  filebridge check-path /home/alice/notes.txt

  # Use environment variables to override config
  FILEBRIDGE_LOGGING_LEVEL=DEBUG filebridge start

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: FILEBRIDGE_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    FILEBRIDGE_LOGGING_LEVEL=DEBUG
    FILEBRIDGE_READ_MAX_CHUNK_SIZE=4Mi
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "init":
		runInit()
	case "start":
		runStart()
	case "check-path":
		runCheckPath()
	case "roots":
		runRoots()
	case "schema":
		runSchema()
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("filebridge %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// runInit handles the init subcommand
func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/filebridge/config.yaml)")
	force := initFlags.Bool("force", false, "Force overwrite existing config file")
	nonInteractive := initFlags.Bool("non-interactive", false, "Skip prompts and use default allow-list roots")

	if err := initFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cmd := commands.NewInitCommand(*configFile, *force, *nonInteractive)
	configPath, err := cmd.Run()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to adjust the allow-list")
	fmt.Println("  2. Register the bridge with your host's native-messaging manifest")
	fmt.Printf("  3. Or run it by hand for testing: filebridge start --config %s\n", configPath)
}

// runStart handles the start subcommand
func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/filebridge/config.yaml)")

	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	startedAt := time.Now()

	// A missing config file is not an error for the bridge: hosts launch
	// it without arguments and the defaults are safe. An explicitly
	// specified path must exist, though.
	if *configFile != "" {
		if _, err := os.Stat(*configFile); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: Configuration file not found: %s\n\n", *configFile)
			fmt.Fprintln(os.Stderr, "Please create the configuration file:")
			fmt.Fprintf(os.Stderr, "  filebridge init --config %s\n", *configFile)
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the structured logger
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "filebridge",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "filebridge",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		log.Fatalf("Failed to initialize profiling: %v", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Starting filebridge", "version", version)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(*configFile))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	// Initialize metrics before the components that record them, so
	// metrics.IsEnabled() is settled when constructors run.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}
	bridgeMetrics := prommetrics.NewBridgeMetrics()

	// Build the sandbox policy from the configured allow-list
	policy, err := sandbox.NewPolicy(cfg.Sandbox.AllowedRoots)
	if err != nil {
		log.Fatalf("Failed to build sandbox policy: %v", err)
	}
	policies := sandbox.NewStore(policy)
	logger.Info("Sandbox policy loaded", "roots", policy.Roots())

	// Reload the allow-list on config file changes (if enabled)
	if cfg.Sandbox.WatchConfig {
		go func() {
			if err := config.WatchSandbox(ctx, *configFile, policies); err != nil {
				logger.Error("Config watcher stopped", "error", err)
			}
		}()
	}

	// Wire the request pipeline: envelope transport feeds the frame
	// dispatcher, which routes READ requests to the executor.
	executor := bridge.NewExecutor(policies, cfg.Read.MaxChunkSize.Uint64(), bridgeMetrics)
	dispatcher := bridge.NewDispatcher(executor, bridgeMetrics)
	srv := server.New(dispatcher, os.Stdin, os.Stdout, server.Config{
		MaxMessageSize: uint32(cfg.Transport.MaxMessageSize),
		RequireAck:     cfg.Transport.RequireAck,
		AckTimeout:     cfg.Transport.AckTimeout,
	})
	logger.Info("Session starting", "session_id", srv.SessionID())

	// Start the sidecar HTTP servers (if enabled)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}
	if cfg.API.Enabled {
		apiServer := api.NewServer(api.ServerConfig{Port: cfg.API.Port}, policies, api.Info{
			Version:   version,
			SessionID: srv.SessionID(),
			StartedAt: startedAt,
		})
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("Status API error", "error", err)
			}
		}()
		logger.Info("Status API enabled", "port", cfg.API.Port)
	}

	// Serve the protocol stream in the background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Wait for interrupt signal, host disconnect, or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownTimer := time.AfterFunc(cfg.ShutdownTimeout, func() {
			logger.Error("Shutdown timed out", "timeout", cfg.ShutdownTimeout)
			os.Exit(1)
		})
		defer shutdownTimer.Stop()

		if err := <-serverDone; err != nil {
			logger.Error("Session shutdown error", "error", err)
			os.Exit(1)
		}
		logger.Info("Session stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Session error", "error", err)
			os.Exit(1)
		}
		logger.Info("Session ended")
	}
}

// runCheckPath handles the check-path subcommand
func runCheckPath() {
	cmd := commands.NewSandboxCommand()
	if err := cmd.RunCheckPath(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runRoots handles the roots subcommand
func runRoots() {
	cmd := commands.NewSandboxCommand()
	if err := cmd.RunRoots(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runSchema handles the schema subcommand
func runSchema() {
	data, err := config.Schema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// getConfigSource returns a description of where the config was loaded from
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
