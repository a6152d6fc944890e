package config

import (
	"strings"
	"time"

	"github.com/filebridge-dev/filebridge/internal/bytesize"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applySandboxDefaults(&cfg.Sandbox)
	applyReadDefaults(&cfg.Read)
	applyTransportDefaults(&cfg.Transport)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applySandboxDefaults fills the allow-list with the built-in roots.
func applySandboxDefaults(cfg *SandboxConfig) {
	if len(cfg.AllowedRoots) == 0 {
		cfg.AllowedRoots = sandbox.DefaultRoots()
	}
}

// applyReadDefaults sets read defaults.
func applyReadDefaults(cfg *ReadConfig) {
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = 8 * bytesize.MiB
	}
}

// applyTransportDefaults sets transport defaults. RequireAck defaults to
// true via viper (a bool cannot distinguish unset from explicit false
// after unmarshal).
func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1 * bytesize.MiB
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false; the port default only matters when on.
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets status API defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 8991
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files, testing, and
// documentation.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Transport: TransportConfig{
			RequireAck: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
