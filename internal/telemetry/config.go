package telemetry

// Config controls trace export for the bridge process.
type Config struct {
	// Enabled turns OTLP trace export on. When false every span helper
	// degrades to a no-op.
	Enabled bool

	// ServiceName identifies this process to the trace backend.
	ServiceName string

	// ServiceVersion is stamped on every exported span.
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// SampleRate is the fraction of sessions to trace, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the settings used when the config file has no
// telemetry section: disabled, local collector, sample everything.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "filebridge",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
