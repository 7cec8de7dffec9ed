package telemetry

// Config is the tracing section of the server config. The config package
// maps its YAML form onto this struct before calling Init.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string
	// Insecure dials the collector without TLS.
	Insecure bool
	// SampleRate is the root sampling ratio in [0, 1]. Values outside the
	// range clamp to always or never.
	SampleRate float64

	Profiling ProfilingConfig
}

const defaultServiceName = "dittovec"

// DefaultConfig has tracing and profiling off, pointed at local collectors.
func DefaultConfig() Config {
	return Config{
		ServiceName:    defaultServiceName,
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1,
		Profiling: ProfilingConfig{
			ServiceName:    defaultServiceName,
			ServiceVersion: "dev",
			Endpoint:       "http://localhost:4040",
			ProfileTypes:   []string{"cpu", "alloc_space", "inuse_space", "goroutines"},
		},
	}
}
