// Package observability wires structured logging, OpenTelemetry tracing and
// metrics, and the Prometheus scrape endpoint for the scan pipeline.
package observability

import "log/slog"

// Default shutdown timeout for flushing exporters.
const defaultShutdownTimeoutSec = 10

// Config controls observability initialization.
type Config struct {
	// ServiceName identifies the service in exported telemetry.
	ServiceName string

	// ServiceVersion is the binary version, when known.
	ServiceVersion string

	// Environment tags telemetry (e.g. "prod", "lab"). Optional.
	Environment string

	// OTLPEndpoint enables OTLP gRPC export when non-empty. Empty installs
	// no-op providers with zero export overhead.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool

	// SampleRatio samples traces at the given ratio when positive.
	SampleRatio float64

	// LogLevel is the minimum level for emitted log records.
	LogLevel slog.Level

	// LogJSON selects the JSON handler instead of the text handler.
	LogJSON bool

	// ShutdownTimeoutSec bounds exporter flushing at shutdown.
	ShutdownTimeoutSec int
}

// ParseLogLevel maps a config string to an slog.Level. Unknown values
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
