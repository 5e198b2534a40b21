// Package config provides configuration loading and validation for coocscan.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingCorpusRoot = errors.New("corpus root is required")
	ErrMissingIndexPath  = errors.New("concept index path is required")
	ErrMissingOutputDir  = errors.New("output directory is required")
	ErrInvalidThreshold  = errors.New("confidence threshold must be in [0, 1]")
	ErrInvalidCadence    = errors.New("checkpoint cadence must be positive")
	ErrInvalidWorkers    = errors.New("workers must be non-negative")
	ErrInvalidLimit      = errors.New("unit limit must be non-negative")
	ErrInvalidHoleRatio  = errors.New("hole ratio threshold must be in (0, 1)")
)

// Default configuration values.
const (
	DefaultThreshold  = 0.3
	DefaultCadence    = 50
	DefaultWorkers    = 0 // 0 = runtime.NumCPU().
	DefaultHoleRatio  = 0.1
	DefaultHoleMinDia = 100.0
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config holds all configuration for a coocscan run.
type Config struct {
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"`
	Report     ReportConfig     `mapstructure:"report"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// CorpusConfig locates the input corpus and the concept universe.
type CorpusConfig struct {
	// Root is the directory tree of compressed per-record archives.
	Root string `mapstructure:"root"`

	// IndexPath is the precomputed concept mapping file.
	IndexPath string `mapstructure:"index_path"`

	// UniversePath optionally restricts extraction to the listed identifiers.
	UniversePath string `mapstructure:"universe_path"`
}

// ScanConfig holds pipeline processing parameters.
type ScanConfig struct {
	// Threshold is the minimum annotation confidence for extraction.
	Threshold float64 `mapstructure:"threshold"`

	// Workers is the unit worker pool size. Zero means CPU count.
	Workers int `mapstructure:"workers"`

	// Limit processes only the first N units. Zero means all units.
	Limit int `mapstructure:"limit"`
}

// CheckpointConfig holds resumability parameters.
type CheckpointConfig struct {
	// Cadence is the number of completed units between checkpoint saves.
	Cadence int `mapstructure:"cadence"`

	// Resume loads a prior checkpoint instead of starting fresh.
	Resume bool `mapstructure:"resume"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	// Dir receives the matrix, index, and transient checkpoint files.
	Dir string `mapstructure:"dir"`
}

// ReportConfig holds parameters for the post-scan report.
type ReportConfig struct {
	// HoleRatio is the observed/expected ratio below which a pair is an
	// under-connection candidate.
	HoleRatio float64 `mapstructure:"hole_ratio"`

	// HoleMinDiagonal excludes low-exposure concepts from hole detection.
	HoleMinDiagonal float64 `mapstructure:"hole_min_diagonal"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus export settings.
type TelemetryConfig struct {
	// OTLPEndpoint enables OTLP gRPC export when non-empty.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `mapstructure:"otlp_insecure"`

	// MetricsAddr serves a Prometheus /metrics endpoint when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Environment tags exported telemetry (e.g. "prod", "lab").
	Environment string `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath falls back to .coocscan.yaml in the working directory.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".coocscan")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix("COOCSCAN")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("scan.threshold", DefaultThreshold)
	viperCfg.SetDefault("scan.workers", DefaultWorkers)
	viperCfg.SetDefault("scan.limit", 0)

	viperCfg.SetDefault("checkpoint.cadence", DefaultCadence)
	viperCfg.SetDefault("checkpoint.resume", false)

	viperCfg.SetDefault("report.hole_ratio", DefaultHoleRatio)
	viperCfg.SetDefault("report.hole_min_diagonal", DefaultHoleMinDia)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_insecure", true)
}

// Validate checks configuration required for the scan pipeline.
// Report-only commands call ValidateReport instead.
func (c *Config) Validate() error {
	if c.Corpus.Root == "" {
		return ErrMissingCorpusRoot
	}

	if c.Corpus.IndexPath == "" {
		return ErrMissingIndexPath
	}

	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	if c.Scan.Threshold < 0 || c.Scan.Threshold > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidThreshold, c.Scan.Threshold)
	}

	if c.Checkpoint.Cadence <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCadence, c.Checkpoint.Cadence)
	}

	if c.Scan.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Scan.Workers)
	}

	if c.Scan.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Scan.Limit)
	}

	return c.ValidateReport()
}

// ValidateReport checks configuration used by the report command.
func (c *Config) ValidateReport() error {
	if c.Report.HoleRatio <= 0 || c.Report.HoleRatio >= 1 {
		return fmt.Errorf("%w: %g", ErrInvalidHoleRatio, c.Report.HoleRatio)
	}

	return nil
}
