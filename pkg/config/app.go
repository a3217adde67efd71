package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/telemetry"
)

// DefaultAppConfigFile is the service configuration file looked up by the CLI.
const DefaultAppConfigFile = "rsvp.yaml"

// AppConfig is the service configuration read from rsvp.yaml.
type AppConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Rules     RulesConfig     `yaml:"rules"`
	Grid      GridConfig      `yaml:"grid"`
	Admission AdmissionConfig `yaml:"admission"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig locates the reservation store.
type DatabaseConfig struct {
	// Path is the SQLite file, or ":memory:".
	Path string `yaml:"path" validate:"required"`
}

// RulesConfig locates rule files.
type RulesConfig struct {
	// Paths are rule files or directories. Empty means the built-in policy.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// Watch enables hot reload while serving.
	Watch bool `yaml:"watch"`
}

// GridConfig describes the booking grid.
type GridConfig struct {
	// Resources is the number of bookable resources.
	Resources int `yaml:"resources" validate:"min=1,max=64"`
}

// AdmissionConfig controls Rego admission policies.
type AdmissionConfig struct {
	Enabled bool `yaml:"enabled"`

	// Paths are extra .rego files or directories.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// WeeklyHourCap is passed to the builtin weekly-hour-cap policy.
	WeeklyHourCap int `yaml:"weekly_hour_cap" validate:"min=0,max=168"`
}

// TelemetryConfig is the YAML view of telemetry.Config.
type TelemetryConfig struct {
	Environment string `yaml:"environment"`

	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`
	LogOutput string `yaml:"log_output"`
	LogCaller bool   `yaml:"log_caller"`

	TraceExporter string        `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`
	TraceEndpoint string        `yaml:"trace_endpoint"`
	TraceInsecure bool          `yaml:"trace_insecure"`
	SamplingRate  float64       `yaml:"sampling_rate" validate:"min=0,max=1"`
	ExportTimeout time.Duration `yaml:"export_timeout"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddress string `yaml:"metrics_address"`
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: "rsvp.db"},
		Rules:    RulesConfig{Watch: true},
		Grid:     GridConfig{Resources: 4},
		Admission: AdmissionConfig{
			Enabled:       true,
			WeeklyHourCap: 12,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			LogLevel:       "info",
			LogFormat:      "console",
			LogOutput:      "stderr",
			TraceExporter:  "none",
			TraceInsecure:  true,
			SamplingRate:   1.0,
			ExportTimeout:  30 * time.Second,
			MetricsEnabled: true,
			MetricsAddress: ":9090",
		},
	}
}

// LoadAppConfig reads path over the defaults. A missing file yields the
// defaults unless required is set.
func LoadAppConfig(path string, required bool) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// TelemetryConfig maps the telemetry section onto a telemetry.Config.
func (c *AppConfig) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	if version != "" {
		tc.ServiceVersion = version
	}
	t := c.Telemetry

	if t.Environment != "" {
		tc.Environment = t.Environment
	}
	if t.LogLevel != "" {
		tc.Logging.Level = t.LogLevel
	}
	if t.LogFormat != "" {
		tc.Logging.Format = t.LogFormat
	}
	if t.LogOutput != "" {
		tc.Logging.Output = t.LogOutput
	}
	tc.Logging.EnableCaller = t.LogCaller

	tc.Tracing.Enabled = t.TraceExporter != "" && t.TraceExporter != "none"
	if tc.Tracing.Enabled {
		tc.Tracing.Exporter = t.TraceExporter
	} else {
		tc.Tracing.Exporter = "none"
	}
	tc.Tracing.Endpoint = t.TraceEndpoint
	tc.Tracing.Insecure = t.TraceInsecure
	tc.Tracing.SamplingRate = t.SamplingRate
	if t.ExportTimeout > 0 {
		tc.Tracing.ExportTimeout = t.ExportTimeout
	}

	tc.Metrics.Enabled = t.MetricsEnabled
	if t.MetricsAddress != "" {
		tc.Metrics.ListenAddress = t.MetricsAddress
	}
	return tc
}
