package config

import (
	"time"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/validation"
)

// Config is the complete viewkit configuration.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging     logger.Config     `yaml:"logging" mapstructure:"logging"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Store       store.Config      `yaml:"store" mapstructure:"store"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Definitions DefinitionsConfig `yaml:"definitions" mapstructure:"definitions"`
}

// EngineConfig tunes pipeline execution.
type EngineConfig struct {
	// MaxDepth bounds view and sub-pipeline nesting.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth" validate:"gte=1,lte=1024"`
	// Workers is the per-stage parallelism for Match, Project, Lookup and Group.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=1024"`
	// CompileCacheSize is the number of compiled pipelines kept.
	CompileCacheSize int `yaml:"compile_cache_size" mapstructure:"compile_cache_size" validate:"gte=1"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	MetricsEnabled bool    `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	// ExportInterval is the metric export interval, e.g. "15s".
	ExportInterval string `yaml:"export_interval" mapstructure:"export_interval"`
}

// DefinitionsConfig lists files to load at startup.
type DefinitionsConfig struct {
	// Paths are definition files, directories or globs (.js, .json, .yaml).
	Paths []string `yaml:"paths" mapstructure:"paths"`
	// Data are JSON or YAML document arrays, one collection per file.
	Data []string `yaml:"data" mapstructure:"data"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "viewkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// ApplyDefaults fills zero-valued engine settings.
func (c *EngineConfig) ApplyDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = aggregate.DefaultMaxDepth
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.CompileCacheSize <= 0 {
		c.CompileCacheSize = 128
	}
}

// ApplyDefaults fills zero-valued telemetry settings.
func (c *TelemetryConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ExportInterval == "" {
		c.ExportInterval = "15s"
	}
}

// Validate checks struct tags first, then the rules each section owns.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("config", validation.Struct(c))
	v.Merge("logging", c.Logging.Validate())
	v.Merge("store", c.Store.Validate())
	v.Duration("telemetry.export_interval", c.Telemetry.ExportInterval)
	return v.Err()
}

// PipelineOptions returns the aggregate options the engine settings imply.
func (c *EngineConfig) PipelineOptions() ([]aggregate.Option, error) {
	cache, err := aggregate.NewCompileCache(c.CompileCacheSize)
	if err != nil {
		return nil, err
	}
	return []aggregate.Option{
		aggregate.WithMaxDepth(c.MaxDepth),
		aggregate.WithWorkers(c.Workers),
		aggregate.WithCache(cache),
	}, nil
}

// TracerConfig converts the telemetry settings for observability.InitTracer.
func (c *Config) TracerConfig() *observability.TracerConfig {
	return &observability.TracerConfig{
		ServiceName:    c.Name,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// MeterConfig converts the telemetry settings for observability.InitMeter.
func (c *Config) MeterConfig() *observability.MeterConfig {
	interval, _ := time.ParseDuration(c.Telemetry.ExportInterval)
	return &observability.MeterConfig{
		ServiceName:    c.Name,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		Interval:       interval,
	}
}
