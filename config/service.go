package config

import (
	"fmt"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/stream"
	"github.com/kbukum/flowkit/validation"
)

// Environments accepted by ServiceConfig.Validate.
var Environments = []string{"development", "staging", "production"}

// ServiceConfig is the configuration of a flowkit process. Commands embed
// it when they need more sections.
//
//	type ServeConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    HTTP sse.Config      `yaml:"http" mapstructure:"http"`
//	}
type ServiceConfig struct {
	Name        string                     `yaml:"name" mapstructure:"name"`
	Environment string                     `yaml:"environment" mapstructure:"environment"`
	Version     string                     `yaml:"version" mapstructure:"version"`
	Debug       bool                       `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config              `yaml:"logging" mapstructure:"logging"`
	Stream      stream.Config              `yaml:"stream" mapstructure:"stream"`
	Metrics     observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing     observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

// GetServiceConfig returns the base ServiceConfig. The method is promoted
// through embedding.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills zero values. Embedding structs call it first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Stream.ApplyDefaults()

	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = c.Version
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = c.Version
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
}

// Validate checks every section. Embedding structs call it first.
func (c *ServiceConfig) Validate() error {
	err := validation.New().
		Required("name", c.Name).
		OneOf("environment", c.Environment, Environments).
		Validate()
	if err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return apperrors.Validation("config.logging: " + err.Error()).WithCause(err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("config.stream: %w", err)
	}
	if err := validation.Validate(&c.Metrics); err != nil {
		return fmt.Errorf("config.metrics: %w", err)
	}
	if err := validation.Validate(&c.Tracing); err != nil {
		return fmt.Errorf("config.tracing: %w", err)
	}
	return nil
}
