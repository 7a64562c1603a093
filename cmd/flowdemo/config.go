package main

import (
	"fmt"
	"time"

	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/internal/demo/api"
	"github.com/kbukum/flowkit/internal/demo/screens"
	"github.com/kbukum/flowkit/internal/demo/store"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/validation"
)

const serviceName = "flowdemo"

// DemoConfig is the flowdemo configuration. Every field can be set in
// config.yml or through the environment, e.g. API_LATENCY=50ms.
type DemoConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Tick is the length of one unit of the scenario timings.
	Tick  time.Duration `yaml:"tick" mapstructure:"tick" validate:"gte=0"`
	API   api.Config    `yaml:"api" mapstructure:"api"`
	Store store.Config  `yaml:"store" mapstructure:"store"`
	HTTP  sse.Config    `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults fills zero values. Logs go to stderr so scenario output
// owns stdout.
func (c *DemoConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Tick == 0 {
		c.Tick = screens.DefaultTick
	}
	if c.API.Latency == 0 {
		c.API.Latency = 10 * c.Tick
	}
	c.API.ApplyDefaults()
	if c.Store.Dir == "" {
		c.Store.InMemory = true
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks every section.
func (c *DemoConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("config.http: %w", err)
	}
	return nil
}

// loadConfig reads config.yml (or path), the .env file and the environment.
func loadConfig(path string) (*DemoConfig, error) {
	cfg := &DemoConfig{}
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
