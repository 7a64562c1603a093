package stream

import (
	"runtime"

	"github.com/kbukum/flowkit/validation"
)

// Config sizes the dispatcher pools.
type Config struct {
	// ComputationParallelism is the number of computation carriers. 0 means GOMAXPROCS.
	ComputationParallelism int `yaml:"computation_parallelism" mapstructure:"computation_parallelism" validate:"gte=0,lte=4096"`
	// BlockingIOParallelism is the number of blocking-io carriers. 0 means 64.
	BlockingIOParallelism int `yaml:"blocking_io_parallelism" mapstructure:"blocking_io_parallelism" validate:"gte=0,lte=65536"`
}

// DefaultConfig returns the process defaults.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ComputationParallelism == 0 {
		c.ComputationParallelism = runtime.GOMAXPROCS(0)
	}
	if c.BlockingIOParallelism == 0 {
		c.BlockingIOParallelism = 64
	}
}

// Validate checks the configured bounds.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
