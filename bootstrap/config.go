package bootstrap

import (
	"github.com/kbukum/flowkit/config"
)

// Config is satisfied by config.ServiceConfig and by any struct embedding it.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
