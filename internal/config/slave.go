package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Slave holds every environment-configurable setting for cmd/slave.
type Slave struct {
	HTTPAddr     string `env:"VIZSCHED_HTTP_ADDR" envDefault:":8081"`
	LogLevel     string `env:"VIZSCHED_LOG_LEVEL" envDefault:"info"`
	RendererPort int    `env:"VIZSCHED_RENDERER_PORT" envDefault:"8443"`
	BackendPort  int    `env:"VIZSCHED_BACKEND_PORT" envDefault:"8443"`

	Registry RegistryConfig
	TLS      TLSConfig
}

// LoadSlave parses the slave binary's configuration from the environment.
func LoadSlave() (Slave, error) {
	var cfg Slave
	if err := env.Parse(&cfg); err != nil {
		return Slave{}, fmt.Errorf("config: parse slave: %w", err)
	}
	return cfg, nil
}
