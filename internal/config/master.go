// Package config parses the environment-variable configuration for
// cmd/master and cmd/slave using caarlos0/env struct tags, the same
// approach fairyhunter13-ai-cv-evaluator's internal/config uses — the
// struct-tag equivalent of the teacher's hand-rolled envOrDefault helper.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// ECSConfig configures the ecsalloc allocator variant.
type ECSConfig struct {
	Cluster          string   `env:"VIZSCHED_ECS_CLUSTER"`
	TaskDefinition   string   `env:"VIZSCHED_ECS_TASK_DEFINITION"`
	CapacityProvider string   `env:"VIZSCHED_ECS_CAPACITY_PROVIDER"`
	Subnets          []string `env:"VIZSCHED_ECS_SUBNETS" envSeparator:","`
	SecurityGroups   []string `env:"VIZSCHED_ECS_SECURITY_GROUPS" envSeparator:","`
	Bucket           string   `env:"VIZSCHED_ECS_BUCKET"`
	Mount            string   `env:"VIZSCHED_ECS_MOUNT"`
	HealthPort       int      `env:"VIZSCHED_ECS_HEALTH_PORT" envDefault:"8443"`
}

// UnicoreConfig configures the unicorealloc allocator variant.
type UnicoreConfig struct {
	BaseURL   string `env:"VIZSCHED_UNICORE_BASE_URL"`
	DNSSuffix string `env:"VIZSCHED_UNICORE_DNS_SUFFIX"`
	CAFile    string `env:"VIZSCHED_UNICORE_CA_FILE"`
}

// IDPConfig configures the authn.Remote identity-provider client.
type IDPConfig struct {
	Enabled bool   `env:"VIZSCHED_IDP_ENABLED" envDefault:"false"`
	URL     string `env:"VIZSCHED_IDP_URL"`
	Host    string `env:"VIZSCHED_IDP_HOST"`
}

// Master holds every environment-configurable setting for cmd/master.
type Master struct {
	HTTPAddr      string        `env:"VIZSCHED_HTTP_ADDR" envDefault:":8080"`
	LogLevel      string        `env:"VIZSCHED_LOG_LEVEL" envDefault:"info"`
	Allocator     string        `env:"VIZSCHED_ALLOCATOR" envDefault:"TEST"`
	JobDuration   time.Duration `env:"VIZSCHED_JOB_DURATION" envDefault:"1h"`
	CleanupPeriod time.Duration `env:"VIZSCHED_CLEANUP_PERIOD" envDefault:"10s"`
	ProxyBaseURL  string        `env:"VIZSCHED_PROXY_BASE_URL"`

	Registry RegistryConfig
	TLS      TLSConfig
	IDP      IDPConfig
	ECS      ECSConfig
	Unicore  UnicoreConfig
}

// LoadMaster parses the master binary's configuration from the environment.
func LoadMaster() (Master, error) {
	var cfg Master
	if err := env.Parse(&cfg); err != nil {
		return Master{}, fmt.Errorf("config: parse master: %w", err)
	}
	return cfg, nil
}
