// Package config loads and validates service configuration.
//
// Configuration is layered, lowest priority first: defaults in code,
// base.yaml, {environment}.yaml, local.yaml (development only), then
// environment variables.
package config

import (
	"fmt"
	"time"

	"ideagraph-backend/pkg/validation"
)

// Environment is the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Environment    Environment    `yaml:"environment" validate:"required,oneof=development staging production"`
	Server         Server         `yaml:"server"`
	Graph          Graph          `yaml:"graph"`
	Store          Store          `yaml:"store"`
	AWS            AWS            `yaml:"aws"`
	Events         Events         `yaml:"events"`
	Observability  Observability  `yaml:"observability"`
	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker"`
	LogLevel       string         `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LoadedFrom lists the sources applied, in order
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP listener
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// Graph configures graph level sessions
type Graph struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	RelatedIdeas        int           `yaml:"related_ideas" validate:"min=1,max=100"`
	MaxIdeas            int           `yaml:"max_ideas" validate:"min=1"`
	SessionTTL          time.Duration `yaml:"session_ttl" validate:"gte=0"`
	SweepInterval       time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

// Store selects and configures the idea store
type Store struct {
	Driver     string        `yaml:"driver" validate:"oneof=memory file dynamodb"`
	TableName  string        `yaml:"table_name"`
	SeedFile   string        `yaml:"seed_file"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
}

// AWS holds settings shared by the AWS clients
type AWS struct {
	Region string `yaml:"region"`
}

// Events configures domain event publishing
type Events struct {
	Enabled      bool   `yaml:"enabled"`
	EventBusName string `yaml:"event_bus_name"`
	Source       string `yaml:"source"`
}

// Observability toggles metrics and tracing
type Observability struct {
	MetricsEnabled bool    `yaml:"metrics_enabled"`
	TracingEnabled bool    `yaml:"tracing_enabled"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	ServiceName    string  `yaml:"service_name" validate:"required"`
	SampleRate     float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// CircuitBreaker configures the breaker around the idea store
type CircuitBreaker struct {
	Enabled      bool          `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests" validate:"min=1"`
	Interval     time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureRatio float64       `yaml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `yaml:"min_requests" validate:"min=1"`
}

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreFile:
		if c.Store.SeedFile == "" {
			return validation.Field("store.seed_file", "is required for the file driver")
		}
	case StoreDynamoDB:
		if c.Store.TableName == "" {
			return validation.Field("store.table_name", "is required for the dynamodb driver")
		}
		if c.AWS.Region == "" {
			return validation.Field("aws.region", "is required for the dynamodb driver")
		}
	}

	if c.Events.Enabled && c.Events.EventBusName == "" {
		return validation.Field("events.event_bus_name", "is required when events are enabled")
	}
	if c.Observability.TracingEnabled && c.Observability.OTLPEndpoint == "" {
		return validation.Field("observability.otlp_endpoint", "is required when tracing is enabled")
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Default returns a configuration that runs locally without any files.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Graph: Graph{
			SimilarityThreshold: 0.7,
			RelatedIdeas:        3,
			MaxIdeas:            5000,
			SessionTTL:          30 * time.Minute,
			SweepInterval:       time.Minute,
		},
		Store: Store{
			Driver:     StoreMemory,
			TableName:  "ideagraph-" + string(env),
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RetryDelay: 100 * time.Millisecond,
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		Events: Events{
			EventBusName: "ideagraph-events",
			Source:       "ideagraph.graph",
		},
		Observability: Observability{
			MetricsEnabled: true,
			ServiceName:    "ideagraph-backend",
			SampleRate:     0.1,
		},
		CircuitBreaker: CircuitBreaker{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     10 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.5,
			MinRequests:  10,
		},
		LogLevel: "info",
	}
}
