package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from layered YAML files and the environment.
type Loader struct {
	// basePath is the directory holding the YAML files
	basePath    string
	environment Environment
	sources     []string
	lookupEnv   func(string) (string, bool)
}

// NewLoader creates a loader reading files from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	return &Loader{
		basePath:    basePath,
		environment: env,
		lookupEnv:   os.LookupEnv,
	}
}

// Load builds the configuration. The loading order (from lowest to highest priority):
//  1. Default values (in code)
//  2. base.yaml
//  3. {environment}.yaml
//  4. local.yaml (development only)
//  5. Environment variables
func (l *Loader) Load() (*Config, error) {
	l.sources = []string{"defaults"}
	cfg := Default(l.environment)

	if err := l.loadFile("base", cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")

	// A file may not move the environment away from the one being loaded
	cfg.Environment = l.environment
	cfg.LoadedFrom = l.sources

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays name.yaml (or name.yml) onto cfg.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.basePath, fmt.Sprintf("%s.%s", name, ext))

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			*dst = val
		}
	}
	integer := func(key string, dst *int) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	// Server
	str("SERVER_HOST", &cfg.Server.Host)
	integer("SERVER_PORT", &cfg.Server.Port)
	if val, ok := l.lookupEnv("ALLOWED_ORIGINS"); ok && val != "" {
		cfg.Server.AllowedOrigins = strings.Split(val, ",")
	}

	// Graph
	float("SIMILARITY_THRESHOLD", &cfg.Graph.SimilarityThreshold)
	integer("RELATED_IDEAS", &cfg.Graph.RelatedIdeas)
	integer("MAX_IDEAS", &cfg.Graph.MaxIdeas)
	duration("SESSION_TTL", &cfg.Graph.SessionTTL)

	// Store
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("TABLE_NAME", &cfg.Store.TableName)
	str("SEED_FILE", &cfg.Store.SeedFile)
	integer("STORE_MAX_RETRIES", &cfg.Store.MaxRetries)

	// AWS
	str("AWS_REGION", &cfg.AWS.Region)

	// Events
	boolean("ENABLE_EVENTS", &cfg.Events.Enabled)
	str("EVENT_BUS_NAME", &cfg.Events.EventBusName)

	// Observability
	boolean("ENABLE_METRICS", &cfg.Observability.MetricsEnabled)
	boolean("ENABLE_TRACING", &cfg.Observability.TracingEnabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	str("SERVICE_NAME", &cfg.Observability.ServiceName)

	boolean("ENABLE_CIRCUIT_BREAKER", &cfg.CircuitBreaker.Enabled)
	str("LOG_LEVEL", &cfg.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Sources returns where the last Load read configuration from.
func (l *Loader) Sources() []string {
	return append([]string(nil), l.sources...)
}

// Load reads configuration for the environment named by ENVIRONMENT from
// the directory named by CONFIG_DIR (default ./config).
func Load() (*Config, error) {
	return NewDefaultLoader().Load()
}

// NewDefaultLoader creates a loader for CONFIG_DIR and ENVIRONMENT.
func NewDefaultLoader() *Loader {
	return NewLoader(configDir(), GetEnvironment())
}

// GetEnvironment reads ENVIRONMENT, defaulting to development.
func GetEnvironment() Environment {
	switch env := Environment(strings.ToLower(os.Getenv("ENVIRONMENT"))); env {
	case Staging, Production:
		return env
	default:
		return Development
	}
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "./config"
}
