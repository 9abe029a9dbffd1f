package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ideagraph-backend/internal/application"
	"ideagraph-backend/internal/config"
	"ideagraph-backend/internal/infrastructure/messaging"
	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/internal/infrastructure/persistence"
	"ideagraph-backend/internal/infrastructure/persistence/dynamodb"
	"ideagraph-backend/internal/infrastructure/persistence/file"
	"ideagraph-backend/internal/infrastructure/persistence/memory"
	"ideagraph-backend/internal/infrastructure/tracing"
	"ideagraph-backend/internal/interfaces/http/rest"
	"ideagraph-backend/internal/session"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsEventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ============================================================================
// CONFIGURATION PROVIDERS
// ============================================================================

func provideConfigLoader() *config.Loader {
	return config.NewDefaultLoader()
}

func provideConfig(loader *config.Loader) (*config.Config, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// provideLogger builds a production or development zap logger at the
// configured level.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(zap.Fields(
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("environment", string(cfg.Environment)),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Configuration loaded", zap.Strings("sources", cfg.LoadedFrom))
	return logger, func() { _ = logger.Sync() }, nil
}

func provideConfigWatcher(loader *config.Loader, cfg *config.Config, logger *zap.Logger) (*config.Watcher, func(), error) {
	watcher, err := config.NewWatcher(loader, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return watcher, watcher.Stop, nil
}

// ============================================================================
// INFRASTRUCTURE PROVIDERS - AWS Clients
// ============================================================================

// provideAWSConfig loads AWS credentials only when a component needs them.
func provideAWSConfig(ctx context.Context, cfg *config.Config) (*aws.Config, error) {
	if cfg.Store.Driver != config.StoreDynamoDB && !cfg.Events.Enabled {
		return nil, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx,
		awsConfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &awsCfg, nil
}

func provideDynamoDBClient(awsCfg *aws.Config, cfg *config.Config) *awsDynamodb.Client {
	if awsCfg == nil || cfg.Store.Driver != config.StoreDynamoDB {
		return nil
	}
	return awsDynamodb.NewFromConfig(*awsCfg, func(o *awsDynamodb.Options) {
		o.HTTPClient = &http.Client{Timeout: cfg.Store.Timeout}
	})
}

func provideEventBridgeClient(awsCfg *aws.Config, cfg *config.Config) *awsEventbridge.Client {
	if awsCfg == nil || !cfg.Events.Enabled {
		return nil
	}
	return awsEventbridge.NewFromConfig(*awsCfg, func(o *awsEventbridge.Options) {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	})
}

// ============================================================================
// INFRASTRUCTURE PROVIDERS - Store, Events, Observability
// ============================================================================

func provideMetricsCollector() *observability.Collector {
	return observability.NewCollector("ideagraph")
}

func provideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*tracing.TracerProvider, func(), error) {
	tp, err := tracing.InitTracing(ctx, tracing.Config{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.Observability.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Observability.OTLPEndpoint,
		SampleRate:  cfg.Observability.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideTracer(tp *tracing.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// provideIdeaRepository selects the store named by store.driver.
func provideIdeaRepository(ctx context.Context, cfg *config.Config, client *awsDynamodb.Client, logger *zap.Logger) (persistence.IdeaRepository, error) {
	switch cfg.Store.Driver {
	case config.StoreDynamoDB:
		if client == nil {
			return nil, fmt.Errorf("dynamodb store selected without a client")
		}
		logger.Info("Using DynamoDB idea store", zap.String("table", cfg.Store.TableName))
		return dynamodb.NewIdeaRepository(client, cfg.Store.TableName, logger), nil

	case config.StoreFile:
		logger.Info("Using file idea store", zap.String("path", cfg.Store.SeedFile))
		return file.NewIdeaRepository(cfg.Store.SeedFile, logger), nil

	default:
		if cfg.Store.SeedFile == "" {
			logger.Info("Using empty in-memory idea store")
			return memory.NewIdeaRepository(), nil
		}
		seed, err := file.NewIdeaRepository(cfg.Store.SeedFile, logger).ListIdeas(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		logger.Info("Using seeded in-memory idea store", zap.Int("ideas", len(seed)))
		return memory.NewSharedIdeaRepository(seed), nil
	}
}

// provideIdeaReader decorates the repository with retries and, outside
// them, a circuit breaker whose state is exported as a gauge.
func provideIdeaReader(repo persistence.IdeaRepository, cfg *config.Config, collector *observability.Collector, logger *zap.Logger) persistence.IdeaReader {
	var reader persistence.IdeaReader = repo
	if cfg.Store.MaxRetries > 0 {
		retry := persistence.DefaultRetryConfig()
		retry.MaxRetries = cfg.Store.MaxRetries
		if cfg.Store.RetryDelay > 0 {
			retry.InitialDelay = cfg.Store.RetryDelay
		}
		reader = persistence.NewRetryIdeaReader(reader, retry, logger)
	}

	if !cfg.CircuitBreaker.Enabled {
		return reader
	}

	name := "idea-store-" + cfg.Store.Driver
	collector.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return persistence.NewCircuitBreakerIdeaReader(reader, persistence.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CircuitBreaker.MaxRequests,
		Interval:     cfg.CircuitBreaker.Interval,
		Timeout:      cfg.CircuitBreaker.Timeout,
		FailureRatio: cfg.CircuitBreaker.FailureRatio,
		MinRequests:  cfg.CircuitBreaker.MinRequests,
	}, logger, func(name string, _, to gobreaker.State) {
		collector.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	})
}

func providePublisher(cfg *config.Config, client *awsEventbridge.Client, logger *zap.Logger) messaging.Publisher {
	if !cfg.Events.Enabled || client == nil {
		return messaging.NewLogPublisher(logger)
	}
	return messaging.NewEventBridgePublisher(client, cfg.Events.EventBusName, cfg.Events.Source, logger)
}

// ============================================================================
// APPLICATION PROVIDERS
// ============================================================================

func provideSessionRegistry(cfg *config.Config, logger *zap.Logger) *session.Registry {
	return session.NewRegistry(cfg.Graph.SessionTTL, logger)
}

// provideSessionStateStore keeps session state in the idea table when the
// DynamoDB store is in use, so that any instance can serve any session.
// Other drivers keep sessions in the process registry only.
func provideSessionStateStore(cfg *config.Config, client *awsDynamodb.Client, logger *zap.Logger) session.StateStore {
	if cfg.Store.Driver != config.StoreDynamoDB || client == nil {
		return nil
	}
	logger.Info("Keeping session state in DynamoDB",
		zap.String("table", cfg.Store.TableName),
		zap.Duration("ttl", cfg.Graph.SessionTTL),
	)
	return dynamodb.NewSessionStore(client, cfg.Store.TableName, cfg.Graph.SessionTTL, logger)
}

func provideSettings(cfg *config.Config) application.Settings {
	return SettingsFrom(cfg)
}

// SettingsFrom extracts the runtime-adjustable service settings.
func SettingsFrom(cfg *config.Config) application.Settings {
	return application.Settings{
		DefaultThreshold: cfg.Graph.SimilarityThreshold,
		RelatedIdeas:     cfg.Graph.RelatedIdeas,
		MaxIdeas:         cfg.Graph.MaxIdeas,
	}
}

// ============================================================================
// INTERFACE PROVIDERS
// ============================================================================

func provideRouterConfig(cfg *config.Config) rest.RouterConfig {
	return rest.RouterConfig{
		ServiceName:    cfg.Observability.ServiceName,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
		EnableMetrics:  cfg.Observability.MetricsEnabled,
		EnableTracing:  cfg.Observability.TracingEnabled,
	}
}

// provideReadinessCheck reports not ready while the store breaker is open.
func provideReadinessCheck(reader persistence.IdeaReader) rest.ReadinessCheck {
	return func(context.Context) error {
		if breaker, ok := reader.(*persistence.CircuitBreakerIdeaReader); ok {
			if breaker.State() == gobreaker.StateOpen {
				return fmt.Errorf("idea store circuit breaker is open")
			}
		}
		return nil
	}
}

func provideRouter(
	cfg rest.RouterConfig,
	graphHandler *rest.GraphHandler,
	ideaHandler *rest.IdeaHandler,
	collector *observability.Collector,
	ready rest.ReadinessCheck,
	logger *zap.Logger,
) *chi.Mux {
	return rest.NewRouter(cfg, graphHandler, ideaHandler, collector, ready, logger)
}
