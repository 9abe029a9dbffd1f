package di

import (
	"ideagraph-backend/internal/application"
	"ideagraph-backend/internal/interfaces/http/rest"

	"github.com/google/wire"
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	provideContainer,
)

// ConfigProviders provides configuration and logging.
var ConfigProviders = wire.NewSet(
	provideConfigLoader,
	provideConfig,
	provideLogger,
	provideConfigWatcher,
)

// InfrastructureProviders provides AWS clients, the idea store, event
// publishing and observability.
var InfrastructureProviders = wire.NewSet(
	provideAWSConfig,
	provideDynamoDBClient,
	provideEventBridgeClient,
	provideMetricsCollector,
	provideTracerProvider,
	provideTracer,
	provideIdeaRepository,
	provideIdeaReader,
	providePublisher,
)

// ApplicationProviders provides the session registry and state store and
// the graph and idea services.
var ApplicationProviders = wire.NewSet(
	provideSessionRegistry,
	provideSessionStateStore,
	provideSettings,
	application.NewGraphService,
	application.NewIdeaService,
)

// InterfaceProviders provides the HTTP layer.
var InterfaceProviders = wire.NewSet(
	rest.NewGraphHandler,
	rest.NewIdeaHandler,
	provideRouterConfig,
	provideReadinessCheck,
	provideRouter,
)
