package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ideagraph-backend/internal/config"
	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/messaging"
	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/internal/infrastructure/persistence"
	"ideagraph-backend/internal/infrastructure/persistence/dynamodb"
	"ideagraph-backend/internal/infrastructure/persistence/file"
	"ideagraph-backend/internal/infrastructure/persistence/memory"

	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedJSON = `[
  {
    "idea_id": "A",
    "content_raw": "alpha",
    "distilled_data": {"one_liner": "Alpha", "tags": [], "summary": "", "graph_structure": {"nodes": [], "edges": []}},
    "embedding_vector": [1, 0]
  },
  {
    "idea_id": "B",
    "content_raw": "beta",
    "distilled_data": {"one_liner": "Beta", "tags": [], "summary": "", "graph_structure": {"nodes": [], "edges": []}},
    "embedding_vector": [0, 1]
  }
]`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ideas.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o644))
	return path
}

func TestProvideIdeaRepository(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("empty memory store", func(t *testing.T) {
		cfg := config.Default(config.Development)
		repo, err := provideIdeaRepository(ctx, cfg, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &memory.IdeaRepository{}, repo)

		ideas, err := repo.ListIdeas(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, ideas)
	})

	t.Run("seeded memory store", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Store.SeedFile = writeSeed(t)

		repo, err := provideIdeaRepository(ctx, cfg, nil, logger)
		require.NoError(t, err)
		ideas, err := repo.ListIdeas(ctx, "anyone")
		require.NoError(t, err)
		assert.Len(t, ideas, 2)
	})

	t.Run("missing seed file", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Store.SeedFile = filepath.Join(t.TempDir(), "missing.json")

		_, err := provideIdeaRepository(ctx, cfg, nil, logger)
		assert.Error(t, err)
	})

	t.Run("file store", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Store.Driver = config.StoreFile
		cfg.Store.SeedFile = writeSeed(t)

		repo, err := provideIdeaRepository(ctx, cfg, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &file.IdeaRepository{}, repo)
	})

	t.Run("dynamodb without client", func(t *testing.T) {
		cfg := config.Default(config.Development)
		cfg.Store.Driver = config.StoreDynamoDB

		_, err := provideIdeaRepository(ctx, cfg, nil, logger)
		assert.Error(t, err)
	})
}

type brokenReader struct{}

func (brokenReader) ListIdeas(context.Context, string) ([]idea.Idea, error) {
	return nil, errors.New("store down")
}

func (brokenReader) GetIdea(context.Context, string, string) (idea.Idea, error) {
	return idea.Idea{}, errors.New("store down")
}

func (brokenReader) SaveIdea(context.Context, string, idea.Idea) error {
	return errors.New("store down")
}

func TestCircuitBreakerReadiness(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.CircuitBreaker.MinRequests = 2
	cfg.CircuitBreaker.FailureRatio = 0.5
	cfg.Store.MaxRetries = 0
	collector := observability.NewCollector("test")

	reader := provideIdeaReader(brokenReader{}, cfg, collector, zap.NewNop())
	require.IsType(t, &persistence.CircuitBreakerIdeaReader{}, reader)

	ready := provideReadinessCheck(reader)
	assert.NoError(t, ready(context.Background()))

	for i := 0; i < 3; i++ {
		_, _ = reader.ListIdeas(context.Background(), "u1")
	}

	assert.Error(t, ready(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.CircuitBreakerState.WithLabelValues("idea-store-memory")))
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.CircuitBreaker.Enabled = false
	cfg.Store.MaxRetries = 0

	repo := memory.NewIdeaRepository()
	reader := provideIdeaReader(repo, cfg, observability.NewCollector("test"), zap.NewNop())
	assert.Same(t, repo, reader)
	assert.NoError(t, provideReadinessCheck(reader)(context.Background()))
}

func TestRetryWrapsStore(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.CircuitBreaker.Enabled = false

	reader := provideIdeaReader(memory.NewIdeaRepository(), cfg, observability.NewCollector("test"), zap.NewNop())
	assert.IsType(t, &persistence.RetryIdeaReader{}, reader)
}

func TestProvidePublisherFallsBackToLog(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Events.Enabled = true

	publisher := providePublisher(cfg, nil, zap.NewNop())
	assert.IsType(t, &messaging.LogPublisher{}, publisher)
}

func TestSettingsFrom(t *testing.T) {
	cfg := config.Default(config.Production)
	cfg.Graph.SimilarityThreshold = 0.4
	cfg.Graph.RelatedIdeas = 5
	cfg.Graph.MaxIdeas = 10

	settings := SettingsFrom(cfg)
	assert.Equal(t, 0.4, settings.DefaultThreshold)
	assert.Equal(t, 5, settings.RelatedIdeas)
	assert.Equal(t, 10, settings.MaxIdeas)
}

func TestProvideAWSConfigSkippedWhenUnused(t *testing.T) {
	cfg := config.Default(config.Development)
	awsCfg, err := provideAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, awsCfg)
	assert.Nil(t, provideDynamoDBClient(awsCfg, cfg))
	assert.Nil(t, provideEventBridgeClient(awsCfg, cfg))
}

func TestProvideSessionStateStore(t *testing.T) {
	logger := zap.NewNop()

	cfg := config.Default(config.Development)
	assert.Nil(t, provideSessionStateStore(cfg, nil, logger), "in-process sessions outside dynamodb")

	cfg.Store.Driver = config.StoreDynamoDB
	assert.Nil(t, provideSessionStateStore(cfg, nil, logger))

	client := awsDynamodb.New(awsDynamodb.Options{Region: "us-east-1"})
	store := provideSessionStateStore(cfg, client, logger)
	require.NotNil(t, store)
	assert.IsType(t, &dynamodb.SessionStore{}, store)
}
