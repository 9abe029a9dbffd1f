package application

import (
	"context"
	"testing"
	"time"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/messaging"
	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/internal/infrastructure/persistence/memory"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type ideaFixture struct {
	service   *IdeaService
	repo      *memory.IdeaRepository
	publisher *recordingPublisher
	metrics   *observability.Collector
	logs      *observer.ObservedLogs
	clock     time.Time
}

func newIdeaFixture() *ideaFixture {
	core, logs := observer.New(zapcore.WarnLevel)
	f := &ideaFixture{
		repo:      memory.NewIdeaRepository(),
		publisher: &recordingPublisher{},
		metrics:   observability.NewCollector("test"),
		logs:      logs,
		clock:     time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewIdeaService(f.repo, f.publisher, f.metrics, noop.NewTracerProvider().Tracer("test"), zap.New(core))
	f.service.now = func() time.Time { return f.clock }
	return f
}

func TestSaveIdeaAssignsVersions(t *testing.T) {
	f := newIdeaFixture()
	ctx := context.Background()

	saved, err := f.service.SaveIdea(ctx, "u1", idea.Idea{ID: "i1", Label: "first", Embedding: []float64{1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, f.clock, saved.CreatedAt)
	assert.Nil(t, saved.LastModified)

	f.clock = f.clock.Add(time.Hour)
	updated, err := f.service.SaveIdea(ctx, "u1", idea.Idea{ID: "i1", Label: "second"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt, "creation time survives a replace")
	require.NotNil(t, updated.LastModified)
	assert.Equal(t, f.clock, *updated.LastModified)

	stored, err := f.service.GetIdea(ctx, "u1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Label)

	assert.Equal(t, []string{messaging.EventIdeaSaved, messaging.EventIdeaSaved}, f.publisher.types())
	assert.Equal(t, 2, f.publisher.last().Data["version"])
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StoreOperations.WithLabelValues("save_idea", "success")))
}

func TestSaveIdeaRejectsInvalidIdeas(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		idea   idea.Idea
	}{
		{"missing user", "", idea.Idea{ID: "i1"}},
		{"missing id", "u1", idea.Idea{Label: "no id"}},
		{"dangling edge", "u1", idea.Idea{ID: "i1", ConceptGraph: idea.ConceptGraph{
			Nodes: []idea.EntityNode{{ID: "n1", Label: "One", Type: idea.EntityConcept}},
			Edges: []idea.RelationEdge{{SourceID: "n1", TargetID: "n9", Relation: idea.RelationEnables}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIdeaFixture()
			_, err := f.service.SaveIdea(context.Background(), tt.userID, tt.idea)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err), "unexpected error: %v", err)
			assert.Empty(t, f.publisher.types())

			ideas, err := f.repo.ListIdeas(context.Background(), "u1")
			require.NoError(t, err)
			assert.Empty(t, ideas)
		})
	}
}

func TestSaveIdeaWarnsOnUnknownTypes(t *testing.T) {
	f := newIdeaFixture()

	_, err := f.service.SaveIdea(context.Background(), "u1", idea.Idea{ID: "i1", ConceptGraph: idea.ConceptGraph{
		Nodes: []idea.EntityNode{
			{ID: "n1", Label: "Orbit", Type: "Planet"},
			{ID: "n2", Label: "Tool", Type: idea.EntityTool},
		},
		Edges: []idea.RelationEdge{{SourceID: "n1", TargetID: "n2", Relation: "orbits"}},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, f.logs.FilterMessage("Idea has an unknown entity type").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("Idea has an unknown relation type").Len())
	assert.Equal(t, "Planet", f.logs.FilterMessage("Idea has an unknown entity type").All()[0].ContextMap()["type"])
}

func TestGetIdeaNotFound(t *testing.T) {
	f := newIdeaFixture()

	_, err := f.service.GetIdea(context.Background(), "u1", "missing")
	assert.True(t, appErrors.IsNotFound(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreOperations.WithLabelValues("get_idea", "success")))
}

func TestListIdeasNewestFirst(t *testing.T) {
	f := newIdeaFixture()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.repo.SaveIdea(ctx, "u1", idea.Idea{ID: "old", CreatedAt: base}))
	require.NoError(t, f.repo.SaveIdea(ctx, "u1", idea.Idea{ID: "new", CreatedAt: base.Add(48 * time.Hour)}))
	require.NoError(t, f.repo.SaveIdea(ctx, "u1", idea.Idea{ID: "middle", CreatedAt: base.Add(24 * time.Hour)}))

	ideas, err := f.service.ListIdeas(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ideas, 3)
	assert.Equal(t, []string{"new", "middle", "old"}, []string{ideas[0].ID, ideas[1].ID, ideas[2].ID})

	_, err = f.service.ListIdeas(ctx, "")
	assert.True(t, appErrors.IsValidation(err))
}

func TestSaveIdeaPublishFailureIsNotFatal(t *testing.T) {
	f := newIdeaFixture()
	f.publisher.err = appErrors.NewUnavailable("bus down", nil)

	_, err := f.service.SaveIdea(context.Background(), "u1", idea.Idea{ID: "i1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessage("Failed to publish idea event").Len())
}
