package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ideagraph-backend/internal/domain/idea"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seed = `[
  {
    "idea_id": "i1",
    "created_at": "2025-01-02T03:04:05Z",
    "content_raw": "Smart contracts remove intermediaries",
    "distilled_data": {
      "one_liner": "Self-executing contracts",
      "tags": ["Web3"],
      "summary": "",
      "graph_structure": {
        "nodes": [{"id": "n1", "name": "Smart Contract", "type": "Tool", "desc": "code"}],
        "edges": []
      }
    },
    "embedding_vector": [0.1, 0.2],
    "version": 1
  },
  {
    "idea_id": "i2",
    "created_at": "2025-01-03 08:00:00",
    "content_raw": "Pending distillation",
    "distilled_data": {"one_liner": "Pending", "tags": [], "summary": "", "graph_structure": {"nodes": [], "edges": []}}
  }
]`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ideas.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListIdeas(t *testing.T) {
	repo := NewIdeaRepository(writeSeed(t, seed), zap.NewNop())

	ideas, err := repo.ListIdeas(context.Background(), "anyone")
	require.NoError(t, err)
	require.Len(t, ideas, 2)

	assert.Equal(t, "i1", ideas[0].ID)
	assert.Equal(t, "Self-executing contracts", ideas[0].Label)
	assert.Equal(t, []float64{0.1, 0.2}, ideas[0].Embedding)
	assert.Equal(t, "Smart Contract", ideas[0].ConceptGraph.Nodes[0].Label)
	assert.False(t, ideas[1].HasEmbedding())
	assert.Equal(t, 2025, ideas[1].CreatedAt.Year())
}

func TestListIdeasErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		repo := NewIdeaRepository(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
		_, err := repo.ListIdeas(context.Background(), "u1")
		assert.True(t, appErrors.IsUnavailable(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		repo := NewIdeaRepository(writeSeed(t, `{"not": "a list"}`), zap.NewNop())
		_, err := repo.ListIdeas(context.Background(), "u1")
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("dangling concept edge", func(t *testing.T) {
		doc := `[{"idea_id": "x", "distilled_data": {"graph_structure": {"nodes": [], "edges": [{"source": "a", "target": "b", "relation": "causes"}]}}}]`
		repo := NewIdeaRepository(writeSeed(t, doc), zap.NewNop())
		_, err := repo.ListIdeas(context.Background(), "u1")
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestSaveIdeaRewritesFile(t *testing.T) {
	path := writeSeed(t, seed)
	repo := NewIdeaRepository(path, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.SaveIdea(ctx, "u1", idea.Idea{ID: "i3", Label: "new", CreatedAt: time.Now()}))
	require.NoError(t, repo.SaveIdea(ctx, "u1", idea.Idea{ID: "i1", Label: "renamed"}))

	fresh := NewIdeaRepository(path, zap.NewNop())
	ideas, err := fresh.ListIdeas(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ideas, 3)
	assert.Equal(t, "renamed", ideas[0].Label)
	assert.Equal(t, "i3", ideas[2].ID)

	got, err := fresh.GetIdea(ctx, "u1", "i3")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Label)

	_, err = fresh.GetIdea(ctx, "u1", "nope")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestAbandonedRequests(t *testing.T) {
	repo := NewIdeaRepository(writeSeed(t, seed), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListIdeas(ctx, "u1")
	assert.True(t, appErrors.IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, appErrors.IsCanceled(repo.SaveIdea(ctx, "u1", idea.Idea{ID: "i9"})))
}
