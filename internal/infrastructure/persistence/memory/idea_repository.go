// Package memory is an in-process idea store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/persistence"
	appErrors "ideagraph-backend/pkg/errors"
)

// IdeaRepository keeps ideas per user in insertion order.
type IdeaRepository struct {
	mu     sync.RWMutex
	byUser map[string][]idea.Idea
	shared []idea.Idea
}

var _ persistence.IdeaRepository = (*IdeaRepository)(nil)

// NewIdeaRepository creates an empty repository.
func NewIdeaRepository() *IdeaRepository {
	return &IdeaRepository{byUser: make(map[string][]idea.Idea)}
}

// NewSharedIdeaRepository creates a repository whose seed ideas are visible to
// every user in addition to the user's own ideas.
func NewSharedIdeaRepository(seed []idea.Idea) *IdeaRepository {
	r := NewIdeaRepository()
	r.shared = append([]idea.Idea(nil), seed...)
	return r
}

// ListIdeas returns the shared seed followed by the user's ideas. A user's
// idea with the id of a seed idea replaces it in place.
func (r *IdeaRepository) ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.FromContext(err, "idea read abandoned")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	own := r.byUser[userID]
	out := make([]idea.Idea, 0, len(r.shared)+len(own))
	out = append(out, r.shared...)
	for _, it := range own {
		if idx := idea.IndexOf(r.shared, it.ID); idx >= 0 {
			out[idx] = it
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// GetIdea returns one idea visible to the user.
func (r *IdeaRepository) GetIdea(ctx context.Context, userID, ideaID string) (idea.Idea, error) {
	ideas, err := r.ListIdeas(ctx, userID)
	if err != nil {
		return idea.Idea{}, err
	}
	if it, ok := idea.Find(ideas, ideaID); ok {
		return it, nil
	}
	return idea.Idea{}, appErrors.NewNotFound(fmt.Sprintf("idea with id %s not found", ideaID))
}

// SaveIdea inserts or replaces an idea, keeping its position on replace.
func (r *IdeaRepository) SaveIdea(ctx context.Context, userID string, it idea.Idea) error {
	if err := ctx.Err(); err != nil {
		return appErrors.FromContext(err, "idea write abandoned")
	}
	if err := it.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ideas := r.byUser[userID]
	if idx := idea.IndexOf(ideas, it.ID); idx >= 0 {
		ideas[idx] = it
		return nil
	}
	r.byUser[userID] = append(ideas, it)
	return nil
}
