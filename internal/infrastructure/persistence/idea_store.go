// Package persistence holds the idea store ports and the decorators shared by
// every store driver.
package persistence

import (
	"context"

	"ideagraph-backend/internal/domain/idea"
)

// IdeaReader loads a user's idea snapshot. Implementations return ideas in a
// stable order; the graph views keep that order.
type IdeaReader interface {
	ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error)
}

// IdeaRepository adds single-idea access on top of IdeaReader.
type IdeaRepository interface {
	IdeaReader
	GetIdea(ctx context.Context, userID, ideaID string) (idea.Idea, error)
	SaveIdea(ctx context.Context, userID string, it idea.Idea) error
}
