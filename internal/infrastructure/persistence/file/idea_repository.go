// Package file serves ideas from a JSON file of distilled idea documents.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/persistence"
	appErrors "ideagraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// IdeaRepository reads a JSON array of idea documents. The file is re-read
// when its modification time changes. Every user sees the same ideas.
type IdeaRepository struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	modTime time.Time
	ideas   []idea.Idea
}

var _ persistence.IdeaRepository = (*IdeaRepository)(nil)

// NewIdeaRepository creates a repository over path. The file is not read
// until the first call.
func NewIdeaRepository(path string, logger *zap.Logger) *IdeaRepository {
	return &IdeaRepository{path: path, logger: logger}
}

// ListIdeas returns the ideas in file order.
func (r *IdeaRepository) ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.FromContext(err, "idea file read abandoned")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refresh(); err != nil {
		return nil, err
	}
	return append([]idea.Idea(nil), r.ideas...), nil
}

// GetIdea returns a single idea from the file.
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

// SaveIdea inserts or replaces an idea and rewrites the file.
func (r *IdeaRepository) SaveIdea(ctx context.Context, userID string, it idea.Idea) error {
	if err := ctx.Err(); err != nil {
		return appErrors.FromContext(err, "idea file write abandoned")
	}
	if err := it.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refresh(); err != nil && !appErrors.IsUnavailable(err) {
		return err
	}

	ideas := append([]idea.Idea(nil), r.ideas...)
	if idx := idea.IndexOf(ideas, it.ID); idx >= 0 {
		ideas[idx] = it
	} else {
		ideas = append(ideas, it)
	}

	data, err := json.MarshalIndent(ideas, "", "  ")
	if err != nil {
		return appErrors.NewInternal("failed to encode ideas", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return appErrors.NewInternal("failed to write idea file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return appErrors.NewInternal("failed to replace idea file", err)
	}

	r.ideas = ideas
	r.modTime = time.Time{}
	return nil
}

// refresh reloads the file when it changed since the last read. Caller holds mu.
func (r *IdeaRepository) refresh() error {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.ideas = nil
			return appErrors.NewUnavailable(fmt.Sprintf("idea file %s does not exist", r.path), err)
		}
		return appErrors.NewInternal("failed to stat idea file", err)
	}
	if !r.modTime.IsZero() && info.ModTime().Equal(r.modTime) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return appErrors.NewInternal("failed to read idea file", err)
	}

	var ideas []idea.Idea
	if err := json.Unmarshal(data, &ideas); err != nil {
		return appErrors.NewValidation(fmt.Sprintf("idea file %s is not a valid idea document list: %v", r.path, err))
	}
	for _, it := range ideas {
		if err := it.Validate(); err != nil {
			return err
		}
	}

	r.ideas = ideas
	r.modTime = info.ModTime()
	if r.logger != nil {
		r.logger.Info("Loaded idea file",
			zap.String("path", r.path),
			zap.Int("ideas", len(ideas)),
		)
	}
	return nil
}
