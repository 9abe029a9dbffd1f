package application

import (
	"context"
	"sort"
	"time"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/infrastructure/messaging"
	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/internal/infrastructure/persistence"
	"ideagraph-backend/internal/infrastructure/tracing"
	appErrors "ideagraph-backend/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// IdeaService stores and reads a user's distilled ideas.
type IdeaService struct {
	repo      persistence.IdeaRepository
	publisher messaging.Publisher
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// NewIdeaService creates the service.
func NewIdeaService(
	repo persistence.IdeaRepository,
	publisher messaging.Publisher,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *IdeaService {
	return &IdeaService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
		now:       time.Now,
	}
}

// SaveIdea validates and stores an idea. A new idea starts at version 1;
// replacing one bumps the stored version and keeps its creation time.
func (s *IdeaService) SaveIdea(ctx context.Context, userID string, it idea.Idea) (saved idea.Idea, err error) {
	ctx, span := s.tracer.Start(ctx, "IdeaService.SaveIdea", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("idea.id", it.ID),
	))
	defer func() { tracing.End(span, err) }()

	if userID == "" {
		return idea.Idea{}, appErrors.NewValidation("user id is required")
	}
	if err := it.Validate(); err != nil {
		return idea.Idea{}, err
	}
	s.warnUnknownTypes(userID, it)

	now := s.now().UTC()
	started := time.Now()
	existing, err := s.repo.GetIdea(ctx, userID, it.ID)
	s.metrics.ObserveStore("get_idea", started, ignoreNotFound(err))
	switch {
	case err == nil:
		it.Version = existing.Version + 1
		if it.CreatedAt.IsZero() {
			it.CreatedAt = existing.CreatedAt
		}
		it.LastModified = &now
	case appErrors.IsNotFound(err):
		it.Version = 1
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.LastModified = nil
	default:
		return idea.Idea{}, appErrors.Wrap(err, "failed to read idea")
	}

	started = time.Now()
	err = s.repo.SaveIdea(ctx, userID, it)
	s.metrics.ObserveStore("save_idea", started, err)
	if err != nil {
		return idea.Idea{}, appErrors.Wrap(err, "failed to save idea")
	}

	s.logger.Info("Idea saved",
		zap.String("userID", userID),
		zap.String("ideaID", it.ID),
		zap.Int("version", it.Version),
	)

	event := messaging.IdeaSaved(userID, it.ID, it.Version)
	publishErr := s.publisher.Publish(ctx, event)
	s.metrics.ObserveEvent(event.EventType, publishErr)
	if publishErr != nil {
		s.logger.Warn("Failed to publish idea event", zap.String("ideaID", it.ID), zap.Error(publishErr))
	}
	return it, nil
}

// GetIdea returns one of the user's ideas.
func (s *IdeaService) GetIdea(ctx context.Context, userID, ideaID string) (it idea.Idea, err error) {
	ctx, span := s.tracer.Start(ctx, "IdeaService.GetIdea", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("idea.id", ideaID),
	))
	defer func() { tracing.End(span, err) }()

	if userID == "" {
		return idea.Idea{}, appErrors.NewValidation("user id is required")
	}

	started := time.Now()
	it, err = s.repo.GetIdea(ctx, userID, ideaID)
	s.metrics.ObserveStore("get_idea", started, ignoreNotFound(err))
	if err != nil {
		return idea.Idea{}, appErrors.Wrap(err, "failed to read idea")
	}
	return it, nil
}

// ListIdeas returns the user's ideas, newest first.
func (s *IdeaService) ListIdeas(ctx context.Context, userID string) (ideas []idea.Idea, err error) {
	ctx, span := s.tracer.Start(ctx, "IdeaService.ListIdeas", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer func() { tracing.End(span, err) }()

	if userID == "" {
		return nil, appErrors.NewValidation("user id is required")
	}

	started := time.Now()
	ideas, err = s.repo.ListIdeas(ctx, userID)
	s.metrics.ObserveStore("list_ideas", started, err)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load ideas")
	}

	sort.SliceStable(ideas, func(i, j int) bool {
		return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
	})
	return ideas, nil
}

// warnUnknownTypes logs concept types outside the distiller's vocabulary.
// They are stored and projected unchanged.
func (s *IdeaService) warnUnknownTypes(userID string, it idea.Idea) {
	for _, n := range it.ConceptGraph.Nodes {
		if !n.Type.IsKnown() {
			s.logger.Warn("Idea has an unknown entity type",
				zap.String("userID", userID),
				zap.String("ideaID", it.ID),
				zap.String("nodeID", n.ID),
				zap.String("type", string(n.Type)),
			)
		}
	}
	for _, e := range it.ConceptGraph.Edges {
		if !e.Relation.IsKnown() {
			s.logger.Warn("Idea has an unknown relation type",
				zap.String("userID", userID),
				zap.String("ideaID", it.ID),
				zap.String("source", e.SourceID),
				zap.String("target", e.TargetID),
				zap.String("relation", string(e.Relation)),
			)
		}
	}
}

func ignoreNotFound(err error) error {
	if appErrors.IsNotFound(err) {
		return nil
	}
	return err
}
