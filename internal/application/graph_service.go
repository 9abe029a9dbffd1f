// Package application coordinates graph sessions with the idea store, event
// publishing and observability.
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ideagraph-backend/internal/graphlevel"
	"ideagraph-backend/internal/infrastructure/messaging"
	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/internal/infrastructure/persistence"
	"ideagraph-backend/internal/infrastructure/tracing"
	"ideagraph-backend/internal/session"
	appErrors "ideagraph-backend/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Settings are the tunables that may change while the service runs.
type Settings struct {
	DefaultThreshold float64
	RelatedIdeas     int
	MaxIdeas         int
}

// SessionView is the externally visible state of a session.
type SessionView struct {
	SessionID           string           `json:"session_id"`
	UserID              string           `json:"user_id"`
	Level               graphlevel.Level `json:"level"`
	SelectedIdeaID      string           `json:"selected_idea_id,omitempty"`
	SimilarityThreshold float64          `json:"similarity_threshold"`
	TotalIdeas          int              `json:"total_ideas"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Similarity is the answer to a pairwise similarity query. Similarity is
// nil when either idea is missing or has no embedding.
type Similarity struct {
	IdeaA      string   `json:"idea_a"`
	IdeaB      string   `json:"idea_b"`
	Similarity *float64 `json:"similarity"`
	Available  bool     `json:"available"`
}

// GraphService runs graph level operations against per-session managers.
type GraphService struct {
	sessions  *session.Registry
	states    session.StateStore
	ideas     persistence.IdeaReader
	publisher messaging.Publisher
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewGraphService creates the service. states may be nil, in which case
// sessions live only in this process.
func NewGraphService(
	sessions *session.Registry,
	states session.StateStore,
	ideas persistence.IdeaReader,
	publisher messaging.Publisher,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
	settings Settings,
) *GraphService {
	return &GraphService{
		sessions:  sessions,
		states:    states,
		ideas:     ideas,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
		settings:  settings,
	}
}

// UpdateSettings replaces the tunables. Existing sessions keep their
// threshold; the new default applies to sessions opened afterwards.
func (s *GraphService) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.logger.Info("Graph settings updated",
		zap.Float64("defaultThreshold", settings.DefaultThreshold),
		zap.Int("relatedIdeas", settings.RelatedIdeas),
		zap.Int("maxIdeas", settings.MaxIdeas),
	)
}

func (s *GraphService) currentSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// OpenSession creates a session for the user and loads their ideas. A nil
// threshold uses the configured default.
func (s *GraphService) OpenSession(ctx context.Context, userID string, threshold *float64) (view SessionView, err error) {
	ctx, span := s.tracer.Start(ctx, "GraphService.OpenSession",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { tracing.End(span, err) }()

	t := s.currentSettings().DefaultThreshold
	if threshold != nil {
		t = *threshold
	}

	sess, err := s.sessions.Create(userID, t)
	if err != nil {
		return SessionView{}, err
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	var state session.State
	err = s.sessions.With(sess.ID, func(sess *session.Session, m *graphlevel.Manager) error {
		if err := s.loadIdeas(ctx, sess, m); err != nil {
			return err
		}
		view = viewOf(sess, m)
		state = session.StateOf(sess, m)
		return nil
	})
	if err == nil {
		err = s.saveState(ctx, state)
	}
	if err != nil {
		// Drop the half-open session
		_ = s.sessions.Delete(sess.ID)
		s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
		return SessionView{}, err
	}

	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	s.publish(ctx, messaging.NewEvent(messaging.EventSessionOpened, sess.ID, userID, map[string]interface{}{
		"similarity_threshold": t,
		"total_ideas":          view.TotalIdeas,
	}))
	return view, nil
}

// CloseSession discards a session.
func (s *GraphService) CloseSession(ctx context.Context, sessionID string) (err error) {
	ctx, span := s.startSpan(ctx, "GraphService.CloseSession", sessionID)
	defer func() { tracing.End(span, err) }()

	var userID string
	if s.states != nil {
		state, err := s.states.LoadState(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := s.states.DeleteState(ctx, sessionID); err != nil {
			return err
		}
		userID = state.UserID
		// The session may have been served by another instance only
		_ = s.sessions.Delete(sessionID)
	} else {
		err = s.withSession(ctx, sessionID, func(sess *session.Session, _ *graphlevel.Manager) error {
			userID = sess.UserID
			return nil
		})
		if err != nil {
			return err
		}
		if err = s.sessions.Delete(sessionID); err != nil {
			return err
		}
	}

	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	s.publish(ctx, messaging.NewEvent(messaging.EventSessionClosed, sessionID, userID, nil))
	return nil
}

// SessionState returns the current view state of a session.
func (s *GraphService) SessionState(ctx context.Context, sessionID string) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.SessionState", sessionID)
	defer func() { tracing.End(span, err) }()

	err = s.withSession(ctx, sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		view = viewOf(sess, m)
		return nil
	})
	return view, err
}

// RefreshIdeas reloads the session's snapshot from the store. When the
// focused idea is gone the session returns to the macro level.
func (s *GraphService) RefreshIdeas(ctx context.Context, sessionID string) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.RefreshIdeas", sessionID)
	defer func() { tracing.End(span, err) }()

	var events []messaging.Event
	err = s.withSession(ctx, sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		if err := s.loadIdeas(ctx, sess, m); err != nil {
			return err
		}

		if selected, ok := m.SelectedIdeaID(); ok {
			if !m.HasIdea(selected) {
				from := m.CurrentLevel()
				m.ToMacro()
				s.metrics.LevelTransitions.WithLabelValues(from.String(), graphlevel.LevelMacro.String()).Inc()
				events = append(events, messaging.LevelChanged(sess.ID, sess.UserID,
					from.String(), graphlevel.LevelMacro.String(), selected, messaging.ReasonSelectionRemoved))

				s.logger.Info("Focused idea disappeared, returned to macro level",
					zap.String("sessionID", sess.ID),
					zap.String("ideaID", selected),
				)
			}
		}

		view = viewOf(sess, m)
		return nil
	})
	if err != nil {
		return SessionView{}, err
	}

	s.publish(ctx, events...)
	return view, nil
}

// FocusIdea switches the session to the micro level for ideaID and returns
// the resulting graph.
func (s *GraphService) FocusIdea(ctx context.Context, sessionID, ideaID string) (data graphlevel.GraphData, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.FocusIdea", sessionID)
	span.SetAttributes(attribute.String("idea.id", ideaID))
	defer func() { tracing.End(span, err) }()

	if ideaID == "" {
		return nil, appErrors.NewValidation("idea_id is required")
	}

	var event messaging.Event
	err = s.withSession(ctx, sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		from := m.CurrentLevel()
		if err := m.ToMicro(ideaID); err != nil {
			return err
		}
		s.metrics.LevelTransitions.WithLabelValues(from.String(), graphlevel.LevelMicro.String()).Inc()
		event = messaging.LevelChanged(sess.ID, sess.UserID, from.String(), graphlevel.LevelMicro.String(), ideaID, messaging.ReasonFocus)

		data, err = s.derive(m)
		return err
	})
	if event.EventID != "" {
		s.publish(ctx, event)
	}
	return data, err
}

// ReturnToMacro switches the session to the macro level and returns the
// resulting graph. An event is only published when the level changed.
func (s *GraphService) ReturnToMacro(ctx context.Context, sessionID string) (data graphlevel.GraphData, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.ReturnToMacro", sessionID)
	defer func() { tracing.End(span, err) }()

	var events []messaging.Event
	err = s.withSession(ctx, sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		from := m.CurrentLevel()
		previous, _ := m.SelectedIdeaID()
		m.ToMacro()

		if from != graphlevel.LevelMacro {
			s.metrics.LevelTransitions.WithLabelValues(from.String(), graphlevel.LevelMacro.String()).Inc()
			events = append(events, messaging.LevelChanged(sess.ID, sess.UserID,
				from.String(), graphlevel.LevelMacro.String(), previous, messaging.ReasonReturn))
		}

		data, err = s.derive(m)
		return err
	})
	s.publish(ctx, events...)
	return data, err
}

// SetThreshold changes the session's similarity threshold.
func (s *GraphService) SetThreshold(ctx context.Context, sessionID string, threshold float64) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.SetThreshold", sessionID)
	span.SetAttributes(attribute.Float64("threshold", threshold))
	defer func() { tracing.End(span, err) }()

	var event messaging.Event
	err = s.withSession(ctx, sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		previous := m.SimilarityThreshold()
		if err := m.SetSimilarityThreshold(threshold); err != nil {
			return err
		}
		if previous != threshold {
			event = messaging.ThresholdChanged(sess.ID, sess.UserID, previous, threshold)
		}
		view = viewOf(sess, m)
		return nil
	})
	if err != nil {
		return SessionView{}, err
	}

	if event.EventID != "" {
		s.publish(ctx, event)
	}
	return view, nil
}

// GraphData derives the graph for the session's current level.
func (s *GraphService) GraphData(ctx context.Context, sessionID string) (data graphlevel.GraphData, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.GraphData", sessionID)
	defer func() { tracing.End(span, err) }()

	err = s.withSession(ctx, sessionID, func(_ *session.Session, m *graphlevel.Manager) error {
		data, err = s.derive(m)
		return err
	})
	if err == nil {
		span.SetAttributes(attribute.String("graph.level", data.Level().String()))
	}
	return data, err
}

// SimilarityEdges returns the macro edge set whatever the current level.
func (s *GraphService) SimilarityEdges(ctx context.Context, sessionID string) (edges []graphlevel.SimilarityEdge, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.SimilarityEdges", sessionID)
	defer func() { tracing.End(span, err) }()

	err = s.withSession(ctx, sessionID, func(_ *session.Session, m *graphlevel.Manager) error {
		started := time.Now()
		edges, err = m.AllSimilarityEdges()
		s.metrics.ObserveDerivation("edges", started, err)
		return err
	})
	return edges, err
}

// SimilarityBetween computes the similarity of two ideas in the session.
func (s *GraphService) SimilarityBetween(ctx context.Context, sessionID, ideaA, ideaB string) (result Similarity, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.SimilarityBetween", sessionID)
	defer func() { tracing.End(span, err) }()

	if ideaA == "" || ideaB == "" {
		return Similarity{}, appErrors.NewValidation("both idea ids are required")
	}

	result = Similarity{IdeaA: ideaA, IdeaB: ideaB}
	err = s.withSession(ctx, sessionID, func(_ *session.Session, m *graphlevel.Manager) error {
		value, ok, err := m.SimilarityBetween(ideaA, ideaB)
		if err != nil {
			return err
		}
		if ok {
			result.Similarity = &value
			result.Available = true
		}
		return nil
	})
	return result, err
}

// RelatedIdeas ranks the session's ideas by similarity to ideaID. A topK of
// zero uses the configured default.
func (s *GraphService) RelatedIdeas(ctx context.Context, sessionID, ideaID string, topK int) (related []graphlevel.RelatedIdea, err error) {
	ctx, span := s.startSpan(ctx, "GraphService.RelatedIdeas", sessionID)
	span.SetAttributes(attribute.String("idea.id", ideaID), attribute.Int("top_k", topK))
	defer func() { tracing.End(span, err) }()

	if topK < 0 {
		return nil, appErrors.NewValidationf("top_k must be >= 0, got %d", topK)
	}
	if topK == 0 {
		topK = s.currentSettings().RelatedIdeas
	}

	err = s.withSession(ctx, sessionID, func(_ *session.Session, m *graphlevel.Manager) error {
		related, err = m.RelatedIdeas(ideaID, topK)
		return err
	})
	return related, err
}

// RunSweeper evicts idle sessions every interval until ctx is cancelled.
func (s *GraphService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep evicts idle sessions once and returns how many were removed.
func (s *GraphService) Sweep(now time.Time) int {
	evicted := s.sessions.Sweep(now)
	s.metrics.SessionsEvicted.Add(float64(evicted))
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return evicted
}

// loadIdeas replaces the manager's snapshot with the user's stored ideas.
func (s *GraphService) loadIdeas(ctx context.Context, sess *session.Session, m *graphlevel.Manager) error {
	started := time.Now()
	ideas, err := s.ideas.ListIdeas(ctx, sess.UserID)
	s.metrics.ObserveStore("list_ideas", started, err)
	if err != nil {
		return appErrors.Wrap(err, "failed to load ideas")
	}

	if limit := s.currentSettings().MaxIdeas; limit > 0 && len(ideas) > limit {
		return appErrors.NewValidation(fmt.Sprintf("user has %d ideas, more than the %d a graph session can hold", len(ideas), limit))
	}

	m.SetIdeas(ideas)
	sess.Loaded = true
	s.logger.Debug("Loaded ideas into session",
		zap.String("sessionID", sess.ID),
		zap.Int("ideas", len(ideas)),
	)
	return nil
}

// withSession runs fn against the session while holding its lock. With a
// state store the stored state is authoritative: a session this process has
// not seen is restored from it, a live one is brought in line with it before
// fn runs, and the resulting state is written back afterwards.
func (s *GraphService) withSession(ctx context.Context, sessionID string, fn func(*session.Session, *graphlevel.Manager) error) error {
	if s.states == nil {
		return s.sessions.With(sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
			trace.SpanFromContext(ctx).SetAttributes(tracing.SessionAttributes(sess.ID, sess.UserID)...)
			return fn(sess, m)
		})
	}

	stored, err := s.states.LoadState(ctx, sessionID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			// Closed or expired elsewhere
			_ = s.sessions.Delete(sessionID)
			s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
		}
		return err
	}
	if !s.sessions.Has(sessionID) {
		if _, err := s.sessions.Restore(stored); err != nil {
			return err
		}
		s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	}

	var state session.State
	err = s.sessions.With(sessionID, func(sess *session.Session, m *graphlevel.Manager) error {
		trace.SpanFromContext(ctx).SetAttributes(tracing.SessionAttributes(sess.ID, sess.UserID)...)

		if !sess.Loaded {
			if err := s.loadIdeas(ctx, sess, m); err != nil {
				return err
			}
		}
		applied, err := stored.Apply(m)
		if err != nil {
			return err
		}
		if !applied {
			s.logger.Info("Stored focus no longer in snapshot, session at macro level",
				zap.String("sessionID", sess.ID),
				zap.String("ideaID", stored.SelectedIdeaID),
			)
		}

		if err := fn(sess, m); err != nil {
			return err
		}
		state = session.StateOf(sess, m)
		return nil
	})
	if err != nil {
		return err
	}
	return s.saveState(ctx, state)
}

// saveState writes the session state when a state store is configured.
func (s *GraphService) saveState(ctx context.Context, state session.State) error {
	if s.states == nil {
		return nil
	}
	if err := s.states.SaveState(ctx, state); err != nil {
		return appErrors.Wrap(err, "failed to save session state")
	}
	return nil
}

func (s *GraphService) derive(m *graphlevel.Manager) (graphlevel.GraphData, error) {
	level := m.CurrentLevel().String()
	started := time.Now()

	data, err := m.GraphData()
	s.metrics.ObserveDerivation(level, started, err)
	if macro, ok := data.(*graphlevel.MacroGraphData); ok {
		s.metrics.SimilarityEdges.Observe(float64(len(macro.Edges)))
	}
	return data, err
}

func (s *GraphService) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(tracing.SessionAttributes(sessionID, "")...))
}

// publish sends events without failing the caller.
func (s *GraphService) publish(ctx context.Context, events ...messaging.Event) {
	if len(events) == 0 {
		return
	}

	err := s.publisher.Publish(ctx, events...)
	for _, e := range events {
		s.metrics.ObserveEvent(e.EventType, err)
	}
	if err != nil {
		s.logger.Warn("Failed to publish graph events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func viewOf(sess *session.Session, m *graphlevel.Manager) SessionView {
	selected, _ := m.SelectedIdeaID()
	return SessionView{
		SessionID:           sess.ID,
		UserID:              sess.UserID,
		Level:               m.CurrentLevel(),
		SelectedIdeaID:      selected,
		SimilarityThreshold: m.SimilarityThreshold(),
		TotalIdeas:          m.IdeaCount(),
		CreatedAt:           sess.CreatedAt,
	}
}
