// Package graphlevel owns the two-level view of the idea corpus.
//
// A Manager holds the current level (macro or micro), the selected idea, the
// similarity threshold and the latest idea snapshot. Graph data is derived on
// every call from that state; nothing is cached. The manager does no locking
// and expects a single caller at a time (see internal/session for the
// synchronized wrapper used by the HTTP layer).
package graphlevel

import (
	"fmt"
	"math"
	"sort"

	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/internal/domain/services"
	appErrors "ideagraph-backend/pkg/errors"

	"go.uber.org/zap"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a macro edge.
	DefaultSimilarityThreshold = 0.7

	// DefaultRelatedIdeas is the number of neighbours RelatedIdeas returns
	// when the caller does not ask for a specific count.
	DefaultRelatedIdeas = 3
)

// Manager is the graph level state machine.
type Manager struct {
	level          Level
	selectedIdeaID string
	hasSelection   bool
	threshold      float64
	ideas          []idea.Idea
	logger         *zap.Logger
}

// Option configures a Manager
type Option func(*Manager) error

// WithSimilarityThreshold overrides the default threshold.
func WithSimilarityThreshold(t float64) Option {
	return func(m *Manager) error {
		return m.SetSimilarityThreshold(t)
	}
}

// WithLogger sets the logger used for debug tracing of transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// WithIdeas seeds the manager with an initial snapshot.
func WithIdeas(ideas []idea.Idea) Option {
	return func(m *Manager) error {
		m.SetIdeas(ideas)
		return nil
	}
}

// NewManager creates a manager at the macro level with no ideas.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		level:     LevelMacro,
		threshold: DefaultSimilarityThreshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CurrentLevel returns the current view level
func (m *Manager) CurrentLevel() Level {
	return m.level
}

// SelectedIdeaID returns the focused idea; ok is false at the macro level.
func (m *Manager) SelectedIdeaID() (id string, ok bool) {
	return m.selectedIdeaID, m.hasSelection
}

// SimilarityThreshold returns the current threshold
func (m *Manager) SimilarityThreshold() float64 {
	return m.threshold
}

// Ideas returns a copy of the current snapshot
func (m *Manager) Ideas() []idea.Idea {
	out := make([]idea.Idea, len(m.ideas))
	copy(out, m.ideas)
	return out
}

// IdeaCount returns the size of the current snapshot
func (m *Manager) IdeaCount() int {
	return len(m.ideas)
}

// HasIdea reports whether the snapshot contains ideaID.
func (m *Manager) HasIdea(ideaID string) bool {
	return idea.IndexOf(m.ideas, ideaID) >= 0
}

// SetIdeas replaces the snapshot wholesale. A micro-level selection is left
// as is even when the selected idea is gone; GraphData reports that as a
// not-found error.
func (m *Manager) SetIdeas(ideas []idea.Idea) {
	m.ideas = make([]idea.Idea, len(ideas))
	copy(m.ideas, ideas)

	m.logger.Debug("Idea snapshot replaced", zap.Int("ideas", len(ideas)))
}

// SetSimilarityThreshold stores a new threshold in [0, 1]. It does not
// trigger a recomputation.
func (m *Manager) SetSimilarityThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return appErrors.NewValidationf("similarity threshold must be between 0 and 1, got %v", t)
	}
	m.threshold = t
	return nil
}

// ToMicro focuses a single idea. The state is unchanged on failure.
func (m *Manager) ToMicro(ideaID string) error {
	if !m.HasIdea(ideaID) {
		return appErrors.NewNotFound(fmt.Sprintf("idea with id %s not found", ideaID))
	}

	m.level = LevelMicro
	m.selectedIdeaID = ideaID
	m.hasSelection = true

	m.logger.Debug("Transitioned to micro level", zap.String("ideaID", ideaID))
	return nil
}

// ToMacro returns to the all-ideas view. Always succeeds.
func (m *Manager) ToMacro() {
	m.level = LevelMacro
	m.selectedIdeaID = ""
	m.hasSelection = false

	m.logger.Debug("Transitioned to macro level")
}

// GraphData derives the graph for the current level.
func (m *Manager) GraphData() (GraphData, error) {
	switch m.level {
	case LevelMacro:
		return m.macroData()
	case LevelMicro:
		if !m.hasSelection {
			return nil, appErrors.NewState("no idea selected for micro level view")
		}
		return m.microData(m.selectedIdeaID)
	default:
		return nil, appErrors.NewNotFound(fmt.Sprintf("graph level %s not found", m.level))
	}
}

// AllSimilarityEdges returns the macro edge set regardless of the current level.
func (m *Manager) AllSimilarityEdges() ([]SimilarityEdge, error) {
	return m.similarityEdges()
}

// SimilarityBetween returns the cosine similarity of two ideas. ok is false
// when either idea is missing or has no embedding. The threshold is not
// consulted.
func (m *Manager) SimilarityBetween(ideaID1, ideaID2 string) (similarity float64, ok bool, err error) {
	first, found1 := idea.Find(m.ideas, ideaID1)
	second, found2 := idea.Find(m.ideas, ideaID2)
	if !found1 || !found2 {
		return 0, false, nil
	}
	if !first.HasEmbedding() || !second.HasEmbedding() {
		return 0, false, nil
	}

	similarity, err = services.CosineSimilarity(first.Embedding, second.Embedding)
	if err != nil {
		return 0, false, appErrors.Wrap(err, fmt.Sprintf("similarity between %s and %s", ideaID1, ideaID2))
	}
	return similarity, true, nil
}

// RelatedIdeas ranks every other embedded idea by similarity to ideaID,
// highest first, and returns at most topK of them. Ties keep snapshot order.
func (m *Manager) RelatedIdeas(ideaID string, topK int) ([]RelatedIdea, error) {
	source, found := idea.Find(m.ideas, ideaID)
	if !found {
		return nil, appErrors.NewNotFound(fmt.Sprintf("idea with id %s not found", ideaID))
	}
	if topK <= 0 {
		topK = DefaultRelatedIdeas
	}

	related := make([]RelatedIdea, 0, len(m.ideas))
	if !source.HasEmbedding() {
		return related, nil
	}

	for _, candidate := range m.ideas {
		if candidate.ID == source.ID || !candidate.HasEmbedding() {
			continue
		}
		similarity, err := services.CosineSimilarity(source.Embedding, candidate.Embedding)
		if err != nil {
			return nil, appErrors.Wrap(err, fmt.Sprintf("similarity between %s and %s", source.ID, candidate.ID))
		}
		related = append(related, RelatedIdea{
			IdeaID:     candidate.ID,
			Label:      candidate.Label,
			Tags:       candidate.Tags,
			Similarity: similarity,
		})
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Similarity > related[j].Similarity
	})

	if len(related) > topK {
		related = related[:topK]
	}
	return related, nil
}

// macroData builds idea nodes plus above-threshold similarity edges
func (m *Manager) macroData() (*MacroGraphData, error) {
	nodes := make([]IdeaNode, len(m.ideas))
	for i, it := range m.ideas {
		nodes[i] = IdeaNode{
			ID:    it.ID,
			Label: it.Label,
			Tags:  it.Tags,
		}
	}

	edges, err := m.similarityEdges()
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Derived macro graph",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.Float64("threshold", m.threshold),
	)

	return &MacroGraphData{
		Nodes: nodes,
		Edges: edges,
		Metadata: MacroMetadata{
			SimilarityThreshold: m.threshold,
			TotalIdeas:          len(m.ideas),
		},
	}, nil
}

// similarityEdges compares every unordered pair once, in snapshot order.
// Pairs where either idea lacks an embedding contribute nothing.
func (m *Manager) similarityEdges() ([]SimilarityEdge, error) {
	edges := make([]SimilarityEdge, 0)

	for i := 0; i < len(m.ideas); i++ {
		first := m.ideas[i]
		if !first.HasEmbedding() {
			continue
		}
		for j := i + 1; j < len(m.ideas); j++ {
			second := m.ideas[j]
			if !second.HasEmbedding() {
				continue
			}

			similarity, err := services.CosineSimilarity(first.Embedding, second.Embedding)
			if err != nil {
				return nil, appErrors.Wrap(err, fmt.Sprintf("similarity between %s and %s", first.ID, second.ID))
			}

			if similarity >= m.threshold {
				edges = append(edges, SimilarityEdge{
					Source:     first.ID,
					Target:     second.ID,
					Similarity: similarity,
				})
			}
		}
	}

	return edges, nil
}

// microData projects the selected idea's concept graph
func (m *Manager) microData(ideaID string) (*MicroGraphData, error) {
	selected, found := idea.Find(m.ideas, ideaID)
	if !found {
		return nil, appErrors.NewNotFound(fmt.Sprintf("idea with id %s not found", ideaID))
	}

	graph := selected.ConceptGraph.Clone()

	m.logger.Debug("Derived micro graph",
		zap.String("ideaID", ideaID),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
	)

	return &MicroGraphData{
		FocusedIdeaID: ideaID,
		Nodes:         graph.Nodes,
		Edges:         graph.Edges,
		Metadata: MicroMetadata{
			Label: selected.Label,
			Tags:  selected.Tags,
		},
	}, nil
}
