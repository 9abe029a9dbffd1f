package session

import (
	"context"
	"time"

	"ideagraph-backend/internal/graphlevel"
)

// State is the durable part of a session. The idea snapshot is not part of
// it; a session restored from State reloads its ideas from the store.
type State struct {
	SessionID      string
	UserID         string
	Level          graphlevel.Level
	SelectedIdeaID string
	Threshold      float64
	CreatedAt      time.Time
	LastUsed       time.Time
}

// StateStore keeps session state outside the process so that every instance
// serving the API sees the same sessions.
type StateStore interface {
	SaveState(ctx context.Context, state State) error
	LoadState(ctx context.Context, sessionID string) (State, error)
	DeleteState(ctx context.Context, sessionID string) error
}

// StateOf captures the durable state of s. Call it from inside With.
func StateOf(s *Session, m *graphlevel.Manager) State {
	selected, _ := m.SelectedIdeaID()
	return State{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Level:          m.CurrentLevel(),
		SelectedIdeaID: selected,
		Threshold:      m.SimilarityThreshold(),
		CreatedAt:      s.CreatedAt,
		LastUsed:       s.lastUsed,
	}
}

// Apply moves m to the stored level, selection and threshold. It reports
// false when the stored selection is not in the snapshot any more, in which
// case m is left at the macro level.
func (st State) Apply(m *graphlevel.Manager) (bool, error) {
	if err := m.SetSimilarityThreshold(st.Threshold); err != nil {
		return false, err
	}
	if st.Level != graphlevel.LevelMicro {
		m.ToMacro()
		return true, nil
	}
	if err := m.ToMicro(st.SelectedIdeaID); err != nil {
		m.ToMacro()
		return false, nil
	}
	return true, nil
}
