package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by graph sessions and the idea store
const (
	EventLevelChanged     = "graph.level_changed"
	EventThresholdChanged = "graph.threshold_changed"
	EventSessionOpened    = "graph.session_opened"
	EventSessionClosed    = "graph.session_closed"
	EventIdeaSaved        = "idea.saved"
)

// Level change reasons
const (
	ReasonFocus            = "focus"
	ReasonReturn           = "return"
	ReasonSelectionRemoved = "selection_removed"
)

// Event is a domain event. SessionID is empty for events outside a session.
type Event struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	SessionID  string                 `json:"session_id,omitempty"`
	UserID     string                 `json:"user_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType, sessionID, userID string, data map[string]interface{}) Event {
	return Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		SessionID:  sessionID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// LevelChanged describes a transition between graph levels.
func LevelChanged(sessionID, userID, from, to, ideaID, reason string) Event {
	data := map[string]interface{}{
		"from":   from,
		"to":     to,
		"reason": reason,
	}
	if ideaID != "" {
		data["idea_id"] = ideaID
	}
	return NewEvent(EventLevelChanged, sessionID, userID, data)
}

// ThresholdChanged describes a new similarity threshold.
func ThresholdChanged(sessionID, userID string, from, to float64) Event {
	return NewEvent(EventThresholdChanged, sessionID, userID, map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// IdeaSaved describes an idea written to the store.
func IdeaSaved(userID, ideaID string, version int) Event {
	return NewEvent(EventIdeaSaved, "", userID, map[string]interface{}{
		"idea_id": ideaID,
		"version": version,
	})
}
