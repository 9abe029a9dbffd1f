package graphlevel

import (
	"encoding/json"
	"fmt"
)

// Level is the zoom level of the idea graph.
type Level int

const (
	// LevelMacro shows every idea, connected by embedding similarity.
	LevelMacro Level = iota + 1
	// LevelMicro shows the concept graph of a single idea.
	LevelMicro
)

// String returns the wire name of the level
func (l Level) String() string {
	switch l {
	case LevelMacro:
		return "macro"
	case LevelMicro:
		return "micro"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalJSON implements json.Marshaler
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses "macro"/"micro" (and the numeric forms "1"/"2").
func ParseLevel(s string) (Level, error) {
	switch s {
	case "macro", "1":
		return LevelMacro, nil
	case "micro", "2":
		return LevelMicro, nil
	}
	return 0, fmt.Errorf("unknown graph level %q", s)
}
