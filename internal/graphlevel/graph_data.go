package graphlevel

import (
	"encoding/json"

	"ideagraph-backend/internal/domain/idea"
)

// GraphData is the renderable output of the manager. It is either a
// *MacroGraphData or a *MicroGraphData; switch on the concrete type.
type GraphData interface {
	Level() Level
	isGraphData()
}

// IdeaNode is one idea in the macro view.
type IdeaNode struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Tags  []string `json:"tags"`
}

// SimilarityEdge connects two ideas whose embeddings are similar enough.
type SimilarityEdge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
}

// MacroMetadata describes how a macro graph was derived.
type MacroMetadata struct {
	SimilarityThreshold float64 `json:"similarityThreshold"`
	TotalIdeas          int     `json:"totalIdeas"`
}

// MacroGraphData is the all-ideas view.
type MacroGraphData struct {
	Nodes    []IdeaNode       `json:"nodes"`
	Edges    []SimilarityEdge `json:"edges"`
	Metadata MacroMetadata    `json:"metadata"`
}

// Level implements GraphData
func (*MacroGraphData) Level() Level { return LevelMacro }
func (*MacroGraphData) isGraphData() {}

// MarshalJSON adds the level discriminator
func (d *MacroGraphData) MarshalJSON() ([]byte, error) {
	type plain MacroGraphData
	return json.Marshal(struct {
		Level Level `json:"level"`
		*plain
	}{LevelMacro, (*plain)(d)})
}

// MicroMetadata carries the focused idea's summary.
type MicroMetadata struct {
	Label string   `json:"ideaOneLiner"`
	Tags  []string `json:"ideaTags"`
}

// MicroGraphData is the concept graph of one idea.
type MicroGraphData struct {
	FocusedIdeaID string              `json:"focusedIdeaId"`
	Nodes         []idea.EntityNode   `json:"nodes"`
	Edges         []idea.RelationEdge `json:"edges"`
	Metadata      MicroMetadata       `json:"metadata"`
}

// Level implements GraphData
func (*MicroGraphData) Level() Level { return LevelMicro }
func (*MicroGraphData) isGraphData() {}

// MarshalJSON adds the level discriminator
func (d *MicroGraphData) MarshalJSON() ([]byte, error) {
	type plain MicroGraphData
	return json.Marshal(struct {
		Level Level `json:"level"`
		*plain
	}{LevelMicro, (*plain)(d)})
}

// RelatedIdea is a ranked neighbour of an idea in embedding space.
type RelatedIdea struct {
	IdeaID     string   `json:"idea_id"`
	Label      string   `json:"label"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity"`
}
