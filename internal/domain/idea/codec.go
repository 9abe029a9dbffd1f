package idea

import (
	"encoding/json"
	"time"
)

// The distiller stores ideas in a nested document: the summary, tags and
// concept graph live under "distilled_data" and concept nodes carry "name"
// rather than "label". The types below mirror that document.

type ideaDocument struct {
	IdeaID          string            `json:"idea_id"`
	CreatedAt       string            `json:"created_at,omitempty"`
	ContentRaw      string            `json:"content_raw"`
	DistilledData   distilledDocument `json:"distilled_data"`
	EmbeddingVector []float64         `json:"embedding_vector,omitempty"`
	LinkedIdeaIDs   []string          `json:"linked_idea_ids,omitempty"`
	ParentIdeaID    string            `json:"parent_idea_id,omitempty"`
	ChildIdeaIDs    []string          `json:"child_idea_ids,omitempty"`
	MergedFromIDs   []string          `json:"merged_from_ids,omitempty"`
	LastModified    string            `json:"last_modified,omitempty"`
	Version         int               `json:"version,omitempty"`
}

type distilledDocument struct {
	OneLiner       string        `json:"one_liner"`
	Tags           []string      `json:"tags"`
	Summary        string        `json:"summary"`
	GraphStructure graphDocument `json:"graph_structure"`
}

type graphDocument struct {
	Nodes []nodeDocument `json:"nodes"`
	Edges []edgeDocument `json:"edges"`
}

type nodeDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Desc string `json:"desc"`
}

type edgeDocument struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Desc     string `json:"desc,omitempty"`
}

// MarshalJSON writes the idea in the distiller's document shape.
func (i Idea) MarshalJSON() ([]byte, error) {
	return json.Marshal(toDocument(i))
}

// UnmarshalJSON reads the distiller's document shape.
func (i *Idea) UnmarshalJSON(data []byte) error {
	var doc ideaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*i = fromDocument(doc)
	return nil
}

func toDocument(i Idea) ideaDocument {
	nodes := make([]nodeDocument, len(i.ConceptGraph.Nodes))
	for idx, n := range i.ConceptGraph.Nodes {
		nodes[idx] = nodeDocument{ID: n.ID, Name: n.Label, Type: string(n.Type), Desc: n.Description}
	}
	edges := make([]edgeDocument, len(i.ConceptGraph.Edges))
	for idx, e := range i.ConceptGraph.Edges {
		edges[idx] = edgeDocument{Source: e.SourceID, Target: e.TargetID, Relation: string(e.Relation), Desc: e.Description}
	}

	tags := i.Tags
	if tags == nil {
		tags = []string{}
	}

	return ideaDocument{
		IdeaID:     i.ID,
		CreatedAt:  formatTimestamp(i.CreatedAt),
		ContentRaw: i.ContentRaw,
		DistilledData: distilledDocument{
			OneLiner:       i.Label,
			Tags:           tags,
			Summary:        i.Summary,
			GraphStructure: graphDocument{Nodes: nodes, Edges: edges},
		},
		EmbeddingVector: i.Embedding,
		LinkedIdeaIDs:   i.LinkedIdeaIDs,
		ParentIdeaID:    i.ParentIdeaID,
		ChildIdeaIDs:    i.ChildIdeaIDs,
		MergedFromIDs:   i.MergedFromIDs,
		LastModified:    formatOptionalTimestamp(i.LastModified),
		Version:         i.Version,
	}
}

func fromDocument(doc ideaDocument) Idea {
	graph := ConceptGraph{
		Nodes: make([]EntityNode, len(doc.DistilledData.GraphStructure.Nodes)),
		Edges: make([]RelationEdge, len(doc.DistilledData.GraphStructure.Edges)),
	}
	for idx, n := range doc.DistilledData.GraphStructure.Nodes {
		graph.Nodes[idx] = EntityNode{ID: n.ID, Label: n.Name, Type: EntityType(n.Type), Description: n.Desc}
	}
	for idx, e := range doc.DistilledData.GraphStructure.Edges {
		graph.Edges[idx] = RelationEdge{SourceID: e.Source, TargetID: e.Target, Relation: RelationType(e.Relation), Description: e.Desc}
	}

	return Idea{
		ID:            doc.IdeaID,
		Label:         doc.DistilledData.OneLiner,
		Tags:          doc.DistilledData.Tags,
		Summary:       doc.DistilledData.Summary,
		ContentRaw:    doc.ContentRaw,
		Embedding:     doc.EmbeddingVector,
		ConceptGraph:  graph,
		CreatedAt:     parseTimestamp(doc.CreatedAt),
		LastModified:  parseOptionalTimestamp(doc.LastModified),
		Version:       doc.Version,
		LinkedIdeaIDs: doc.LinkedIdeaIDs,
		ParentIdeaID:  doc.ParentIdeaID,
		ChildIdeaIDs:  doc.ChildIdeaIDs,
		MergedFromIDs: doc.MergedFromIDs,
	}
}

// timestampLayouts covers RFC 3339 (JavaScript toISOString) and the naive
// ISO form written by Python's datetime.isoformat.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	t := parseTimestamp(value)
	if t.IsZero() {
		return nil
	}
	return &t
}

func formatOptionalTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTimestamp(*t)
}
