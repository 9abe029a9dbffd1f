package idea

import (
	appErrors "ideagraph-backend/pkg/errors"
)

// EntityType classifies a concept graph node.
type EntityType string

const (
	EntityConcept     EntityType = "Concept"
	EntityTool        EntityType = "Tool"
	EntityPerson      EntityType = "Person"
	EntityProblem     EntityType = "Problem"
	EntitySolution    EntityType = "Solution"
	EntityMethodology EntityType = "Methodology"
	EntityMetric      EntityType = "Metric"
)

// IsKnown reports whether the type is one the distiller is asked to emit.
// Unknown types are still carried through projections unchanged.
func (t EntityType) IsKnown() bool {
	switch t {
	case EntityConcept, EntityTool, EntityPerson, EntityProblem,
		EntitySolution, EntityMethodology, EntityMetric:
		return true
	}
	return false
}

// RelationType labels a concept graph edge.
type RelationType string

const (
	RelationSolves      RelationType = "solves"
	RelationCauses      RelationType = "causes"
	RelationContradicts RelationType = "contradicts"
	RelationConsistsOf  RelationType = "consists_of"
	RelationDependsOn   RelationType = "depends_on"
	RelationEnables     RelationType = "enables"
	RelationDisrupts    RelationType = "disrupts"
	RelationPoweredBy   RelationType = "powered_by"
	RelationRelatesTo   RelationType = "relates_to"
)

// IsKnown reports whether the relation is one the distiller is asked to emit.
func (r RelationType) IsKnown() bool {
	switch r {
	case RelationSolves, RelationCauses, RelationContradicts, RelationConsistsOf,
		RelationDependsOn, RelationEnables, RelationDisrupts, RelationPoweredBy,
		RelationRelatesTo:
		return true
	}
	return false
}

// EntityNode is a typed entity extracted from an idea's text.
type EntityNode struct {
	ID          string     `json:"id" validate:"required"`
	Label       string     `json:"label"`
	Type        EntityType `json:"type"`
	Description string     `json:"desc"`
}

// RelationEdge is a typed relation between two entities of the same idea.
type RelationEdge struct {
	SourceID    string       `json:"source" validate:"required"`
	TargetID    string       `json:"target" validate:"required"`
	Relation    RelationType `json:"relation"`
	Description string       `json:"desc,omitempty"`
}

// ConceptGraph is the per-idea knowledge sub-graph.
type ConceptGraph struct {
	Nodes []EntityNode   `json:"nodes" validate:"dive"`
	Edges []RelationEdge `json:"edges" validate:"dive"`
}

// Validate checks that node ids are unique and that every edge endpoint
// references a node of this graph.
func (g ConceptGraph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := ids[n.ID]; dup {
			return appErrors.NewValidationf("concept graph has duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	for _, e := range g.Edges {
		if _, ok := ids[e.SourceID]; !ok {
			return appErrors.NewValidationf("edge %s->%s references unknown source node", e.SourceID, e.TargetID)
		}
		if _, ok := ids[e.TargetID]; !ok {
			return appErrors.NewValidationf("edge %s->%s references unknown target node", e.SourceID, e.TargetID)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand the graph out without
// sharing backing arrays with the snapshot.
func (g ConceptGraph) Clone() ConceptGraph {
	out := ConceptGraph{
		Nodes: make([]EntityNode, len(g.Nodes)),
		Edges: make([]RelationEdge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}
