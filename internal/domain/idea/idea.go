// Package idea holds the distilled idea records consumed by the graph views.
//
// Ideas are produced by an external distillation step (an LLM call that turns
// raw text into a one-line label, tags, an embedding vector and a small
// concept graph). This package only describes that shape; nothing here calls
// the distiller.
package idea

import (
	"fmt"
	"time"

	appErrors "ideagraph-backend/pkg/errors"
	"ideagraph-backend/pkg/validation"
)

// Idea is a captured thought together with its distilled data.
type Idea struct {
	ID           string `validate:"required"`
	Label        string
	Tags         []string
	Summary      string
	ContentRaw   string
	Embedding    []float64
	ConceptGraph ConceptGraph

	CreatedAt     time.Time
	LastModified  *time.Time
	Version       int `validate:"gte=0"`
	LinkedIdeaIDs []string
	ParentIdeaID  string
	ChildIdeaIDs  []string
	MergedFromIDs []string
}

// HasEmbedding reports whether the idea can take part in similarity edges.
func (i Idea) HasEmbedding() bool {
	return i.Embedding != nil
}

// Validate checks the structural rules an idea must satisfy on ingest:
// a non-empty id and a concept graph whose edges only reference its own nodes.
func (i Idea) Validate() error {
	if err := validation.Struct(i); err != nil {
		return appErrors.Wrap(err, fmt.Sprintf("idea %q", i.ID))
	}
	if err := i.ConceptGraph.Validate(); err != nil {
		return appErrors.Wrap(err, fmt.Sprintf("idea %q", i.ID))
	}
	return nil
}

// Find returns the idea with the given id from a snapshot.
func Find(ideas []Idea, id string) (Idea, bool) {
	if idx := IndexOf(ideas, id); idx >= 0 {
		return ideas[idx], true
	}
	return Idea{}, false
}

// IndexOf returns the position of the idea with the given id, or -1.
func IndexOf(ideas []Idea, id string) int {
	for idx := range ideas {
		if ideas[idx].ID == id {
			return idx
		}
	}
	return -1
}
