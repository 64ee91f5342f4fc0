package snapshot

import (
	"github.com/google/uuid"

	"pagelens-mcp-server/internal/dom"
)

// Result is one compiled snapshot: the serialized tree, the ref table that
// resolves its handles, and an opaque identifier the staleness guard compares
// for equality only.
type Result struct {
	ID        string    `json:"snapshot_id"`
	Text      string    `json:"text"`
	Tokens    int       `json:"tokens"`
	Truncated bool      `json:"truncated,omitempty"`
	Tree      *Node     `json:"-"`
	Refs      *RefTable `json:"-"`
}

// Take compiles the document into a fresh snapshot under the given token
// budget (<=0 selects the default). Each call produces a new identifier and
// fully replaces any previous ref table.
func Take(doc *dom.Document, budget int) *Result {
	tree, refs := Build(doc)
	text := Serialize(tree)
	text, truncated := ApplyBudget(text, budget)

	return &Result{
		ID:        uuid.NewString(),
		Text:      text,
		Tokens:    EstimateTokens(text),
		Truncated: truncated,
		Tree:      tree,
		Refs:      refs,
	}
}
