package snapshot

import (
	"fmt"
	"strings"

	"pagelens-mcp-server/internal/dom"
)

// Node is one entry in the compiled accessibility tree. Nodes are transient:
// the tree is rebuilt from scratch on every snapshot.
type Node struct {
	Role     string  `json:"role"`
	Name     string  `json:"name,omitempty"`
	Ref      string  `json:"ref,omitempty"`
	Value    string  `json:"value,omitempty"`
	Checked  *bool   `json:"checked,omitempty"`
	Disabled bool    `json:"disabled,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// RefTable maps ref handles to live elements for exactly one snapshot's
// lifetime. It is fully replaced, never merged, on the next snapshot.
type RefTable struct {
	refs  map[string]*dom.Element
	order []string
}

// NewRefTable returns an empty table.
func NewRefTable() *RefTable {
	return &RefTable{refs: make(map[string]*dom.Element)}
}

// Resolve returns the element behind a ref handle, if the handle exists.
func (t *RefTable) Resolve(ref string) (*dom.Element, bool) {
	el, ok := t.refs[ref]
	return el, ok
}

// Refs returns all handles in allocation (document) order.
func (t *RefTable) Refs() []string {
	return t.order
}

// Len returns the number of handles in the table.
func (t *RefTable) Len() int { return len(t.refs) }

func (t *RefTable) add(ref string, el *dom.Element) {
	t.refs[ref] = el
	t.order = append(t.order, ref)
}

// prunedTags are never walked: they carry no perceivable content.
var prunedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"head":     true,
	"svg":      true,
	"noscript": true,
	"template": true,
}

type builder struct {
	table *RefTable
	next  int
}

// Build compiles the document into a labeled tree and a fresh ref table. The
// root is a synthetic "page" node named by the document title; refs are
// allocated to interactive nodes in preorder, starting at @e1.
func Build(doc *dom.Document) (*Node, *RefTable) {
	b := &builder{table: NewRefTable(), next: 1}

	root := &Node{Role: "page", Name: truncateName(doc.Title())}
	if html := doc.Root(); html != nil {
		root.Children = b.walkChildren(html, "")
	}
	return root, b.table
}

func (b *builder) walkChildren(el *dom.Element, inheritedVis string) []*Node {
	var out []*Node
	for _, child := range el.Children() {
		out = append(out, b.walk(child, inheritedVis)...)
	}
	return out
}

// walk compiles one element. It returns zero nodes (pruned or elided), one
// node (the element or its promoted single child), or several (the element's
// children promoted past an elided wrapper).
func (b *builder) walk(el *dom.Element, inheritedVis string) []*Node {
	if prunedTags[el.Tag()] {
		return nil
	}
	if el.Tag() == "input" && el.InputType() == "hidden" {
		return nil
	}
	if HidesSubtree(el) {
		return nil
	}

	vis := EffectiveVisibility(el, inheritedVis)
	selfVisible := vis != "hidden"

	// An invisible element contributes nothing itself, but visibility:hidden
	// does not stop descendants that restore visibility:visible.
	if !selfVisible {
		return b.walkChildren(el, vis)
	}

	interactive := Interactive(el)
	role := ResolveRole(el)
	// Ref-bearing nodes always carry a role; a roleless interactive element
	// (say a bare contenteditable div) serializes as generic.
	if interactive && role == "" {
		role = "generic"
	}

	var ref string
	if interactive {
		ref = fmt.Sprintf("@e%d", b.next)
		b.next++
		b.table.add(ref, el)
	}

	children := b.walkChildren(el, vis)

	if !interactive && role == "" {
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children
		default:
			return []*Node{{Role: "group", Children: children}}
		}
	}

	node := &Node{
		Role:     role,
		Name:     ResolveName(el),
		Ref:      ref,
		Children: children,
	}
	b.populateState(node, el)
	return []*Node{node}
}

// populateState fills value, checked and disabled from the live element.
func (b *builder) populateState(node *Node, el *dom.Element) {
	if el.DisabledNative() {
		node.Disabled = true
	} else if v, ok := el.Attr("aria-disabled"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		node.Disabled = true
	}

	switch el.Tag() {
	case "input":
		switch el.InputType() {
		case "checkbox", "radio":
			checked := el.Checked()
			node.Checked = &checked
		case "submit", "reset", "button":
			// Button-style inputs name themselves by their value attribute.
			if node.Name == "" {
				node.Name = truncateName(strings.TrimSpace(el.AttrOr("value", "")))
			}
		default:
			node.Value = el.Value()
		}
	case "textarea":
		node.Value = el.Value()
	case "select":
		// Selects show the selected option's visible text, not its value.
		node.Value = selectedOptionText(el)
	case "progress":
		if v, ok := el.Attr("value"); ok {
			node.Value = v + "/" + el.AttrOr("max", "1")
		}
	}
}

func selectedOptionText(sel *dom.Element) string {
	opts := sel.Options()
	for _, opt := range opts {
		if opt.Selected() {
			return opt.Text()
		}
	}
	if !sel.Multiple() && len(opts) > 0 {
		return opts[0].Text()
	}
	return ""
}
