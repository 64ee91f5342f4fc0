package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Box is an element's layout rectangle. Non-rendering contexts leave it zero;
// nothing in this package infers visibility from it.
type Box struct {
	X, Y, Width, Height float64
}

// Element wraps a parser node with runtime state: values written through the
// native setter, checked/selected overrides, focus, and an optional layout box.
type Element struct {
	doc  *Document
	node *html.Node

	valueSet    bool
	value       string
	checkedSet  bool
	checked     bool
	selectedSet bool
	selected    bool
	box         Box
	boxSet      bool
	listeners   map[string][]func(Event)
	scrolled    bool
}

// Tag returns the lowercase tag name.
func (e *Element) Tag() string { return e.node.Data }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Attr returns the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or a fallback when absent.
func (e *Element) AttrOr(name, fallback string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return fallback
}

// HasAttr reports whether the attribute is present, regardless of value.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, val string) {
	name = strings.ToLower(name)
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: val})
}

// Parent returns the parent element, or nil at the top of the tree.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.wrap(p)
		}
	}
	return nil
}

// Children returns element children in DOM order.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// Descendants returns all element descendants in preorder, excluding e itself.
func (e *Element) Descendants() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode {
				out = append(out, e.doc.wrap(n))
			}
			return true
		})
	}
	return out
}

// PrevSiblings returns preceding element siblings, nearest first.
func (e *Element) PrevSiblings() []*Element {
	var out []*Element
	for s := e.node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			out = append(out, e.doc.wrap(s))
		}
	}
	return out
}

// Contains reports whether other is inside e's subtree.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	for n := other.node.Parent; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// Closest walks up from e (inclusive) looking for a tag match.
func (e *Element) Closest(tag string) *Element {
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur.Tag() == tag {
			return cur
		}
	}
	return nil
}

// Text returns the whitespace-normalized text content of the subtree.
func (e *Element) Text() string {
	var sb strings.Builder
	collectText(e.node, &sb)
	return collapseSpace(sb.String())
}

// OwnText is Text minus the text of one excluded descendant subtree. The name
// resolver uses this to subtract a wrapped control's text from its label.
func (e *Element) OwnTextExcluding(excluded *Element) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if excluded != nil && n == excluded.node {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return collapseSpace(sb.String())
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Detached reports whether the element is no longer reachable from the
// document root. Ref resolution treats detached elements as "not found".
func (e *Element) Detached() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return false
		}
	}
	return true
}

// Remove unlinks the element's subtree from the document.
func (e *Element) Remove() {
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// AppendChild attaches a child created with Document.CreateElement.
func (e *Element) AppendChild(child *Element) {
	child.Remove()
	e.node.AppendChild(child.node)
}

// InsertBefore inserts child ahead of the reference element.
func (e *Element) InsertBefore(child, ref *Element) {
	child.Remove()
	if ref == nil {
		e.node.AppendChild(child.node)
		return
	}
	e.node.InsertBefore(child.node, ref.node)
}

// AppendText appends a text node to the element.
func (e *Element) AppendText(s string) {
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// ClearContent removes every child node, mirroring textContent = "".
func (e *Element) ClearContent() {
	for e.node.FirstChild != nil {
		e.node.RemoveChild(e.node.FirstChild)
	}
}

// InputType returns the lowercase input type, defaulting to "text".
func (e *Element) InputType() string {
	t := strings.ToLower(strings.TrimSpace(e.AttrOr("type", "")))
	if t == "" {
		return "text"
	}
	return t
}

// Value returns the control's current value: the native-setter override when
// one was written, otherwise the parsed default (value attribute, textarea
// content, or the selected option's value for selects).
func (e *Element) Value() string {
	if e.valueSet {
		return e.value
	}
	switch e.Tag() {
	case "input":
		return e.AttrOr("value", "")
	case "textarea":
		return e.Text()
	case "select":
		if opt := e.firstSelectedOption(); opt != nil {
			return opt.OptionValue()
		}
		// Native single selects fall back to their first option.
		if !e.Multiple() {
			if opts := e.Options(); len(opts) > 0 {
				return opts[0].OptionValue()
			}
		}
		return ""
	}
	return e.AttrOr("value", "")
}

// SetValueNative writes the value the way the native property setter does,
// bypassing any framework-overridden setter. The value attribute is untouched.
func (e *Element) SetValueNative(v string) {
	e.valueSet = true
	e.value = v
}

// Checked reports checkbox/radio state, honoring runtime toggles over the
// parsed checked attribute.
func (e *Element) Checked() bool {
	if e.checkedSet {
		return e.checked
	}
	return e.HasAttr("checked")
}

// SetChecked overrides the checked state at runtime.
func (e *Element) SetChecked(v bool) {
	e.checkedSet = true
	e.checked = v
}

// Options returns the select's options in DOM order, including those nested
// inside optgroups.
func (e *Element) Options() []*Element {
	var out []*Element
	for _, d := range e.Descendants() {
		if d.Tag() == "option" {
			out = append(out, d)
		}
	}
	return out
}

// OptionValue returns an option's submission value: the value attribute when
// present, otherwise its text.
func (e *Element) OptionValue() string {
	if v, ok := e.Attr("value"); ok {
		return v
	}
	return e.Text()
}

// Selected reports an option's selectedness, honoring runtime changes.
func (e *Element) Selected() bool {
	if e.selectedSet {
		return e.selected
	}
	return e.HasAttr("selected")
}

// SetSelected overrides an option's selectedness at runtime.
func (e *Element) SetSelected(v bool) {
	e.selectedSet = true
	e.selected = v
}

func (e *Element) firstSelectedOption() *Element {
	for _, opt := range e.Options() {
		if opt.Selected() {
			return opt
		}
	}
	return nil
}

// Multiple reports whether a select allows multiple selections.
func (e *Element) Multiple() bool { return e.HasAttr("multiple") }

// DisabledNative mirrors the :disabled pseudo-class: the disabled attribute on
// a form control or button, or an enclosing disabled fieldset/optgroup.
func (e *Element) DisabledNative() bool {
	switch e.Tag() {
	case "input", "select", "textarea", "button", "option", "optgroup", "fieldset":
	default:
		return false
	}
	if e.HasAttr("disabled") {
		return true
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if (p.Tag() == "fieldset" || p.Tag() == "optgroup") && p.HasAttr("disabled") {
			return true
		}
	}
	return false
}

// ContentEditableValue returns the contenteditable attribute and whether it is
// present. An empty present value means editable, the literal "false" does not.
func (e *Element) ContentEditableValue() (string, bool) {
	return e.Attr("contenteditable")
}

// Focus moves document focus to this element.
func (e *Element) Focus() {
	e.doc.focused = e
}

// Focused reports whether this element holds document focus.
func (e *Element) Focused() bool {
	return e.doc.focused == e
}

// Box returns the layout box. Zero in non-rendering contexts.
func (e *Element) Box() Box { return e.box }

// SetBox installs layout geometry (tests and live-page loaders use this).
func (e *Element) SetBox(b Box) {
	e.box = b
	e.boxSet = true
}

// Center returns the box center used for synthetic pointer coordinates.
func (e *Element) Center() (float64, float64) {
	return e.box.X + e.box.Width/2, e.box.Y + e.box.Height/2
}

// ScrollIntoView records that the element was scrolled into view.
func (e *Element) ScrollIntoView() {
	e.scrolled = true
}

// ScrolledIntoView reports whether ScrollIntoView was called.
func (e *Element) ScrolledIntoView() bool { return e.scrolled }

// styleDecl extracts one property from the inline style attribute.
func (e *Element) styleDecl(prop string) string {
	style, ok := e.Attr("style")
	if !ok {
		return ""
	}
	for _, decl := range strings.Split(style, ";") {
		name, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.ToLower(strings.TrimSpace(val))
		}
	}
	return ""
}

// Display returns the explicit display declaration, or "".
func (e *Element) Display() string { return e.styleDecl("display") }

// Visibility returns the explicit visibility declaration, or "".
func (e *Element) Visibility() string { return e.styleDecl("visibility") }

// Opacity returns the explicit opacity declaration, or "".
func (e *Element) Opacity() string { return e.styleDecl("opacity") }
