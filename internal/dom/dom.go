// Package dom provides the in-process document model the page context operates on.
// HTML is parsed with golang.org/x/net/html; Element wraps parser nodes with the
// runtime state a static parse cannot carry (native-setter values, checked state,
// focus, layout boxes) so the snapshot compiler and the action layer can run
// without a rendering engine.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Document owns a parsed HTML tree plus the runtime state layered on top of it.
type Document struct {
	root     *html.Node
	wrappers map[*html.Node]*Element
	journal  []Event
	focused  *Element
}

// Parse builds a Document from raw HTML. The parser is lenient: fragments
// without html/head/body get the usual implied structure.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		root:     root,
		wrappers: make(map[*html.Node]*Element),
	}, nil
}

// MustParse is a test helper; it panics on parse errors.
func MustParse(src string) *Document {
	doc, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return doc
}

// wrap returns the canonical Element for a node, so identity comparisons work
// across repeated lookups.
func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := d.wrappers[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.wrappers[n] = el
	return el
}

// Root returns the <html> element.
func (d *Document) Root() *Element {
	for n := d.root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "html" {
			return d.wrap(n)
		}
	}
	return nil
}

// Body returns the <body> element when present.
func (d *Document) Body() *Element {
	root := d.Root()
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		if c.Tag() == "body" {
			return c
		}
	}
	return nil
}

// Title returns the trimmed text of <head><title>, or "" when absent.
func (d *Document) Title() string {
	root := d.Root()
	if root == nil {
		return ""
	}
	for _, c := range root.Children() {
		if c.Tag() != "head" {
			continue
		}
		for _, hc := range c.Descendants() {
			if hc.Tag() == "title" {
				return hc.Text()
			}
		}
	}
	return ""
}

// GetElementByID resolves an id reference anywhere in the document.
func (d *Document) GetElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	var found *Element
	walkNodes(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && attrValue(n, "id") == id {
			found = d.wrap(n)
			return false
		}
		return true
	})
	return found
}

// Forms returns all <form> elements in document order.
func (d *Document) Forms() []*Element {
	var forms []*Element
	walkNodes(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "form" {
			forms = append(forms, d.wrap(n))
		}
		return true
	})
	return forms
}

// Descendants returns every element in the document in preorder.
func (d *Document) Descendants() []*Element {
	var out []*Element
	walkNodes(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			out = append(out, d.wrap(n))
		}
		return true
	})
	return out
}

// CreateElement builds a detached element owned by this document. attrs may be nil.
func (d *Document) CreateElement(tag string, attrs map[string]string) *Element {
	n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	for k, v := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(k), Val: v})
	}
	return d.wrap(n)
}

// Focused returns the element holding focus, if any.
func (d *Document) Focused() *Element {
	return d.focused
}

// walkNodes visits n and its subtree in preorder. Returning false from fn
// prunes the subtree below the current node.
func walkNodes(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, fn)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
