package snapshot

import (
	"strconv"
	"strings"

	"pagelens-mcp-server/internal/dom"
)

// HidesSubtree reports whether the element removes itself and every
// descendant from perception: aria-hidden="true", display:none, or an
// explicit opacity of zero. None of these can be overridden below.
//
// Only explicit style declarations are consulted. Layout box dimensions are
// deliberately ignored: non-rendering hosts report zero boxes for perfectly
// visible elements.
func HidesSubtree(el *dom.Element) bool {
	if v, ok := el.Attr("aria-hidden"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	if el.Display() == "none" {
		return true
	}
	if op := el.Opacity(); op != "" {
		if f, err := strconv.ParseFloat(op, 64); err == nil && f == 0 {
			return true
		}
	}
	return false
}

// EffectiveVisibility resolves CSS visibility inheritance: an element's own
// explicit declaration wins, otherwise the value inherited from its parent
// applies. A descendant that sets visibility:visible is perceivable under a
// visibility:hidden ancestor.
func EffectiveVisibility(el *dom.Element, inherited string) string {
	if own := el.Visibility(); own != "" {
		return own
	}
	return inherited
}

// SelfVisible reports whether the element itself is perceivable given the
// inherited visibility value. Subtree-hiding conditions are checked
// separately by HidesSubtree.
func SelfVisible(el *dom.Element, inherited string) bool {
	return EffectiveVisibility(el, inherited) != "hidden"
}
