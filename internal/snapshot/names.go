package snapshot

import (
	"strings"

	"pagelens-mcp-server/internal/dom"
)

// maxNameLength caps accessible names; longer names are truncated to 77
// characters plus an ellipsis marker.
const maxNameLength = 80

// ResolveName computes the accessible name via the fixed priority chain:
// aria-label, aria-labelledby, associated <label>, placeholder, title, alt
// (images), and finally the element's own text for buttons, links, summaries
// and headings. First non-empty wins.
func ResolveName(el *dom.Element) string {
	if v, ok := el.Attr("aria-label"); ok {
		if name := strings.TrimSpace(v); name != "" {
			return truncateName(name)
		}
	}

	if v, ok := el.Attr("aria-labelledby"); ok {
		if name := labelledByName(el.Document(), v); name != "" {
			return truncateName(name)
		}
	}

	if name := labelName(el); name != "" {
		return truncateName(name)
	}

	if v, ok := el.Attr("placeholder"); ok {
		if name := strings.TrimSpace(v); name != "" {
			return truncateName(name)
		}
	}

	if v, ok := el.Attr("title"); ok {
		if name := strings.TrimSpace(v); name != "" {
			return truncateName(name)
		}
	}

	if el.Tag() == "img" {
		if v, ok := el.Attr("alt"); ok {
			if name := strings.TrimSpace(v); name != "" {
				return truncateName(name)
			}
		}
	}

	switch el.Tag() {
	case "button", "a", "summary", "h1", "h2", "h3", "h4", "h5", "h6":
		if name := el.Text(); name != "" {
			return truncateName(name)
		}
	}

	return ""
}

// labelledByName concatenates the text of every resolvable id reference,
// space-joined, silently skipping ids that resolve to nothing.
func labelledByName(doc *dom.Document, ids string) string {
	var parts []string
	for _, id := range strings.Fields(ids) {
		if ref := doc.GetElementByID(id); ref != nil {
			if text := ref.Text(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// labelName resolves an associated <label>: first by for= reference, then the
// nearest wrapping label with the control's own text subtracted out.
func labelName(el *dom.Element) string {
	id, hasID := el.Attr("id")
	if hasID && id != "" {
		for _, cand := range el.Document().Descendants() {
			if cand.Tag() != "label" {
				continue
			}
			if forID, ok := cand.Attr("for"); ok && forID == id {
				if text := cand.Text(); text != "" {
					return text
				}
			}
		}
	}

	if wrapper := el.Closest("label"); wrapper != nil && wrapper != el {
		if text := wrapper.OwnTextExcluding(el); text != "" {
			return text
		}
	}
	return ""
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLength {
		return name
	}
	return string(runes[:maxNameLength-3]) + "..."
}
