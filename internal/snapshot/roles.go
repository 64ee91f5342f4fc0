// Package snapshot compiles a live DOM into a compact, ref-labeled
// accessibility tree: role and name resolution, visibility filtering, the
// tree walk that allocates @eN handles, and the serializer with its token
// budgeter. Tree construction and serialization are separate pure functions
// so both can be tested against DOM fixtures directly.
package snapshot

import (
	"fmt"
	"strings"

	"pagelens-mcp-server/internal/dom"
)

// interactiveRoles is the fixed set of explicit ARIA roles that make an
// element actionable regardless of its tag.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"checkbox":         true,
	"radio":            true,
	"combobox":         true,
	"listbox":          true,
	"textbox":          true,
	"searchbox":        true,
	"slider":           true,
	"spinbutton":       true,
	"switch":           true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"option":           true,
	"tab":              true,
}

// inputTypeRoles maps input[type] to its default role. Types not listed
// resolve to textbox.
var inputTypeRoles = map[string]string{
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"number":   "spinbutton",
	"search":   "searchbox",
	"submit":   "button",
	"reset":    "button",
	"button":   "button",
}

// structuralRoles maps landmark and grouping tags to structural roles.
var structuralRoles = map[string]string{
	"nav":      "nav",
	"header":   "banner",
	"footer":   "contentinfo",
	"aside":    "complementary",
	"main":     "main",
	"form":     "form",
	"table":    "table",
	"tr":       "row",
	"th":       "columnheader",
	"td":       "cell",
	"ul":       "list",
	"ol":       "list",
	"li":       "listitem",
	"dialog":   "dialog",
	"details":  "group",
	"fieldset": "group",
	"article":  "article",
	"img":      "img",
	"progress": "progressbar",
}

// ResolveRole maps an element to its accessibility role. An explicit role
// attribute wins, except "presentation"/"none" which suppress the structural
// role entirely (interactive behavior on the same element is judged
// separately by the interactive predicate). Returns "" for role-less nodes.
func ResolveRole(el *dom.Element) string {
	if raw, ok := el.Attr("role"); ok {
		role := strings.ToLower(strings.TrimSpace(raw))
		if i := strings.IndexAny(role, " \t"); i >= 0 {
			role = role[:i]
		}
		if role == "presentation" || role == "none" {
			return ""
		}
		if role != "" {
			return role
		}
	}

	switch tag := el.Tag(); tag {
	case "a":
		if el.HasAttr("href") {
			return "link"
		}
		return ""
	case "button", "summary":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		if role, ok := inputTypeRoles[el.InputType()]; ok {
			return role
		}
		return "textbox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return fmt.Sprintf("heading[%c]", tag[1])
	default:
		return structuralRoles[tag]
	}
}

// Interactive is the predicate deciding whether a node receives a ref handle:
// anchors with an href, native form controls and buttons, any element whose
// explicit role is in the interactive set, and contenteditable regions whose
// value is not the literal "false".
func Interactive(el *dom.Element) bool {
	switch el.Tag() {
	case "a":
		if el.HasAttr("href") {
			return true
		}
	case "button", "select", "textarea":
		return true
	case "input":
		// type=hidden never renders; it is pruned before this predicate runs,
		// but guard anyway so callers can use the predicate standalone.
		return el.InputType() != "hidden"
	}
	if raw, ok := el.Attr("role"); ok {
		if interactiveRoles[strings.ToLower(strings.TrimSpace(raw))] {
			return true
		}
	}
	if ce, ok := el.ContentEditableValue(); ok && !strings.EqualFold(ce, "false") {
		return true
	}
	return false
}
