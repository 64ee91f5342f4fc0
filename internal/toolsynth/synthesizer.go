// Package toolsynth derives callable tool schemas from ordinary page markup.
// Forms and standalone buttons become tools a controller can invoke when the
// page declares no native tools of its own. The synthesizer is an independent
// consumer of the DOM: it never touches ref handles.
package toolsynth

import (
	"fmt"
	"strings"

	"pagelens-mcp-server/internal/dom"
)

// Source records how a tool came to exist.
type Source string

const (
	SourceNative Source = "native-declared"
	SourceForm   Source = "synthesized-from-form"
	SourceButton Source = "synthesized-from-button"
)

// Property is one field of a tool's input schema.
type Property struct {
	Type        string   `json:"type"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Schema is the JSON-Schema-like object describing a tool's arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Tool is a callable schema synthesized from the page. The element bindings
// let the invoker act on the page directly; they never cross the wire.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
	Source      Source `json:"source"`
	TabID       string `json:"tabId"`

	Fields map[string]*dom.Element `json:"-"`
	Submit *dom.Element            `json:"-"`
	Target *dom.Element            `json:"-"`
}

// Synthesize scans the document and returns tools for every qualifying form
// and standalone button. Recomputed from scratch on each call; forms and
// buttons failing preconditions are silently omitted, never errors.
func Synthesize(doc *dom.Document, tabID string) []Tool {
	var tools []Tool
	seen := make(map[string]int)

	for _, form := range doc.Forms() {
		if tool, okTool := synthesizeForm(form, tabID); okTool {
			tool.Name = uniqueName(seen, tool.Name)
			tools = append(tools, tool)
		}
	}

	for _, el := range doc.Descendants() {
		if !buttonLike(el) || el.Closest("form") != nil {
			continue
		}
		if tool, okTool := synthesizeButton(el, tabID); okTool {
			tool.Name = uniqueName(seen, tool.Name)
			tools = append(tools, tool)
		}
	}

	return tools
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

// --- forms ---

func synthesizeForm(form *dom.Element, tabID string) (Tool, bool) {
	props := make(map[string]Property)
	fields := make(map[string]*dom.Element)
	var required []string

	for _, el := range form.Descendants() {
		switch el.Tag() {
		case "input":
			t := el.InputType()
			if t == "hidden" || t == "submit" {
				continue
			}
		case "select", "textarea":
		default:
			continue
		}

		key := el.AttrOr("name", "")
		if key == "" {
			key = el.AttrOr("id", "")
		}
		if key == "" {
			continue
		}
		if _, dup := props[key]; dup {
			continue
		}

		props[key] = fieldSchema(el)
		fields[key] = el
		if el.HasAttr("required") {
			required = append(required, key)
		}
	}

	if len(props) == 0 {
		return Tool{}, false
	}

	display := formDisplayName(form)
	return Tool{
		Name:        "form_" + Slug(display),
		Description: fmt.Sprintf("Fill out and submit the %q form on this page.", display),
		InputSchema: Schema{Type: "object", Properties: props, Required: required},
		Source:      SourceForm,
		TabID:       tabID,
		Fields:      fields,
		Submit:      submitControl(form),
	}, true
}

func fieldSchema(el *dom.Element) Property {
	switch el.Tag() {
	case "select":
		var values []string
		for _, opt := range el.Options() {
			values = append(values, opt.OptionValue())
		}
		return Property{Type: "string", Enum: values}
	case "textarea":
		return Property{Type: "string"}
	}

	switch el.InputType() {
	case "checkbox":
		return Property{Type: "boolean"}
	case "number", "range":
		return Property{Type: "number"}
	case "email":
		return Property{Type: "string", Description: "An email address"}
	case "url":
		return Property{Type: "string", Description: "A URL"}
	case "tel":
		return Property{Type: "string", Description: "A telephone number"}
	case "date":
		return Property{Type: "string", Description: "A date"}
	default:
		return Property{Type: "string"}
	}
}

// formDisplayName derives a human name for the form: aria-label, title, a
// nearby heading, the submit control's text, the action URL's last path
// segment, then a literal fallback.
func formDisplayName(form *dom.Element) string {
	if v := strings.TrimSpace(form.AttrOr("aria-label", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(form.AttrOr("title", "")); v != "" {
		return v
	}
	if h := nearbyHeading(form); h != "" {
		return h
	}
	if submit := submitControl(form); submit != nil {
		if text := submitText(submit); text != "" {
			return text
		}
	}
	if seg := lastPathSegment(form.AttrOr("action", "")); seg != "" {
		return seg
	}
	return "unnamed_form"
}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

// nearbyHeading finds the nearest preceding sibling heading, falling back to
// the first heading descendant of the nearest ancestor that has one.
func nearbyHeading(form *dom.Element) string {
	for _, sib := range form.PrevSiblings() {
		if headingTags[sib.Tag()] {
			return sib.Text()
		}
	}
	for anc := form.Parent(); anc != nil; anc = anc.Parent() {
		for _, d := range anc.Descendants() {
			if headingTags[d.Tag()] {
				return d.Text()
			}
		}
	}
	return ""
}

func submitControl(form *dom.Element) *dom.Element {
	for _, el := range form.Descendants() {
		switch el.Tag() {
		case "button":
			// Buttons default to type=submit inside a form.
			if t := strings.ToLower(el.AttrOr("type", "submit")); t == "submit" {
				return el
			}
		case "input":
			if el.InputType() == "submit" {
				return el
			}
		}
	}
	return nil
}

func submitText(el *dom.Element) string {
	if el.Tag() == "input" {
		return strings.TrimSpace(el.AttrOr("value", ""))
	}
	return el.Text()
}

func lastPathSegment(action string) string {
	if action == "" {
		return ""
	}
	if i := strings.IndexAny(action, "?#"); i >= 0 {
		action = action[:i]
	}
	segs := strings.Split(action, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return s
		}
	}
	return ""
}

// --- standalone buttons ---

func buttonLike(el *dom.Element) bool {
	if el.Tag() == "button" {
		return true
	}
	role, _ := el.Attr("role")
	return strings.EqualFold(strings.TrimSpace(role), "button")
}

// synthesizeButton names a standalone button via aria-label, then its own
// text when shorter than 50 characters, then title. Text of 50+ characters is
// decorative, not a name: the element is skipped outright.
func synthesizeButton(el *dom.Element, tabID string) (Tool, bool) {
	name := strings.TrimSpace(el.AttrOr("aria-label", ""))
	if name == "" {
		text := el.Text()
		switch {
		case text != "" && len([]rune(text)) < 50:
			name = text
		case text != "":
			return Tool{}, false
		default:
			name = strings.TrimSpace(el.AttrOr("title", ""))
		}
	}
	if name == "" {
		return Tool{}, false
	}

	return Tool{
		Name:        "button_" + Slug(name),
		Description: fmt.Sprintf("Click the %q button.", name),
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		Source:      SourceButton,
		TabID:       tabID,
		Target:      el,
	}, true
}

// Slug lowercases, collapses runs of non-alphanumerics to single underscores,
// strips leading/trailing underscores, and caps the length at 40.
func Slug(s string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && sb.Len() > 0 {
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(sb.String(), "_")
	if len(out) > 40 {
		out = strings.Trim(out[:40], "_")
	}
	return out
}
