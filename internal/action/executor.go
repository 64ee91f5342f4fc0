// Package action resolves ref handles back to live elements and performs
// clicks, typing and option selection with framework-compatible event
// synthesis. Failures come back as structured results, never as panics or
// errors that would abort a batch of subsequent actions.
package action

import (
	"fmt"
	"strings"

	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/snapshot"
)

// Result is the contract every mutating operation returns. Error strings are
// human-readable and always contain "not found", "disabled", or a
// type-mismatch phrase; callers pattern-match on these.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func fail(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Capability is the closed set of element kinds the executor dispatches on,
// determined once per target instead of chained type probes.
type Capability int

const (
	GenericElement Capability = iota
	TextControl
	SelectableControl
	EditableRegion
)

// textInputTypes are the input types that accept typed text.
var textInputTypes = map[string]bool{
	"text":     true,
	"search":   true,
	"email":    true,
	"url":      true,
	"tel":      true,
	"password": true,
	"number":   true,
}

// Classify determines the capability of an element.
func Classify(el *dom.Element) Capability {
	switch el.Tag() {
	case "textarea":
		return TextControl
	case "input":
		if textInputTypes[el.InputType()] {
			return TextControl
		}
		return GenericElement
	case "select":
		return SelectableControl
	}
	if ce, hasCE := el.ContentEditableValue(); hasCE && !strings.EqualFold(ce, "false") {
		return EditableRegion
	}
	return GenericElement
}

// Executor performs actions against one snapshot's ref table.
type Executor struct {
	refs *snapshot.RefTable
}

// NewExecutor binds an executor to a ref table.
func NewExecutor(refs *snapshot.RefTable) *Executor {
	return &Executor{refs: refs}
}

// resolve looks a ref up and verifies the element is still in the document.
func (x *Executor) resolve(ref string) (*dom.Element, Result) {
	el, found := x.refs.Resolve(ref)
	if !found {
		return nil, fail("element %s not found in current snapshot", ref)
	}
	if el.Detached() {
		return nil, fail("element %s not found: detached from document", ref)
	}
	return el, ok()
}

// disabled is the shared disability check: native :disabled state or
// aria-disabled="true". aria-disabled="false" explicitly does not count.
func disabled(el *dom.Element) bool {
	if el.DisabledNative() {
		return true
	}
	v, has := el.Attr("aria-disabled")
	return has && strings.EqualFold(strings.TrimSpace(v), "true")
}

// Click scrolls the target into view and dispatches focus, pointerdown,
// pointerup and click at the element's box center, all bubbling and
// cancelable, so page code reading event coordinates sees a real interaction.
func (x *Executor) Click(ref string) Result {
	el, res := x.resolve(ref)
	if !res.Success {
		return res
	}
	if disabled(el) {
		return fail("element %s is disabled", ref)
	}
	return ClickElement(el)
}

// ClickElement performs the click sequence on an already-resolved element.
func ClickElement(el *dom.Element) Result {
	el.ScrollIntoView()
	cx, cy := el.Center()
	el.Focus()
	for _, typ := range []string{"focus", "pointerdown", "pointerup", "click"} {
		el.Dispatch(dom.Event{Type: typ, X: cx, Y: cy, Bubbles: true, Cancelable: true})
	}
	return ok()
}

// TypeText types into a text-capable control or an editable region. Form
// controls get their value written through the native property setter so
// framework-bound state updates, then input and change events. Editable
// regions get only an input event; they have no native change semantics.
func (x *Executor) TypeText(ref, text string, clearFirst bool) Result {
	el, res := x.resolve(ref)
	if !res.Success {
		return res
	}

	cap := Classify(el)
	if cap != TextControl && cap != EditableRegion {
		return fail("element %s is not a text input (%s)", ref, el.Tag())
	}
	if disabled(el) {
		return fail("element %s is disabled", ref)
	}
	return TypeIntoElement(el, text, clearFirst)
}

// TypeIntoElement writes text into an already-classified text-capable element.
func TypeIntoElement(el *dom.Element, text string, clearFirst bool) Result {
	el.Focus()
	el.Dispatch(dom.Event{Type: "focus", Bubbles: true, Cancelable: true})

	if Classify(el) == TextControl {
		value := text
		if !clearFirst {
			value = el.Value() + text
		}
		el.SetValueNative(value)
		el.Dispatch(dom.Event{Type: "input", Bubbles: true, Cancelable: true})
		el.Dispatch(dom.Event{Type: "change", Bubbles: true, Cancelable: true})
		return ok()
	}

	if clearFirst {
		el.ClearContent()
	}
	el.AppendText(text)
	el.Dispatch(dom.Event{Type: "input", Bubbles: true, Cancelable: true})
	return ok()
}

// SelectOption selects the first option, in DOM order, whose value attribute
// or trimmed visible text equals the requested string. Iteration order
// decides when both could match; value equality is not prioritized. Multi
// selects keep existing selections, single selects follow native deselection.
func (x *Executor) SelectOption(ref, value string) Result {
	el, res := x.resolve(ref)
	if !res.Success {
		return res
	}
	if Classify(el) != SelectableControl {
		return fail("element %s is not a select (%s)", ref, el.Tag())
	}
	if disabled(el) {
		return fail("element %s is disabled", ref)
	}
	return SelectOnElement(el, value)
}

// SelectOnElement runs option matching and selection on a resolved select.
func SelectOnElement(el *dom.Element, value string) Result {
	options := el.Options()
	var matched *dom.Element
	for _, opt := range options {
		if v, has := opt.Attr("value"); has && v == value {
			matched = opt
			break
		}
		if opt.Text() == value {
			matched = opt
			break
		}
	}
	if matched == nil {
		return fail("option not found: %q", value)
	}
	if matched.DisabledNative() {
		return fail("option %q is disabled", value)
	}

	if el.Multiple() {
		matched.SetSelected(true)
	} else {
		for _, opt := range options {
			opt.SetSelected(opt == matched)
		}
	}

	el.Dispatch(dom.Event{Type: "input", Bubbles: true, Cancelable: true})
	el.Dispatch(dom.Event{Type: "change", Bubbles: true, Cancelable: true})
	return ok()
}

// SetCheckedElement flips a checkbox to the requested state, firing input and
// change only when the state actually changes.
func SetCheckedElement(el *dom.Element, checked bool) Result {
	if el.Checked() == checked {
		return ok()
	}
	el.SetChecked(checked)
	el.Dispatch(dom.Event{Type: "input", Bubbles: true, Cancelable: true})
	el.Dispatch(dom.Event{Type: "change", Bubbles: true, Cancelable: true})
	return ok()
}
