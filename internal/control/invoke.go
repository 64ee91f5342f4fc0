package control

import (
	"fmt"
	"sort"
	"strconv"

	"pagelens-mcp-server/internal/action"
	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/toolsynth"
)

// InvokeTool executes a synthesized tool against its bound elements. Form
// tools apply each argument to its field with the matching action, then click
// the submit control; button tools click. Arguments are applied in sorted key
// order so the page sees a deterministic event sequence.
func InvokeTool(tool toolsynth.Tool, args map[string]interface{}) action.Result {
	switch tool.Source {
	case toolsynth.SourceButton:
		if tool.Target == nil || tool.Target.Detached() {
			return action.Result{Error: fmt.Sprintf("tool %s: target button not found in current document", tool.Name)}
		}
		return action.ClickElement(tool.Target)

	case toolsynth.SourceForm:
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			el, known := tool.Fields[key]
			if !known {
				return action.Result{Error: fmt.Sprintf("tool %s: unknown argument %q", tool.Name, key)}
			}
			if el.Detached() {
				return action.Result{Error: fmt.Sprintf("tool %s: field %q not found in current document", tool.Name, key)}
			}
			if res := applyField(el, args[key]); !res.Success {
				return action.Result{Error: fmt.Sprintf("tool %s: field %q: %s", tool.Name, key, res.Error)}
			}
		}

		if tool.Submit != nil && !tool.Submit.Detached() {
			return action.ClickElement(tool.Submit)
		}
		return submitWithoutControl(tool)

	default:
		return action.Result{Error: fmt.Sprintf("tool %s: source %q is not invocable here", tool.Name, tool.Source)}
	}
}

// applyField routes one argument value to the field's natural action.
func applyField(el *dom.Element, value interface{}) action.Result {
	switch action.Classify(el) {
	case action.SelectableControl:
		s, isStr := value.(string)
		if !isStr {
			return action.Result{Error: fmt.Sprintf("expected string for select, got %T", value)}
		}
		return action.SelectOnElement(el, s)
	}

	if el.Tag() == "input" && el.InputType() == "checkbox" {
		b, isBool := value.(bool)
		if !isBool {
			return action.Result{Error: fmt.Sprintf("expected boolean for checkbox, got %T", value)}
		}
		return action.SetCheckedElement(el, b)
	}

	return action.TypeIntoElement(el, stringify(value), true)
}

// stringify renders a JSON-decoded argument as field text. Whole-number
// floats print without a fractional part so number inputs get "42" not "42.000000".
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// submitWithoutControl falls back to a submit event on the enclosing form
// when the form declares no submit control.
func submitWithoutControl(tool toolsynth.Tool) action.Result {
	for _, el := range tool.Fields {
		if form := el.Closest("form"); form != nil {
			form.Dispatch(dom.Event{Type: "submit", Bubbles: true, Cancelable: true})
			return action.Result{Success: true}
		}
	}
	return action.Result{Error: fmt.Sprintf("tool %s: no submit control and no enclosing form", tool.Name)}
}
