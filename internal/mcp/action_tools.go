package mcp

import (
	"context"
	"errors"
	"time"

	"pagelens-mcp-server/internal/action"
	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/control"
	"pagelens-mcp-server/internal/dialog"
	"pagelens-mcp-server/internal/facts"
)

// runAction is the shared mutating-action pipeline: staleness check, bounded
// execution, dialog-aware timeout classification, fact recording. Action
// failures come back as {success:false, error} payloads, not tool errors, so
// the caller can keep issuing actions.
func runAction(ctx context.Context, tabs *browser.Manager, engine *facts.Engine, timeout time.Duration,
	tabID, snapshotID, opName, ref string, fn func(*action.Executor) action.Result) (interface{}, error) {

	if err := tabs.Guard().Check(tabID, snapshotID); err != nil {
		if engine != nil {
			engine.Record("stale_rejected", tabID, opName, snapshotID)
		}
		return action.Result{Error: err.Error()}, nil
	}

	pc, err := tabs.Context(tabID)
	if err != nil {
		return nil, err
	}
	return runBounded(ctx, tabs, engine, timeout, tabID, opName, ref, func() action.Result {
		return pc.RunAction(fn)
	}), nil
}

// runBounded executes one mutating operation under the given timeout,
// upgrading a deadline to a dialog-blocked error when the tab's arbiter holds
// a pending dialog. The operation runs with the page context locked, so a
// timed-out run finishes before the next snapshot or action on the same tab
// touches the document; the timeout abandons only the wait.
func runBounded(ctx context.Context, tabs *browser.Manager, engine *facts.Engine, timeout time.Duration,
	tabID, opName, okRef string, run func() action.Result) action.Result {

	done := make(chan action.Result, 1)
	go func() { done <- run() }()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res action.Result
	select {
	case res = <-done:
	case <-actx.Done():
		var pending *dialog.PendingDialog
		if arb, arbErr := tabs.Arbiter(tabID); arbErr == nil && arb != nil {
			pending = arb.Pending()
		}
		classified := control.ClassifyActionError(actx.Err(), pending)
		if engine != nil {
			engine.Record("action_failed", tabID, opName, classified.Error())
		}
		return action.Result{Error: classified.Error()}
	}

	if engine != nil {
		if res.Success {
			engine.Record("action_ok", tabID, opName, okRef)
		} else {
			engine.Record("action_failed", tabID, opName, res.Error)
		}
	}
	return res
}

func requireActionArgs(args map[string]interface{}) (tabID, snapshotID, ref string, err error) {
	tabID = getStringArg(args, "tab_id")
	snapshotID = getStringArg(args, "snapshot_id")
	ref = getStringArg(args, "ref")
	if tabID == "" {
		return "", "", "", errors.New("tab_id is required")
	}
	if snapshotID == "" {
		return "", "", "", errors.New("snapshot_id is required")
	}
	if ref == "" {
		return "", "", "", errors.New("ref is required")
	}
	return tabID, snapshotID, ref, nil
}

func actionArgSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := map[string]interface{}{
		"tab_id":      stringProp("Tab the action targets"),
		"snapshot_id": stringProp("Snapshot id the ref was taken from; mismatches are rejected as stale"),
		"ref":         stringProp("Element ref from the snapshot, e.g. @e3"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return objectSchema(props, append([]string{"tab_id", "snapshot_id", "ref"}, required...)...)
}

// ClickTool clicks an element by ref.
type ClickTool struct {
	tabs    *browser.Manager
	engine  *facts.Engine
	timeout time.Duration
}

func (t *ClickTool) Name() string { return "click" }

func (t *ClickTool) Description() string {
	return "Click the element with the given ref: scrolls it into view, focuses it, and dispatches pointer and click events at its center."
}

func (t *ClickTool) InputSchema() map[string]interface{} {
	return actionArgSchema(nil)
}

func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID, snapshotID, ref, err := requireActionArgs(args)
	if err != nil {
		return nil, err
	}
	return runAction(ctx, t.tabs, t.engine, t.timeout, tabID, snapshotID, "click", ref,
		func(exec *action.Executor) action.Result { return exec.Click(ref) })
}

// TypeTextTool types into a text control or editable region by ref.
type TypeTextTool struct {
	tabs    *browser.Manager
	engine  *facts.Engine
	timeout time.Duration
}

func (t *TypeTextTool) Name() string { return "type-text" }

func (t *TypeTextTool) Description() string {
	return "Type text into the element with the given ref. Set clear_first to false to append instead of replace."
}

func (t *TypeTextTool) InputSchema() map[string]interface{} {
	return actionArgSchema(map[string]interface{}{
		"text":        stringProp("Text to type"),
		"clear_first": boolProp("Replace the existing value (default true)"),
	}, "text")
}

func (t *TypeTextTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID, snapshotID, ref, err := requireActionArgs(args)
	if err != nil {
		return nil, err
	}
	text := getStringArg(args, "text")
	clearFirst := getBoolArg(args, "clear_first", true)
	return runAction(ctx, t.tabs, t.engine, t.timeout, tabID, snapshotID, "type-text", ref,
		func(exec *action.Executor) action.Result { return exec.TypeText(ref, text, clearFirst) })
}

// SelectOptionTool selects an option on a select element by ref.
type SelectOptionTool struct {
	tabs    *browser.Manager
	engine  *facts.Engine
	timeout time.Duration
}

func (t *SelectOptionTool) Name() string { return "select-option" }

func (t *SelectOptionTool) Description() string {
	return "Select the option whose value attribute or visible text equals the given value on the select element with the given ref."
}

func (t *SelectOptionTool) InputSchema() map[string]interface{} {
	return actionArgSchema(map[string]interface{}{
		"value": stringProp("Option value attribute or visible text to match"),
	}, "value")
}

func (t *SelectOptionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID, snapshotID, ref, err := requireActionArgs(args)
	if err != nil {
		return nil, err
	}
	value := getStringArg(args, "value")
	return runAction(ctx, t.tabs, t.engine, t.timeout, tabID, snapshotID, "select-option", ref,
		func(exec *action.Executor) action.Result { return exec.SelectOption(ref, value) })
}
