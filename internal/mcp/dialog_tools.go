package mcp

import (
	"context"
	"errors"

	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/facts"
)

// HandleDialogTool answers a native browser dialog on a tab.
type HandleDialogTool struct {
	tabs   *browser.Manager
	engine *facts.Engine
}

func (t *HandleDialogTool) Name() string { return "handle-dialog" }

func (t *HandleDialogTool) Description() string {
	return "Accept or dismiss a native dialog (alert, confirm, prompt, beforeunload) on a tab. Waits briefly for a dialog event, then probes blindly in case one was already open. handled:false means no dialog was present."
}

func (t *HandleDialogTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tab_id":      stringProp("Tab whose dialog to answer"),
		"accept":      boolProp("Accept (OK) or dismiss (Cancel) the dialog"),
		"prompt_text": stringProp("Text to enter when the dialog is a prompt"),
	}, "tab_id", "accept")
}

func (t *HandleDialogTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		return nil, errors.New("tab_id is required")
	}

	arbiter, err := t.tabs.Arbiter(tabID)
	if err != nil {
		return nil, err
	}
	if arbiter == nil {
		return nil, errors.New("tab has no live page; fixture tabs cannot show dialogs")
	}

	accept := getBoolArg(args, "accept", true)
	promptText := getStringArg(args, "prompt_text")

	result, err := arbiter.HandleDialog(ctx, accept, promptText)
	if err != nil {
		return nil, err
	}

	if t.engine != nil && result.Handled {
		t.engine.Record("dialog_answered", tabID, result.DialogType, accept)
	}
	return result, nil
}
