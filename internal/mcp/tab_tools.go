package mcp

import (
	"context"
	"errors"

	"pagelens-mcp-server/internal/browser"
)

// ListTabsTool lists all tracked tabs.
type ListTabsTool struct {
	tabs *browser.Manager
}

func (t *ListTabsTool) Name() string { return "list-tabs" }

func (t *ListTabsTool) Description() string {
	return "List all open tabs with their ids, URLs and titles."
}

func (t *ListTabsTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ListTabsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"tabs": t.tabs.List()}, nil
}

// OpenTabTool opens a new tab from a URL, or from literal HTML as an offline
// fixture tab.
type OpenTabTool struct {
	tabs *browser.Manager
}

func (t *OpenTabTool) Name() string { return "open-tab" }

func (t *OpenTabTool) Description() string {
	return "Open a new tab. Provide url for a live browser tab, or html for an offline fixture tab."
}

func (t *OpenTabTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url":  stringProp("URL to navigate the new tab to"),
		"html": stringProp("Literal HTML for an offline fixture tab (no browser required)"),
	})
}

func (t *OpenTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	html := getStringArg(args, "html")

	switch {
	case html != "":
		tab, err := t.tabs.OpenFixtureTab(html)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tab": tab}, nil
	case url != "":
		if err := t.tabs.Start(ctx); err != nil {
			return nil, err
		}
		tab, err := t.tabs.OpenTab(ctx, url)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tab": tab}, nil
	default:
		return nil, errors.New("either url or html is required")
	}
}

// AttachTabTool binds to an existing browser target.
type AttachTabTool struct {
	tabs *browser.Manager
}

func (t *AttachTabTool) Name() string { return "attach-tab" }

func (t *AttachTabTool) Description() string {
	return "Attach to an existing browser target by its DevTools target id."
}

func (t *AttachTabTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"target_id": stringProp("DevTools target id of the page to attach to"),
	}, "target_id")
}

func (t *AttachTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID := getStringArg(args, "target_id")
	if targetID == "" {
		return nil, errors.New("target_id is required")
	}
	if err := t.tabs.Start(ctx); err != nil {
		return nil, err
	}
	tab, err := t.tabs.AttachTab(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"tab": tab}, nil
}

// CloseTabTool tears a tab down.
type CloseTabTool struct {
	tabs *browser.Manager
}

func (t *CloseTabTool) Name() string { return "close-tab" }

func (t *CloseTabTool) Description() string {
	return "Close a tab and discard its snapshot and dialog state."
}

func (t *CloseTabTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tab_id": stringProp("Tab id from list-tabs or open-tab"),
	}, "tab_id")
}

func (t *CloseTabTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		return nil, errors.New("tab_id is required")
	}
	if err := t.tabs.CloseTab(tabID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"closed": tabID}, nil
}
