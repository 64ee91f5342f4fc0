package mcp

import (
	"context"
	"errors"

	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/facts"
)

// SnapshotTool compiles a tab's document into the compact interactive-element
// tree and hands out the ref handles actions use.
type SnapshotTool struct {
	tabs   *browser.Manager
	engine *facts.Engine
	budget int
}

func (t *SnapshotTool) Name() string { return "snapshot" }

func (t *SnapshotTool) Description() string {
	return "Take a snapshot of a tab: a compact accessibility tree where interactive elements carry @eN refs. Returns a new snapshot id; refs from older snapshots stop resolving."
}

func (t *SnapshotTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tab_id":  stringProp("Tab to snapshot"),
		"refresh": boolProp("Re-read the live page's HTML first (default true; ignored for fixture tabs)"),
	}, "tab_id")
}

func (t *SnapshotTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		return nil, errors.New("tab_id is required")
	}

	if getBoolArg(args, "refresh", true) {
		if err := t.tabs.Refresh(ctx, tabID); err != nil {
			return nil, err
		}
	}

	pc, err := t.tabs.Context(tabID)
	if err != nil {
		return nil, err
	}
	res, err := pc.Snapshot(t.budget)
	if err != nil {
		return nil, err
	}

	t.tabs.Guard().Issued(tabID, res.ID)
	if t.engine != nil {
		t.engine.Record("snapshot_taken", tabID, res.ID, res.Refs.Len())
	}

	return map[string]interface{}{
		"snapshotId": res.ID,
		"text":       res.Text,
		"tokens":     res.Tokens,
		"truncated":  res.Truncated,
		"refCount":   res.Refs.Len(),
	}, nil
}
