package mcp

import (
	"context"
	"errors"

	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/toolsynth"
)

// SynthesizeToolsTool derives callable tools from a tab's forms and
// standalone buttons, optionally registering them on the live MCP server.
type SynthesizeToolsTool struct {
	server *Server
}

func (t *SynthesizeToolsTool) Name() string { return "synthesize-tools" }

func (t *SynthesizeToolsTool) Description() string {
	return "Derive callable tools from the page: one form_* tool per form with named fields, one button_* tool per standalone button. Optionally registers them as live MCP tools."
}

func (t *SynthesizeToolsTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tab_id":   stringProp("Tab to scan"),
		"register": boolProp("Register the synthesized tools on this server so they can be called directly (default per config)"),
	}, "tab_id")
}

func (t *SynthesizeToolsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tabID := getStringArg(args, "tab_id")
	if tabID == "" {
		return nil, errors.New("tab_id is required")
	}

	pc, err := t.server.tabs.Context(tabID)
	if err != nil {
		return nil, err
	}

	// Scanning the document must queue behind any in-flight action on the tab.
	var tools []toolsynth.Tool
	if err := pc.Do(func(doc *dom.Document) { tools = toolsynth.Synthesize(doc, tabID) }); err != nil {
		return nil, errors.New("no document loaded for tab; take a snapshot first")
	}

	if t.server.engine != nil {
		for _, tool := range tools {
			t.server.engine.Record("tool_synthesized", tabID, tool.Name, string(tool.Source))
		}
	}

	if getBoolArg(args, "register", t.server.cfg.MCP.ShouldRegisterSynthesized()) {
		t.server.registerSynthesized(tools)
	}

	return map[string]interface{}{"tools": tools, "count": len(tools)}, nil
}
