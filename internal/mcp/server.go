// Package mcp exposes the page protocol over the Model Context Protocol:
// tab management, snapshots, ref-based actions, tool synthesis, dialog
// handling and fact queries, over stdio or SSE.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"pagelens-mcp-server/internal/action"
	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/control"
	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/facts"
	"pagelens-mcp-server/internal/toolsynth"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wires the MCP runtime, the tab manager, and the fact engine.
type Server struct {
	cfg       config.Config
	tabs      *browser.Manager
	engine    *facts.Engine
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer

	synthMu     sync.Mutex
	synthesized map[string]toolsynth.Tool
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the PageLens MCP server and registers all tools.
func NewServer(cfg config.Config, tabs *browser.Manager, engine *facts.Engine) (*Server, error) {
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:         cfg,
		tabs:        tabs,
		engine:      engine,
		tools:       make(map[string]Tool),
		mcpServer:   mcpSrv,
		synthesized: make(map[string]toolsynth.Tool),
	}

	server.registerAllTools()
	return server, nil
}

// Start launches the stdio server.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("SSE server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a registered tool directly (used by tests).
func (s *Server) ExecuteTool(name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(context.Background(), args)
}

func (s *Server) registerAllTools() {
	s.registerTool(&ListTabsTool{tabs: s.tabs})
	s.registerTool(&OpenTabTool{tabs: s.tabs})
	s.registerTool(&AttachTabTool{tabs: s.tabs})
	s.registerTool(&CloseTabTool{tabs: s.tabs})

	s.registerTool(&SnapshotTool{tabs: s.tabs, engine: s.engine, budget: s.cfg.Snapshot.Budget()})

	s.registerTool(&ClickTool{tabs: s.tabs, engine: s.engine, timeout: s.cfg.Dialog.GetActionTimeout()})
	s.registerTool(&TypeTextTool{tabs: s.tabs, engine: s.engine, timeout: s.cfg.Dialog.GetActionTimeout()})
	s.registerTool(&SelectOptionTool{tabs: s.tabs, engine: s.engine, timeout: s.cfg.Dialog.GetActionTimeout()})

	s.registerTool(&SynthesizeToolsTool{server: s})
	s.registerTool(&HandleDialogTool{tabs: s.tabs, engine: s.engine})

	s.registerTool(&QueryFactsTool{engine: s.engine})
	s.registerTool(&SubmitRuleTool{engine: s.engine})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}

// registerSynthesized exposes page-derived tools on the live MCP server.
// Re-synthesis for the same page replaces same-named entries; invocation
// looks the tool up at call time so stale registrations fail cleanly.
func (s *Server) registerSynthesized(tools []toolsynth.Tool) {
	s.synthMu.Lock()
	defer s.synthMu.Unlock()

	for _, t := range tools {
		s.synthesized[t.Name] = t

		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			continue
		}
		name := t.Name
		mcpTool := mcp.NewToolWithRawSchema(name, t.Description, schema)
		s.mcpServer.AddTool(mcpTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := request.GetArguments()
			if args == nil {
				args = map[string]interface{}{}
			}
			result := s.invokeSynthesized(ctx, name, args)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(string(marshalToolPayload(name, result)))},
				IsError: false,
			}, nil
		})
	}
}

// invokeSynthesized runs a registered page tool under the tool timeout, which
// is longer than the action timeout because one invocation chains several
// field actions plus a submit. It shares the bounded pipeline with ref
// actions, so a deadline with a pending dialog reports dialog-blocked and the
// run stays serialized on the tab's page context.
func (s *Server) invokeSynthesized(ctx context.Context, name string, args map[string]interface{}) interface{} {
	s.synthMu.Lock()
	tool, known := s.synthesized[name]
	s.synthMu.Unlock()
	if !known {
		return map[string]interface{}{"success": false, "error": fmt.Sprintf("synthesized tool %s no longer registered", name)}
	}

	pc, err := s.tabs.Context(tool.TabID)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}
	}

	return runBounded(ctx, s.tabs, s.engine, s.cfg.Dialog.GetToolTimeout(), tool.TabID, name, "invoke-tool",
		func() action.Result {
			var res action.Result
			if doErr := pc.Do(func(*dom.Document) { res = control.InvokeTool(tool, args) }); doErr != nil {
				return action.Result{Error: doErr.Error()}
			}
			return res
		})
}
