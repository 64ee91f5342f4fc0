package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/facts"
	mcpserver "pagelens-mcp-server/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "Path to the PageLens MCP config file (defaults apply when empty)")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// Redirect logging to file for stdio mode (stderr interferes with the MCP
	// protocol).
	if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
		logFile, openErr := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			log.SetOutput(io.Discard)
		}
	}

	engine := facts.NewEngine(cfg.Facts.Enable, cfg.Facts.FactBufferLimit)
	tabs := browser.NewManager(cfg.Browser, cfg.Dialog, engine)
	defer func() {
		if shutdownErr := tabs.Shutdown(context.Background()); shutdownErr != nil {
			log.Printf("browser shutdown: %v", shutdownErr)
		}
	}()

	server, err := mcpserver.NewServer(cfg, tabs, engine)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting PageLens MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting PageLens MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}
