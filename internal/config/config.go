package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the PageLens MCP server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Dialog   DialogConfig   `yaml:"dialog"`
	Facts    FactsConfig    `yaml:"facts"`
	MCP      MCPConfig      `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When empty a
	// managed Chrome is launched.
	DebuggerURL string `yaml:"debugger_url"`
	// Headless controls whether a launched Chrome runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Default timeout when attaching to an existing target (e.g., "10s").
	DefaultAttachTimeout string `yaml:"default_attach_timeout"`
	// Viewport width for new tabs (default: 1280).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new tabs (default: 800).
	ViewportHeight int `yaml:"viewport_height"`
}

// SnapshotConfig bounds the serialized accessibility snapshot.
type SnapshotConfig struct {
	// TokenBudget caps the estimated token count of one snapshot (default: 4096).
	TokenBudget int `yaml:"token_budget"`
}

// DialogConfig tunes native dialog handling.
type DialogConfig struct {
	// ProbeWindow bounds how long handle-dialog waits for a dialog event
	// before probing blindly (e.g., "500ms").
	ProbeWindow string `yaml:"probe_window"`
	// ActionTimeout bounds individual page actions; an action that exceeds it
	// while a dialog is pending is classified as dialog-blocked (e.g., "5s").
	ActionTimeout string `yaml:"action_timeout"`
	// ToolTimeout bounds synthesized-tool invocations, which chain several
	// field actions plus a submit and so get more room than a single action
	// (e.g., "15s").
	ToolTimeout string `yaml:"tool_timeout"`
}

// FactsConfig controls the embedded deductive engine.
type FactsConfig struct {
	Enable          bool `yaml:"enable"`
	FactBufferLimit int  `yaml:"fact_buffer_limit"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
	// RegisterSynthesized controls whether synthesized page tools are
	// registered on the MCP server dynamically (default: true).
	RegisterSynthesized *bool `yaml:"register_synthesized"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "pagelens-mcp",
			Version: "0.1.0",
			LogFile: "pagelens-mcp.log",
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "15s",
			DefaultAttachTimeout:     "10s",
			ViewportWidth:            1280,
			ViewportHeight:           800,
		},
		Snapshot: SnapshotConfig{
			TokenBudget: 4096,
		},
		Dialog: DialogConfig{
			ProbeWindow:   "500ms",
			ActionTimeout: "5s",
			ToolTimeout:   "15s",
		},
		Facts: FactsConfig{
			Enable:          true,
			FactBufferLimit: 2048,
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load reads YAML config from disk and overlays defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Snapshot.TokenBudget < 0 {
		return errors.New("snapshot.token_budget must not be negative")
	}
	if c.MCP.SSEPort < 0 || c.MCP.SSEPort > 65535 {
		return errors.New("mcp.sse_port must be a valid port")
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDuration(b.DefaultNavigationTimeout, 15*time.Second)
}

// AttachTimeout returns the parsed attach timeout with a sane default.
func (b BrowserConfig) AttachTimeout() time.Duration {
	return parseDuration(b.DefaultAttachTimeout, 10*time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 800
	}
	return b.ViewportHeight
}

// Budget returns the token budget with a sane default.
func (s SnapshotConfig) Budget() int {
	if s.TokenBudget <= 0 {
		return 4096
	}
	return s.TokenBudget
}

// GetProbeWindow returns the parsed probe window with a sane default.
func (d DialogConfig) GetProbeWindow() time.Duration {
	return parseDuration(d.ProbeWindow, 500*time.Millisecond)
}

// GetActionTimeout returns the parsed action timeout with a sane default.
func (d DialogConfig) GetActionTimeout() time.Duration {
	return parseDuration(d.ActionTimeout, 5*time.Second)
}

// GetToolTimeout returns the parsed synthesized-tool timeout with a sane default.
func (d DialogConfig) GetToolTimeout() time.Duration {
	return parseDuration(d.ToolTimeout, 15*time.Second)
}

// ShouldRegisterSynthesized reports whether synthesized page tools are
// registered on the MCP server (default: true).
func (m MCPConfig) ShouldRegisterSynthesized() bool {
	if m.RegisterSynthesized == nil {
		return true
	}
	return *m.RegisterSynthesized
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
