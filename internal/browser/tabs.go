// Package browser owns the Chrome connection and the set of open tabs. Each
// tab carries a page context (document + current snapshot), a dialog arbiter
// over its CDP session, and an entry in the staleness guard. Offline tabs
// hold fixture HTML with no live page behind them; the whole protocol works
// against them identically.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/control"
	"pagelens-mcp-server/internal/dialog"
	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/facts"
)

// Tab is the lightweight metadata returned to callers.
type Tab struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"targetId,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Offline    bool      `json:"offline,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

type tabRecord struct {
	meta    Tab
	page    *rod.Page // nil for offline tabs
	pc      *control.PageContext
	arbiter *dialog.Arbiter
}

// Manager owns the browser connection and tracks tabs.
type Manager struct {
	cfg    config.BrowserConfig
	dcfg   config.DialogConfig
	engine *facts.Engine
	guard  *control.StalenessGuard

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	tabs       map[string]*tabRecord
}

// NewManager builds a manager. engine may be nil when fact recording is off.
func NewManager(cfg config.BrowserConfig, dcfg config.DialogConfig, engine *facts.Engine) *Manager {
	return &Manager{
		cfg:    cfg,
		dcfg:   dcfg,
		engine: engine,
		guard:  control.NewStalenessGuard(),
		tabs:   make(map[string]*tabRecord),
	}
}

// Guard exposes the staleness guard shared with the tool layer.
func (m *Manager) Guard() *control.StalenessGuard { return m.guard }

// Start connects to an existing Chrome or launches a managed one via Rod's
// launcher. Safe to call again after a dead connection; orphaned live tabs
// are dropped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		for id, rec := range m.tabs {
			if rec.page != nil {
				delete(m.tabs, id)
			}
		}
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.IsHeadless()).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	log.Printf("browser connected at %s", controlURL)
	return nil
}

// IsConnected reports whether a live browser is attached.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes all live tabs and the browser connection. Offline tabs are
// dropped with the rest.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.tabs {
		if rec.arbiter != nil {
			rec.arbiter.Teardown()
		}
		if rec.page != nil {
			_ = rec.page.Close()
		}
		m.guard.Forget(id)
		delete(m.tabs, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	return err
}

// List returns metadata for all tracked tabs.
func (m *Manager) List() []Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tab, 0, len(m.tabs))
	for _, rec := range m.tabs {
		out = append(out, rec.meta)
	}
	return out
}

// OpenTab creates a new page in an incognito context, navigates it, ingests
// its document, and starts watching for navigations.
func (m *Manager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Printf("warning: failed to set viewport: %v", err)
	}

	_ = page.Timeout(m.cfg.NavigationTimeout()).WaitLoad()

	return m.track(ctx, page, url)
}

// AttachTab binds to an existing browser target by its TargetID.
func (m *Manager) AttachTab(ctx context.Context, targetID string) (*Tab, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	return m.track(ctx, page, "")
}

func (m *Manager) track(ctx context.Context, page *rod.Page, url string) (*Tab, error) {
	now := time.Now()
	meta := Tab{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		CreatedAt:  now,
		LastActive: now,
	}

	rec := &tabRecord{
		meta:    meta,
		page:    page,
		pc:      control.NewPageContext(meta.ID, nil),
		arbiter: dialog.NewArbiter(dialog.NewRodSession(page), nil, m.dcfg.GetProbeWindow()),
	}

	m.mu.Lock()
	m.tabs[meta.ID] = rec
	m.mu.Unlock()

	if err := m.Refresh(ctx, meta.ID); err != nil {
		log.Printf("[tab:%s] initial document ingest failed: %v", meta.ID, err)
	}
	m.watchNavigation(ctx, meta.ID, page)
	m.record("tab_opened", meta.ID, url)
	return &meta, nil
}

// OpenFixtureTab tracks a document parsed from literal HTML, with no live
// page behind it.
func (m *Manager) OpenFixtureTab(html string) (*Tab, error) {
	doc, err := dom.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	now := time.Now()
	meta := Tab{
		ID:         uuid.NewString(),
		Title:      doc.Title(),
		Offline:    true,
		CreatedAt:  now,
		LastActive: now,
	}

	m.mu.Lock()
	m.tabs[meta.ID] = &tabRecord{meta: meta, pc: control.NewPageContext(meta.ID, doc)}
	m.mu.Unlock()

	m.record("tab_opened", meta.ID, "fixture")
	return &meta, nil
}

// CloseTab tears down a tab's arbiter, closes its page, and forgets its
// staleness entry.
func (m *Manager) CloseTab(tabID string) error {
	m.mu.Lock()
	rec, has := m.tabs[tabID]
	if has {
		delete(m.tabs, tabID)
	}
	m.mu.Unlock()
	if !has {
		return fmt.Errorf("tab %s not found", tabID)
	}

	if rec.arbiter != nil {
		rec.arbiter.Teardown()
	}
	if rec.page != nil {
		_ = rec.page.Close()
	}
	m.guard.Forget(tabID)
	m.record("tab_closed", tabID)
	return nil
}

// Context returns a tab's page context.
func (m *Manager) Context(tabID string) (*control.PageContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, has := m.tabs[tabID]
	if !has {
		return nil, fmt.Errorf("tab %s not found", tabID)
	}
	return rec.pc, nil
}

// Arbiter returns a tab's dialog arbiter; nil for offline tabs.
func (m *Manager) Arbiter(tabID string) (*dialog.Arbiter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, has := m.tabs[tabID]
	if !has {
		return nil, fmt.Errorf("tab %s not found", tabID)
	}
	return rec.arbiter, nil
}

// Refresh pulls the live page's HTML and title into the tab's page context.
// No-op errors for offline tabs: their document never changes underneath us.
func (m *Manager) Refresh(ctx context.Context, tabID string) error {
	m.mu.Lock()
	rec, has := m.tabs[tabID]
	if has {
		rec.meta.LastActive = time.Now()
	}
	m.mu.Unlock()
	if !has {
		return fmt.Errorf("tab %s not found", tabID)
	}
	if rec.page == nil {
		return nil
	}

	page := rec.page.Context(ctx)
	html, err := page.HTML()
	if err != nil {
		return fmt.Errorf("read page html: %w", err)
	}
	doc, err := dom.Parse(html)
	if err != nil {
		return fmt.Errorf("parse page html: %w", err)
	}
	rec.pc.Reset(doc)

	if info, infoErr := page.Info(); infoErr == nil {
		m.mu.Lock()
		rec.meta.URL = info.URL
		rec.meta.Title = info.Title
		m.mu.Unlock()
	}
	return nil
}

// watchNavigation resets the page context and the staleness entry whenever
// the main frame navigates. Refs never survive a document change.
func (m *Manager) watchNavigation(ctx context.Context, tabID string, page *rod.Page) {
	wait := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame.ParentID != "" {
			return
		}
		m.mu.RLock()
		rec, has := m.tabs[tabID]
		m.mu.RUnlock()
		if !has {
			return
		}
		rec.pc.Reset(nil)
		m.guard.Forget(tabID)
		m.mu.Lock()
		rec.meta.URL = ev.Frame.URL
		m.mu.Unlock()
		log.Printf("[tab:%s] navigation to %s invalidated refs", tabID, ev.Frame.URL)
		m.record("navigated", tabID, ev.Frame.URL)
	})
	go wait()
}

func (m *Manager) record(predicate string, args ...interface{}) {
	if m.engine != nil {
		m.engine.Record(predicate, args...)
	}
}
