// Package control ties the protocol pieces together per tab: the page
// context that owns the document and the current snapshot, the staleness
// guard, synthesized-tool invocation, and timeout classification.
package control

import (
	"errors"
	"sync"

	"pagelens-mcp-server/internal/action"
	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/snapshot"
)

var errNoDocument = errors.New("no document loaded for tab")

// PageContext owns one tab's document and its most recent snapshot. The ref
// table inside is replaced wholesale on every snapshot; refs from older
// snapshots never resolve here.
//
// The document is single-threaded: every read or mutation of it goes through
// a method holding mu, so actions, snapshots and tool invocations on the
// same tab execute strictly in order. A caller that stops waiting for an
// action abandons only the wait; the action itself keeps the lock until it
// finishes, and the next call on the tab queues behind it.
type PageContext struct {
	mu      sync.Mutex
	tabID   string
	doc     *dom.Document
	current *snapshot.Result
}

// NewPageContext binds a context to a tab and its parsed document.
func NewPageContext(tabID string, doc *dom.Document) *PageContext {
	return &PageContext{tabID: tabID, doc: doc}
}

// TabID returns the owning tab's identifier.
func (p *PageContext) TabID() string { return p.tabID }

// Snapshot compiles the document into a fresh snapshot, replacing the ref
// table and snapshot identifier.
func (p *PageContext) Snapshot(budget int) (*snapshot.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, errNoDocument
	}
	res := snapshot.Take(p.doc, budget)
	p.current = res
	return res, nil
}

// Current returns the most recent snapshot, or nil if none was taken since
// the last reset.
func (p *PageContext) Current() *snapshot.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// RunAction executes one ref action against the current snapshot's table,
// holding the context lock for the whole run. With no snapshot taken the
// executor sees an empty table, so every ref resolves to "not found" rather
// than panicking.
func (p *PageContext) RunAction(fn func(*action.Executor) action.Result) action.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return fn(action.NewExecutor(snapshot.NewRefTable()))
	}
	return fn(action.NewExecutor(p.current.Refs))
}

// Do runs fn against the document under the context lock, serializing it with
// actions and snapshots on the same tab. Fails when no document is loaded.
func (p *PageContext) Do(fn func(*dom.Document)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return errNoDocument
	}
	fn(p.doc)
	return nil
}

// Reset installs a new document and discards the snapshot. Called on
// navigation: refs never survive a document change.
func (p *PageContext) Reset(doc *dom.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.current = nil
}
