package dialog

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodSession implements Session over a Rod page's CDP connection. CDP's
// Page.javascriptDialogOpening event carries exactly the fields PendingDialog
// needs; Page.handleJavaScriptDialog answers alerts, confirms, prompts and
// beforeunload dialogs alike.
type RodSession struct {
	page *rod.Page

	mu       sync.Mutex
	attached bool
	events   chan Opened
	detached chan struct{}
	stop     context.CancelFunc
}

// NewRodSession wraps a Rod page. Attach is deferred until the arbiter asks.
func NewRodSession(page *rod.Page) *RodSession {
	return &RodSession{
		page:     page,
		events:   make(chan Opened, 4),
		detached: make(chan struct{}),
	}
}

// Attach enables the Page domain and starts pumping dialog events. Calling it
// on an already-attached session is a no-op so the arbiter can re-enter after
// a revocation race.
func (s *RodSession) Attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return nil
	}

	page := s.page.Context(ctx)
	if err := (proto.PageEnable{}).Call(page); err != nil {
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	wait := s.page.Context(pumpCtx).EachEvent(
		func(ev *proto.PageJavascriptDialogOpening) {
			opened := Opened{
				Type:          string(ev.Type),
				Message:       ev.Message,
				DefaultPrompt: ev.DefaultPrompt,
				URL:           ev.URL,
			}
			select {
			case s.events <- opened:
			default:
				// Keep only the newest event when the buffer is full; at
				// most one dialog can actually be open.
				select {
				case <-s.events:
				default:
				}
				s.events <- opened
			}
		},
		func(ev *proto.InspectorDetached) {
			s.revoke()
		},
	)
	go wait()

	s.attached = true
	return nil
}

func (s *RodSession) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return
	}
	s.attached = false
	if s.stop != nil {
		s.stop()
	}
	close(s.detached)
	// Fresh channel for the next attach cycle.
	s.detached = make(chan struct{})
}

// Events delivers dialog-opened events.
func (s *RodSession) Events() <-chan Opened { return s.events }

// Detached is closed when the host revokes the debugger session.
func (s *RodSession) Detached() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// Handle answers the currently open dialog via the debugging protocol.
func (s *RodSession) Handle(ctx context.Context, accept bool, promptText string) error {
	return proto.PageHandleJavaScriptDialog{
		Accept:     accept,
		PromptText: promptText,
	}.Call(s.page.Context(ctx))
}
