// Package dialog detects and answers blocking native browser dialogs through
// the debugging protocol. The arbiter never touches the DOM: it coordinates a
// per-tab CDP session, records dialog-opened events, and answers dialogs on
// command, including a blind probe path for dialogs that opened before the
// event channel was listening.
package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State enumerates the arbiter's session lifecycle.
type State int

const (
	// Idle means no debugging session is open; the next call attaches.
	Idle State = iota
	// AttachRequested is the transient state while the session opens.
	AttachRequested
	// Attached means the session is open and dialog events are enabled.
	Attached
	// DialogPending means a dialog-opened event has been recorded and not
	// yet answered.
	DialogPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AttachRequested:
		return "attach-requested"
	case Attached:
		return "attached"
	case DialogPending:
		return "dialog-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PendingDialog records one unanswered dialog. At most one exists per tab.
type PendingDialog struct {
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	DefaultPrompt string    `json:"default_prompt,omitempty"`
	URL           string    `json:"url,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Opened is a dialog-opened event delivered by the session.
type Opened struct {
	Type          string
	Message       string
	DefaultPrompt string
	URL           string
}

// Result is the contract returned to callers. Absent type/message means the
// dialog was answered blindly via the probe path.
type Result struct {
	DialogType    string `json:"dialogType,omitempty"`
	Message       string `json:"message,omitempty"`
	DefaultPrompt string `json:"defaultPrompt,omitempty"`
	Handled       bool   `json:"handled"`
}

// Session is the debugging-protocol channel the arbiter drives. Exactly one
// session can be attached per tab; the host may revoke it at any time.
type Session interface {
	// Attach opens the session and enables dialog events.
	Attach(ctx context.Context) error
	// Events delivers dialog-opened events for the attached session.
	Events() <-chan Opened
	// Detached is closed when the host revokes the session (for example an
	// external inspector took it over).
	Detached() <-chan struct{}
	// Handle answers the currently open dialog. Fails when none is open.
	Handle(ctx context.Context, accept bool, promptText string) error
}

// Clock abstracts time so the event-vs-deadline race is testable.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall-clock used outside tests.
var SystemClock Clock = realClock{}

// Arbiter is the per-tab dialog state machine.
type Arbiter struct {
	mu          sync.Mutex
	session     Session
	clock       Clock
	probeWindow time.Duration
	state       State
	pending     *PendingDialog
}

// NewArbiter builds an arbiter in the Idle state. probeWindow bounds how long
// HandleDialog waits for a dialog event before probing blindly.
func NewArbiter(session Session, clock Clock, probeWindow time.Duration) *Arbiter {
	if clock == nil {
		clock = SystemClock
	}
	if probeWindow <= 0 {
		probeWindow = 500 * time.Millisecond
	}
	return &Arbiter{
		session:     session,
		clock:       clock,
		probeWindow: probeWindow,
		state:       Idle,
	}
}

// State returns the current state after absorbing any buffered session
// events.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drainLocked()
	return a.state
}

// Pending returns a copy of the recorded dialog, if one is pending.
func (a *Arbiter) Pending() *PendingDialog {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drainLocked()
	if a.pending == nil {
		return nil
	}
	cp := *a.pending
	return &cp
}

// Teardown discards all state when the tab is torn down. Nothing is detached:
// there is nothing left to detach from.
func (a *Arbiter) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Idle
	a.pending = nil
}

// HandleDialog answers the pending dialog, or races a short event window
// against the deadline and falls back to a blind probe. A probe that finds no
// dialog reports handled:false without error; "no dialog present" is an
// expected outcome, not a fault.
func (a *Arbiter) HandleDialog(ctx context.Context, accept bool, promptText string) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureAttachedLocked(ctx); err != nil {
		return Result{}, err
	}
	a.drainLocked()

	if a.state == Idle {
		// Host revoked the session between calls; start over once.
		if err := a.ensureAttachedLocked(ctx); err != nil {
			return Result{}, err
		}
	}

	if a.pending != nil {
		return a.answerLocked(ctx, accept, promptText)
	}

	// Two-future race: dialog event arrival vs the probe deadline.
	select {
	case ev := <-a.session.Events():
		a.recordLocked(ev)
		return a.answerLocked(ctx, accept, promptText)
	case <-a.session.Detached():
		a.state = Idle
		a.pending = nil
		return Result{Handled: false}, nil
	case <-a.clock.After(a.probeWindow):
		// No event observed. Probe: if a dialog was already open before the
		// event channel existed, this answers it with unknown contents.
		if err := a.session.Handle(ctx, accept, promptText); err != nil {
			return Result{Handled: false}, nil
		}
		return Result{Handled: true}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (a *Arbiter) ensureAttachedLocked(ctx context.Context) error {
	if a.state != Idle {
		return nil
	}
	a.state = AttachRequested
	if err := a.session.Attach(ctx); err != nil {
		a.state = Idle
		return fmt.Errorf("attach debugger session: %w", err)
	}
	a.state = Attached
	return nil
}

// drainLocked absorbs buffered events and detach notifications without
// blocking.
func (a *Arbiter) drainLocked() {
	for {
		select {
		case ev := <-a.session.Events():
			a.recordLocked(ev)
		case <-a.session.Detached():
			a.state = Idle
			a.pending = nil
			return
		default:
			return
		}
	}
}

func (a *Arbiter) recordLocked(ev Opened) {
	a.pending = &PendingDialog{
		Type:          ev.Type,
		Message:       ev.Message,
		DefaultPrompt: ev.DefaultPrompt,
		URL:           ev.URL,
		Timestamp:     a.clock.Now(),
	}
	a.state = DialogPending
}

// answerLocked resolves the recorded dialog. The session stays attached
// afterwards to catch subsequent dialogs on the same page cheaply.
func (a *Arbiter) answerLocked(ctx context.Context, accept bool, promptText string) (Result, error) {
	pending := a.pending
	if err := a.session.Handle(ctx, accept, promptText); err != nil {
		return Result{Handled: false}, fmt.Errorf("handle dialog: %w", err)
	}
	a.pending = nil
	a.state = Attached
	return Result{
		DialogType:    pending.Type,
		Message:       pending.Message,
		DefaultPrompt: pending.DefaultPrompt,
		Handled:       true,
	}, nil
}
