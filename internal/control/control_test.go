package control

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pagelens-mcp-server/internal/action"
	"pagelens-mcp-server/internal/dialog"
	"pagelens-mcp-server/internal/dom"
	"pagelens-mcp-server/internal/toolsynth"
)

func TestStalenessGuardFirstActionPasses(t *testing.T) {
	guard := NewStalenessGuard()
	if err := guard.Check("tab-1", "whatever"); err != nil {
		t.Fatalf("first action rejected: %v", err)
	}
}

func TestStalenessGuardRejectsMismatchNamingBothIDs(t *testing.T) {
	guard := NewStalenessGuard()
	guard.Issued("tab-1", "snap-new")

	err := guard.Check("tab-1", "snap-old")
	if err == nil {
		t.Fatal("stale snapshot accepted")
	}
	if !strings.Contains(err.Error(), "snap-old") || !strings.Contains(err.Error(), "snap-new") {
		t.Fatalf("rejection %q does not name both identifiers", err)
	}

	if err := guard.Check("tab-1", "snap-new"); err != nil {
		t.Fatalf("matching snapshot rejected: %v", err)
	}
}

func TestStalenessGuardPerTab(t *testing.T) {
	guard := NewStalenessGuard()
	guard.Issued("tab-1", "a")
	if err := guard.Check("tab-2", "anything"); err != nil {
		t.Fatalf("other tab affected: %v", err)
	}
	guard.Forget("tab-1")
	if err := guard.Check("tab-1", "anything"); err != nil {
		t.Fatalf("forgotten tab still guarded: %v", err)
	}
}

func TestPageContextSnapshotReplacesRefs(t *testing.T) {
	doc := dom.MustParse(`<body><button>Go</button></body>`)
	pc := NewPageContext("tab-1", doc)

	first, err := pc.Snapshot(0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	second, err := pc.Snapshot(0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("snapshot identifiers repeated")
	}
	if pc.Current() != second {
		t.Fatal("Current() is not the latest snapshot")
	}
}

func TestPageContextResetDiscardsSnapshot(t *testing.T) {
	doc := dom.MustParse(`<body><button>Go</button></body>`)
	pc := NewPageContext("tab-1", doc)
	if _, err := pc.Snapshot(0); err != nil {
		t.Fatal(err)
	}

	pc.Reset(nil)
	if pc.Current() != nil {
		t.Fatal("reset kept the old snapshot")
	}
	if _, err := pc.Snapshot(0); err == nil {
		t.Fatal("snapshot of a nil document should fail")
	}

	// An action after reset resolves nothing instead of panicking.
	res := pc.RunAction(func(exec *action.Executor) action.Result { return exec.Click("@e1") })
	if res.Success || !strings.Contains(res.Error, "not found") {
		t.Fatalf("result = %+v, want not-found", res)
	}
}

func TestRunActionSerializesDocumentAccess(t *testing.T) {
	doc := dom.MustParse(`<body><input id="n" aria-label="Name"></body>`)
	pc := NewPageContext("tab-1", doc)
	if _, err := pc.Snapshot(0); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	doc.GetElementByID("n").On("input", func(dom.Event) {
		close(started)
		<-release
	})

	actionDone := make(chan action.Result, 1)
	go func() {
		actionDone <- pc.RunAction(func(exec *action.Executor) action.Result {
			return exec.TypeText("@e1", "ada", true)
		})
	}()
	<-started

	// A caller that stops waiting abandons only the wait; the snapshot it
	// takes next must queue behind the still-running action.
	snapped := make(chan string, 1)
	go func() {
		res, err := pc.Snapshot(0)
		if err != nil {
			snapped <- "snapshot error: " + err.Error()
			return
		}
		snapped <- res.Text
	}()

	select {
	case text := <-snapped:
		t.Fatalf("snapshot ran while an action held the document:\n%s", text)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if text := <-snapped; !strings.Contains(text, "ada") {
		t.Fatalf("snapshot missing the typed value:\n%s", text)
	}
	if res := <-actionDone; !res.Success {
		t.Fatalf("action failed: %s", res.Error)
	}
}

func TestInvokeFormTool(t *testing.T) {
	doc := dom.MustParse(`<body><form aria-label="signup">
		<input name="user" type="text">
		<input name="news" type="checkbox">
		<select name="plan">
			<option value="free">Free</option>
			<option value="pro">Pro</option>
		</select>
		<button type="submit">Join</button>
	</form></body>`)

	tools := toolsynth.Synthesize(doc, "tab-1")
	if len(tools) != 1 {
		t.Fatalf("tool count = %d", len(tools))
	}

	res := InvokeTool(tools[0], map[string]interface{}{
		"user": "ada",
		"news": true,
		"plan": "pro",
	})
	if !res.Success {
		t.Fatalf("invoke failed: %s", res.Error)
	}

	if got := tools[0].Fields["user"].Value(); got != "ada" {
		t.Fatalf("user = %q, want ada", got)
	}
	if !tools[0].Fields["news"].Checked() {
		t.Fatal("checkbox not checked")
	}
	if got := tools[0].Fields["plan"].Value(); got != "pro" {
		t.Fatalf("plan = %q, want pro", got)
	}

	// The submit control was clicked last.
	types := doc.JournalTypes()
	if len(types) == 0 || types[len(types)-1] != "click" {
		t.Fatalf("event types = %v, want trailing click", types)
	}
}

func TestInvokeFormToolUnknownArgument(t *testing.T) {
	doc := dom.MustParse(`<body><form aria-label="f"><input name="a"></form></body>`)
	tools := toolsynth.Synthesize(doc, "t")

	res := InvokeTool(tools[0], map[string]interface{}{"nope": "x"})
	if res.Success || !strings.Contains(res.Error, "unknown argument") {
		t.Fatalf("result = %+v", res)
	}
}

func TestInvokeButtonTool(t *testing.T) {
	doc := dom.MustParse(`<body><button id="b">Export</button></body>`)
	tools := toolsynth.Synthesize(doc, "t")
	if len(tools) != 1 {
		t.Fatalf("tool count = %d", len(tools))
	}

	res := InvokeTool(tools[0], nil)
	if !res.Success {
		t.Fatalf("invoke failed: %s", res.Error)
	}
	found := false
	for _, typ := range doc.JournalTypes() {
		if typ == "click" {
			found = true
		}
	}
	if !found {
		t.Fatal("button tool did not click")
	}
}

func TestInvokeButtonToolDetachedTarget(t *testing.T) {
	doc := dom.MustParse(`<body><button id="b">Export</button></body>`)
	tools := toolsynth.Synthesize(doc, "t")
	doc.GetElementByID("b").Remove()

	res := InvokeTool(tools[0], nil)
	if res.Success || !strings.Contains(res.Error, "not found") {
		t.Fatalf("result = %+v", res)
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"plain", "plain"},
		{float64(42), "42"},
		{float64(2.5), "2.5"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := stringify(tc.in); got != tc.want {
			t.Errorf("stringify(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyActionError(t *testing.T) {
	plain := errors.New("boom")
	if got := ClassifyActionError(plain, nil); got != plain {
		t.Fatalf("non-timeout error rewritten: %v", got)
	}
	if ClassifyActionError(nil, nil) != nil {
		t.Fatal("nil error produced a value")
	}

	timeout := context.DeadlineExceeded
	got := ClassifyActionError(timeout, nil)
	if got == nil || !strings.Contains(got.Error(), "timed out") {
		t.Fatalf("timeout classification = %v", got)
	}

	pending := &dialog.PendingDialog{Type: "confirm", Message: "Leave?", Timestamp: time.Now()}
	got = ClassifyActionError(timeout, pending)
	if !strings.Contains(got.Error(), "confirm") || !strings.Contains(got.Error(), "handle-dialog") {
		t.Fatalf("dialog-blocked classification = %v", got)
	}
}
