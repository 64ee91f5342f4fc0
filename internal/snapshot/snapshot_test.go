package snapshot

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"pagelens-mcp-server/internal/dom"
)

const loginPage = `<html><head><title>Login</title></head><body>
	<h1>Sign in</h1>
	<form>
		<label for="user">Username</label>
		<input id="user" type="text">
		<label for="pass">Password</label>
		<input id="pass" type="password">
		<button type="submit">Log in</button>
	</form>
</body></html>`

func TestRefsArePreorderSequential(t *testing.T) {
	doc := dom.MustParse(loginPage)
	_, refs := Build(doc)

	got := refs.Refs()
	want := []string{"@e1", "@e2", "@e3"}
	if len(got) != len(want) {
		t.Fatalf("refs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("refs = %v, want %v", got, want)
		}
	}

	user, _ := refs.Resolve("@e1")
	if user == nil || user.AttrOr("id", "") != "user" {
		t.Fatal("@e1 did not resolve to the username input")
	}
	btn, _ := refs.Resolve("@e3")
	if btn == nil || btn.Tag() != "button" {
		t.Fatal("@e3 did not resolve to the submit button")
	}
}

func TestOnlyInteractiveNodesGetRefs(t *testing.T) {
	doc := dom.MustParse(`<body>
		<h2>Heading</h2>
		<p>Prose</p>
		<a href="/next">Next</a>
		<a>No href</a>
		<div role="button" aria-label="Fake">x</div>
	</body>`)
	root, refs := Build(doc)

	if refs.Len() != 2 {
		t.Fatalf("ref count = %d, want 2 (link + role=button)", refs.Len())
	}

	var walk func(*Node)
	var withRef, withoutRef int
	walk = func(n *Node) {
		if n.Ref != "" {
			withRef++
		} else {
			withoutRef++
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	if withRef != 2 {
		t.Fatalf("tree carries %d refs, want 2", withRef)
	}
	if withoutRef == 0 {
		t.Fatal("expected non-interactive nodes without refs")
	}
}

func TestSnapshotIdempotentExceptID(t *testing.T) {
	doc := dom.MustParse(loginPage)

	a := Take(doc, 0)
	b := Take(doc, 0)

	if a.Text != b.Text {
		t.Fatalf("unchanged document produced different trees:\n%s\n---\n%s", a.Text, b.Text)
	}
	if a.ID == b.ID {
		t.Fatal("two snapshots shared an identifier")
	}

	elA, _ := a.Refs.Resolve("@e1")
	elB, _ := b.Refs.Resolve("@e1")
	if elA != elB {
		t.Fatal("same document position resolved to different elements")
	}
}

func TestInsertionShiftsLaterRefs(t *testing.T) {
	doc := dom.MustParse(`<body>
		<div id="slot"></div>
		<button id="late">Late</button>
	</body>`)

	_, before := Build(doc)
	el, _ := before.Resolve("@e1")
	if el.AttrOr("id", "") != "late" {
		t.Fatalf("@e1 = %s, want late", el.AttrOr("id", ""))
	}

	early := doc.CreateElement("button", nil)
	early.AppendText("Early")
	doc.GetElementByID("slot").AppendChild(early)

	_, after := Build(doc)
	first, _ := after.Resolve("@e1")
	second, _ := after.Resolve("@e2")
	if first != early {
		t.Fatal("@e1 should now be the inserted button")
	}
	if second.AttrOr("id", "") != "late" {
		t.Fatalf("@e2 = %s, want late", second.AttrOr("id", ""))
	}
}

func TestHiddenSubtreesArePruned(t *testing.T) {
	doc := dom.MustParse(`<body>
		<div aria-hidden="true"><button>Ghost</button></div>
		<div style="display: none"><button>Gone</button></div>
		<input type="hidden" name="csrf">
		<button>Real</button>
	</body>`)
	_, refs := Build(doc)
	if refs.Len() != 1 {
		t.Fatalf("ref count = %d, want 1", refs.Len())
	}
	el, _ := refs.Resolve("@e1")
	if el.Text() != "Real" {
		t.Fatalf("@e1 = %q, want Real", el.Text())
	}
}

func TestVisibilityHiddenOverridableByDescendant(t *testing.T) {
	doc := dom.MustParse(`<body>
		<div style="visibility: hidden">
			<button>Invisible</button>
			<button style="visibility: visible">Restored</button>
		</div>
	</body>`)
	_, refs := Build(doc)
	if refs.Len() != 1 {
		t.Fatalf("ref count = %d, want 1", refs.Len())
	}
	el, _ := refs.Resolve("@e1")
	if el.Text() != "Restored" {
		t.Fatalf("@e1 = %q, want Restored", el.Text())
	}
}

func TestRoleResolution(t *testing.T) {
	cases := []struct {
		html string
		id   string
		want string
	}{
		{`<a id="x" href="/">go</a>`, "x", "link"},
		{`<input id="x" type="checkbox">`, "x", "checkbox"},
		{`<input id="x" type="range">`, "x", "slider"},
		{`<input id="x">`, "x", "textbox"},
		{`<select id="x"></select>`, "x", "combobox"},
		{`<h3 id="x">t</h3>`, "x", "heading[3]"},
		{`<div id="x" role="switch">t</div>`, "x", "switch"},
		{`<ul id="x"><li>a</li></ul>`, "x", "list"},
		{`<nav id="x">n</nav>`, "x", "nav"},
		{`<table id="x" role="presentation"></table>`, "x", ""},
	}
	for _, tc := range cases {
		doc := dom.MustParse("<body>" + tc.html + "</body>")
		el := doc.GetElementByID(tc.id)
		if got := ResolveRole(el); got != tc.want {
			t.Errorf("ResolveRole(%s) = %q, want %q", tc.html, got, tc.want)
		}
	}
}

func TestNameResolutionChain(t *testing.T) {
	cases := []struct {
		name string
		html string
		id   string
		want string
	}{
		{"aria-label wins", `<button id="x" aria-label="Close" title="t">text</button>`, "x", "Close"},
		{"labelledby joins", `<span id="a">First</span><span id="b">Last</span><input id="x" aria-labelledby="a b">`, "x", "First Last"},
		{"label for", `<label for="x">Email</label><input id="x">`, "x", "Email"},
		{"wrapping label excludes control", `<label id="l">Phone <input id="x"></label>`, "x", "Phone"},
		{"placeholder", `<input id="x" placeholder="Search here">`, "x", "Search here"},
		{"title fallback", `<input id="x" title="Tooltip">`, "x", "Tooltip"},
		{"img alt", `<img id="x" alt="Logo">`, "x", "Logo"},
		{"button own text", `<button id="x">  Save  changes </button>`, "x", "Save changes"},
	}
	for _, tc := range cases {
		doc := dom.MustParse("<body>" + tc.html + "</body>")
		el := doc.GetElementByID(tc.id)
		if got := ResolveName(el); got != tc.want {
			t.Errorf("%s: ResolveName = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNameTruncatedAt80(t *testing.T) {
	long := strings.Repeat("a", 100)
	doc := dom.MustParse(`<body><button id="x" aria-label="` + long + `">t</button></body>`)
	got := ResolveName(doc.GetElementByID("x"))
	if len([]rune(got)) != 80 {
		t.Fatalf("name length = %d, want 80", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated name %q does not end with ellipsis", got)
	}
}

func TestSerializationGrammar(t *testing.T) {
	doc := dom.MustParse(`<html><head><title>Demo</title></head><body>
		<input id="q" type="text" aria-label="Query" value="cats">
		<input type="checkbox" aria-label="Agree" checked>
		<button disabled>Go</button>
	</body></html>`)
	res := Take(doc, 0)

	lines := strings.Split(res.Text, "\n")
	if lines[0] != `[page "Demo"]` {
		t.Fatalf("root line = %q", lines[0])
	}

	trimmed := make(map[string]bool)
	for _, line := range lines {
		trimmed[strings.TrimLeft(line, " ")] = true
	}
	wantLines := []string{
		`[@e1 textbox "Query"] cats`,
		`[@e2 checkbox "Agree"] (checked)`,
		`[@e3 button "Go"] (disabled)`,
	}
	for _, want := range wantLines {
		if !trimmed[want] {
			t.Errorf("serialized text missing line %q in:\n%s", want, res.Text)
		}
	}

	// Indentation is two spaces per depth.
	for _, line := range lines[1:] {
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if indent%2 != 0 || indent == 0 {
			t.Errorf("line %q has odd indentation %d", line, indent)
		}
	}
}

func TestSelectShowsSelectedOptionText(t *testing.T) {
	doc := dom.MustParse(`<body><select aria-label="Color">
		<option value="r">Red</option>
		<option value="g" selected>Green</option>
	</select></body>`)
	res := Take(doc, 0)
	if !strings.Contains(res.Text, `[@e1 combobox "Color"] Green`) {
		t.Fatalf("select line wrong:\n%s", res.Text)
	}
}

func TestGroupPromotionRules(t *testing.T) {
	// A wrapper with one perceivable child is elided; with several it becomes
	// an anonymous group.
	doc := dom.MustParse(`<body>
		<div><div><button>Only</button></div></div>
	</body>`)
	root, _ := Build(doc)
	if len(root.Children) != 1 || root.Children[0].Role != "button" {
		t.Fatalf("single child was not promoted: %+v", root.Children)
	}

	doc = dom.MustParse(`<body>
		<div><button>A</button><button>B</button></div>
	</body>`)
	root, _ = Build(doc)
	if len(root.Children) != 1 || root.Children[0].Role != "group" {
		t.Fatalf("multi-child wrapper did not become a group: %+v", root.Children)
	}
	if len(root.Children[0].Children) != 2 {
		t.Fatalf("group lost children: %+v", root.Children[0])
	}
}

func TestTokenBudgetTruncation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<body>")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, `<button>Button number %d with padding text</button>`, i)
	}
	sb.WriteString("</body>")

	doc := dom.MustParse(sb.String())
	res := Take(doc, 100)

	if !res.Truncated {
		t.Fatal("oversized snapshot not marked truncated")
	}
	if !strings.HasSuffix(res.Text, TruncationMarker) {
		t.Fatalf("truncated text does not end with marker: %q", res.Text[len(res.Text)-40:])
	}
	if res.Tokens > 100+len(TruncationMarker)/4+1 {
		t.Fatalf("tokens = %d, exceeds budget by more than the marker", res.Tokens)
	}
	// The ref table still covers the full page; truncation is a rendering
	// concern only.
	if res.Refs.Len() != 200 {
		t.Fatalf("ref count = %d, want 200", res.Refs.Len())
	}
}

func TestRolelessInteractiveSerializesGeneric(t *testing.T) {
	doc := dom.MustParse(`<body><div contenteditable="true" aria-label="Notes"></div></body>`)
	res := Take(doc, 0)
	if !strings.Contains(res.Text, `[@e1 generic "Notes"]`) {
		t.Fatalf("snapshot:\n%s", res.Text)
	}
}

func TestBudgetCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("héllø wörld ", 100)
	out, truncated := ApplyBudget(text, 10)
	if !truncated {
		t.Fatal("oversized text not truncated")
	}
	body := strings.TrimSuffix(out, "\n"+TruncationMarker)
	if body == out {
		t.Fatalf("marker missing: %q", out)
	}
	if !utf8.ValidString(body) {
		t.Fatalf("invalid UTF-8 ahead of the marker: %q", body)
	}
	if got := utf8.RuneCountInString(body); got != 40 {
		t.Fatalf("kept %d runes, want 40", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
