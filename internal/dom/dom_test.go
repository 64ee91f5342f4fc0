package dom

import (
	"testing"
)

func TestParseAndLookup(t *testing.T) {
	doc := MustParse(`<html><head><title>Orders</title></head><body>
		<div id="main"><button id="go">Go</button></div>
	</body></html>`)

	if got := doc.Title(); got != "Orders" {
		t.Fatalf("Title() = %q, want %q", got, "Orders")
	}
	btn := doc.GetElementByID("go")
	if btn == nil {
		t.Fatal("GetElementByID(go) returned nil")
	}
	if btn.Tag() != "button" {
		t.Fatalf("Tag() = %q, want button", btn.Tag())
	}
	if doc.GetElementByID("missing") != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestWrapperIdentity(t *testing.T) {
	doc := MustParse(`<body><p id="x">hi</p></body>`)
	a := doc.GetElementByID("x")
	b := doc.GetElementByID("x")
	if a != b {
		t.Fatal("same node produced distinct wrappers")
	}
}

func TestTextCollapsesWhitespace(t *testing.T) {
	doc := MustParse("<body><p id=\"x\">  hello\n\t world  </p></body>")
	if got := doc.GetElementByID("x").Text(); got != "hello world" {
		t.Fatalf("Text() = %q, want %q", got, "hello world")
	}
}

func TestOwnTextExcluding(t *testing.T) {
	doc := MustParse(`<body><label id="l">Username <input id="i" value="abc"></label></body>`)
	label := doc.GetElementByID("l")
	input := doc.GetElementByID("i")
	if got := label.OwnTextExcluding(input); got != "Username" {
		t.Fatalf("OwnTextExcluding() = %q, want Username", got)
	}
}

func TestValueOverrideWinsOverAttribute(t *testing.T) {
	doc := MustParse(`<body><input id="i" value="initial"></body>`)
	input := doc.GetElementByID("i")

	if got := input.Value(); got != "initial" {
		t.Fatalf("Value() = %q, want initial", got)
	}
	input.SetValueNative("typed")
	if got := input.Value(); got != "typed" {
		t.Fatalf("Value() after SetValueNative = %q, want typed", got)
	}
	// The attribute is untouched; only the live value changes.
	if got := input.AttrOr("value", ""); got != "initial" {
		t.Fatalf("value attribute = %q, want initial", got)
	}
}

func TestTextareaValue(t *testing.T) {
	doc := MustParse(`<body><textarea id="t">seed text</textarea></body>`)
	ta := doc.GetElementByID("t")
	if got := ta.Value(); got != "seed text" {
		t.Fatalf("Value() = %q, want %q", got, "seed text")
	}
}

func TestSelectValueFollowsSelection(t *testing.T) {
	doc := MustParse(`<body><select id="s">
		<option value="r">Red</option>
		<option value="g" selected>Green</option>
	</select></body>`)
	sel := doc.GetElementByID("s")

	if got := sel.Value(); got != "g" {
		t.Fatalf("Value() = %q, want g", got)
	}

	opts := sel.Options()
	if len(opts) != 2 {
		t.Fatalf("Options() returned %d, want 2", len(opts))
	}
	opts[1].SetSelected(false)
	opts[0].SetSelected(true)
	if got := sel.Value(); got != "r" {
		t.Fatalf("Value() after reselection = %q, want r", got)
	}
}

func TestSingleSelectDefaultsToFirstOption(t *testing.T) {
	doc := MustParse(`<body><select id="s">
		<option value="a">A</option>
		<option value="b">B</option>
	</select></body>`)
	if got := doc.GetElementByID("s").Value(); got != "a" {
		t.Fatalf("Value() = %q, want a", got)
	}
}

func TestOptionsIncludeOptgroups(t *testing.T) {
	doc := MustParse(`<body><select id="s">
		<optgroup label="warm"><option value="red">Red</option></optgroup>
		<optgroup label="cool"><option value="blue">Blue</option></optgroup>
	</select></body>`)
	opts := doc.GetElementByID("s").Options()
	if len(opts) != 2 {
		t.Fatalf("Options() returned %d, want 2", len(opts))
	}
	if opts[0].OptionValue() != "red" || opts[1].OptionValue() != "blue" {
		t.Fatalf("option values = %q, %q", opts[0].OptionValue(), opts[1].OptionValue())
	}
}

func TestDisabledNative(t *testing.T) {
	doc := MustParse(`<body>
		<input id="plain">
		<input id="direct" disabled>
		<fieldset disabled><input id="nested"></fieldset>
		<div disabled><input id="notform"></div>
	</body>`)

	cases := []struct {
		id   string
		want bool
	}{
		{"plain", false},
		{"direct", true},
		{"nested", true},
		{"notform", false},
	}
	for _, tc := range cases {
		if got := doc.GetElementByID(tc.id).DisabledNative(); got != tc.want {
			t.Errorf("DisabledNative(%s) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestDetachedAfterRemove(t *testing.T) {
	doc := MustParse(`<body><div id="d"><span id="s">x</span></div></body>`)
	span := doc.GetElementByID("s")
	if span.Detached() {
		t.Fatal("attached element reported detached")
	}
	doc.GetElementByID("d").Remove()
	if !span.Detached() {
		t.Fatal("removed subtree still reported attached")
	}
}

func TestDispatchBubblesAndJournals(t *testing.T) {
	doc := MustParse(`<body><div id="outer"><button id="btn">Go</button></div></body>`)
	btn := doc.GetElementByID("btn")
	outer := doc.GetElementByID("outer")

	var order []string
	btn.On("click", func(Event) { order = append(order, "btn") })
	outer.On("click", func(Event) { order = append(order, "outer") })

	btn.Dispatch(Event{Type: "click", Bubbles: true})

	if len(order) != 2 || order[0] != "btn" || order[1] != "outer" {
		t.Fatalf("listener order = %v, want [btn outer]", order)
	}
	types := doc.JournalTypes()
	if len(types) != 1 || types[0] != "click" {
		t.Fatalf("JournalTypes() = %v, want [click]", types)
	}
}

func TestNonBubblingEventStaysOnTarget(t *testing.T) {
	doc := MustParse(`<body><div id="outer"><input id="in"></div></body>`)
	var outerSaw int
	doc.GetElementByID("outer").On("focus", func(Event) { outerSaw++ })

	doc.GetElementByID("in").Dispatch(Event{Type: "focus", Bubbles: false})
	if outerSaw != 0 {
		t.Fatalf("non-bubbling event reached ancestor %d times", outerSaw)
	}
}

func TestFocusTracking(t *testing.T) {
	doc := MustParse(`<body><input id="a"><input id="b"></body>`)
	a := doc.GetElementByID("a")
	b := doc.GetElementByID("b")

	a.Focus()
	if !a.Focused() || doc.Focused() != a {
		t.Fatal("focus did not land on a")
	}
	b.Focus()
	if a.Focused() || doc.Focused() != b {
		t.Fatal("focus did not move to b")
	}
}

func TestInlineStyleParsing(t *testing.T) {
	doc := MustParse(`<body><div id="d" style="display: none; opacity: 0.5"></div></body>`)
	d := doc.GetElementByID("d")
	if d.Display() != "none" {
		t.Fatalf("Display() = %q, want none", d.Display())
	}
	if d.Opacity() != "0.5" {
		t.Fatalf("Opacity() = %q, want 0.5", d.Opacity())
	}
	if d.Visibility() != "" {
		t.Fatalf("Visibility() = %q, want empty", d.Visibility())
	}
}
