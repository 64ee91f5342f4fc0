package facts

import (
	"testing"
	"time"
)

func TestRecordAndQuery(t *testing.T) {
	e := NewEngine(true, 0)
	e.Record("snapshot_taken", "tab-1", "snap-a", 3)
	e.Record("snapshot_taken", "tab-2", "snap-b", 5)

	results, err := e.Query("snapshot_taken(Tab, Snap, Refs)")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 bindings", results)
	}

	seen := make(map[string]bool)
	for _, r := range results {
		tab, _ := r["Tab"].(string)
		seen[tab] = true
	}
	if !seen["tab-1"] || !seen["tab-2"] {
		t.Fatalf("bindings missing tabs: %v", results)
	}
}

func TestFactsByPredicate(t *testing.T) {
	e := NewEngine(true, 0)
	e.Record("action_ok", "tab-1", "click", "@e1")
	e.Record("action_failed", "tab-1", "click", "element @e2 not found")
	e.Record("action_ok", "tab-1", "type-text", "@e3")

	okFacts := e.FactsByPredicate("action_ok")
	if len(okFacts) != 2 {
		t.Fatalf("action_ok facts = %d, want 2", len(okFacts))
	}
	if len(e.FactsByPredicate("action_failed")) != 1 {
		t.Fatal("action_failed index wrong")
	}
	if len(e.FactsByPredicate("never_recorded")) != 0 {
		t.Fatal("unknown predicate returned facts")
	}
}

func TestQueryTemporalWindow(t *testing.T) {
	e := NewEngine(true, 0)
	base := time.Unix(1000, 0)
	err := e.AddFacts([]Fact{
		{Predicate: "navigated", Args: []interface{}{"t", "a"}, Timestamp: base},
		{Predicate: "navigated", Args: []interface{}{"t", "b"}, Timestamp: base.Add(time.Minute)},
		{Predicate: "navigated", Args: []interface{}{"t", "c"}, Timestamp: base.Add(2 * time.Minute)},
	})
	if err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	got := e.QueryTemporal("navigated", base.Add(30*time.Second), base.Add(90*time.Second))
	if len(got) != 1 || got[0].Args[1] != "b" {
		t.Fatalf("window facts = %v, want just b", got)
	}

	all := e.QueryTemporal("navigated", time.Time{}, time.Time{})
	if len(all) != 3 {
		t.Fatalf("open window facts = %d, want 3", len(all))
	}
}

func TestBufferLimitTrimsOldest(t *testing.T) {
	e := NewEngine(true, 2)
	e.Record("stale_rejected", "t", "click", "one")
	e.Record("stale_rejected", "t", "click", "two")
	e.Record("stale_rejected", "t", "click", "three")

	buffered := e.Facts()
	if len(buffered) != 2 {
		t.Fatalf("buffer length = %d, want 2", len(buffered))
	}
	if buffered[0].Args[2] != "two" || buffered[1].Args[2] != "three" {
		t.Fatalf("buffer kept wrong facts: %v", buffered)
	}
	// Index must survive the trim.
	if len(e.FactsByPredicate("stale_rejected")) != 2 {
		t.Fatal("index out of sync after trim")
	}
}

func TestRuleDerivation(t *testing.T) {
	e := NewEngine(true, 0)
	if err := e.AddRule("troubled_tab(T) :- action_failed(T, Op, Reason)."); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	e.Record("action_failed", "tab-9", "click", "disabled")

	results, err := e.Query("troubled_tab(T)")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0]["T"] != "tab-9" {
		t.Fatalf("derived facts = %v", results)
	}
}

func TestDisabledEngineIsInert(t *testing.T) {
	e := NewEngine(false, 0)
	e.Record("snapshot_taken", "t", "s", 1)

	if len(e.Facts()) != 0 {
		t.Fatal("disabled engine buffered a fact")
	}
	if _, err := e.Query("snapshot_taken(T, S, N)"); err == nil {
		t.Fatal("disabled engine accepted a query")
	}
	if e.Enabled() {
		t.Fatal("Enabled() = true")
	}
}

func TestQueryParseError(t *testing.T) {
	e := NewEngine(true, 0)
	if _, err := e.Query("((("); err == nil {
		t.Fatal("malformed query accepted")
	}
}
