// Package facts records protocol events (snapshots taken, actions performed,
// staleness rejections, dialog resolutions, tool synthesis) as Datalog facts
// in an embedded Mangle store. It is observability infrastructure: nothing in
// the action path depends on it, and recording failures are logged and
// swallowed.
package facts

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact is one normalized protocol event.
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`
	Timestamp time.Time     `json:"timestamp"`
}

// QueryResult binds query variables to values.
type QueryResult map[string]interface{}

// Engine wraps a Mangle fact store plus a time-ordered buffer with a
// per-predicate index for temporal queries.
type Engine struct {
	enabled bool
	limit   int

	mu      sync.RWMutex
	program *analysis.ProgramInfo
	store   factstore.FactStore
	buffer  []Fact
	index   map[string][]int
}

// builtinDecls declares the protocol event predicates so rules can reference
// them before any matching facts arrive.
const builtinDecls = `
Decl snapshot_taken(TabId, SnapshotId, RefCount).
Decl action_ok(TabId, Op, Ref).
Decl action_failed(TabId, Op, Reason).
Decl stale_rejected(TabId, Op, SnapshotId).
Decl dialog_answered(TabId, DialogType, Accepted).
Decl tool_synthesized(TabId, ToolName, Source).
Decl navigated(TabId, Url).
Decl tab_opened(TabId, Url).
Decl tab_closed(TabId).
`

// NewEngine builds an engine. bufferLimit <= 0 means unbounded.
func NewEngine(enabled bool, bufferLimit int) *Engine {
	e := &Engine{
		enabled: enabled,
		limit:   bufferLimit,
		store:   factstore.NewSimpleInMemoryStore(),
		index:   make(map[string][]int),
	}
	if enabled {
		if err := e.AddRule(builtinDecls); err != nil {
			log.Printf("facts: builtin declarations: %v", err)
		}
	}
	return e
}

// Record appends one fact, timestamped now. Errors are logged, not returned:
// fact recording must never fail an action.
func (e *Engine) Record(predicate string, args ...interface{}) {
	if err := e.AddFacts([]Fact{{Predicate: predicate, Args: args, Timestamp: time.Now()}}); err != nil {
		log.Printf("facts: record %s: %v", predicate, err)
	}
}

// AddFacts appends facts to the buffer and the Mangle store, then re-derives
// any loaded rules.
func (e *Engine) AddFacts(facts []Fact) error {
	if !e.enabled || len(facts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	base := len(e.buffer)
	e.buffer = append(e.buffer, facts...)
	if e.limit > 0 && len(e.buffer) > e.limit {
		e.buffer = e.buffer[len(e.buffer)-e.limit:]
		e.rebuildIndex()
	} else {
		for i, f := range facts {
			e.index[f.Predicate] = append(e.index[f.Predicate], base+i)
		}
	}

	for _, f := range facts {
		e.store.Add(factToAtom(f))
	}

	if e.program != nil {
		if err := engine.EvalProgram(e.program, e.store); err != nil {
			return fmt.Errorf("eval rules after fact insertion: %w", err)
		}
	}
	return nil
}

// AddRule loads a Mangle rule for continuous derivation over recorded facts.
func (e *Engine) AddRule(src string) error {
	if !e.enabled {
		return nil
	}

	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return fmt.Errorf("parse rule: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	decls := make(map[ast.PredicateSym]ast.Decl)
	if e.program != nil {
		for sym, decl := range e.program.Decls {
			if decl != nil {
				decls[sym] = *decl
			}
		}
	}

	info, err := analysis.AnalyzeOneUnit(unit, decls)
	if err != nil {
		return fmt.Errorf("analyze rule: %w", err)
	}

	if e.program == nil {
		e.program = info
	} else {
		for sym, decl := range info.Decls {
			e.program.Decls[sym] = decl
		}
	}
	return nil
}

// Query runs a single-atom Mangle query, binding variables against stored and
// derived facts.
func (e *Engine) Query(queryStr string) ([]QueryResult, error) {
	if !e.enabled {
		return nil, fmt.Errorf("fact engine disabled")
	}

	unit, err := parse.Unit(bytes.NewReader([]byte(queryStr)))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	if len(unit.Clauses) == 0 {
		return nil, fmt.Errorf("no query found")
	}
	queryAtom := unit.Clauses[0].Head

	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]QueryResult, 0)
	err = e.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		binding := make(QueryResult)
		for i, arg := range queryAtom.Args {
			if i >= len(atom.Args) {
				break
			}
			if v, isVar := arg.(ast.Variable); isVar {
				binding[v.Symbol] = convertConstant(atom.Args[i])
			}
		}
		results = append(results, binding)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query execution: %w", err)
	}
	return results, nil
}

// FactsByPredicate returns buffered facts for one predicate via the index.
func (e *Engine) FactsByPredicate(predicate string) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indices := e.index[predicate]
	out := make([]Fact, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(e.buffer) {
			out = append(out, e.buffer[i])
		}
	}
	return out
}

// QueryTemporal returns buffered facts for a predicate within a time window.
// Zero bounds are open.
func (e *Engine) QueryTemporal(predicate string, after, before time.Time) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Fact, 0)
	for _, i := range e.index[predicate] {
		if i < 0 || i >= len(e.buffer) {
			continue
		}
		f := e.buffer[i]
		if (after.IsZero() || f.Timestamp.After(after)) &&
			(before.IsZero() || f.Timestamp.Before(before)) {
			out = append(out, f)
		}
	}
	return out
}

// Facts returns a copy of the whole buffer, oldest first.
func (e *Engine) Facts() []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Fact, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// Enabled reports whether the engine records anything.
func (e *Engine) Enabled() bool { return e.enabled }

func (e *Engine) rebuildIndex() {
	e.index = make(map[string][]int)
	for i, f := range e.buffer {
		e.index[f.Predicate] = append(e.index[f.Predicate], i)
	}
}

func factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{
		Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)},
		Args:      args,
	}
}

func toConstant(v interface{}) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func convertConstant(c ast.BaseTerm) interface{} {
	term, isConst := c.(ast.Constant)
	if !isConst {
		return fmt.Sprintf("%v", c)
	}
	switch term.Type {
	case ast.StringType:
		val, _ := term.StringValue()
		return val
	case ast.NumberType:
		return term.NumberValue
	case ast.Float64Type:
		if val, err := term.Float64Value(); err == nil {
			return val
		}
	}
	return term.String()
}
