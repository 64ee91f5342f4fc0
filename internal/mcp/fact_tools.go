package mcp

import (
	"context"
	"errors"

	"pagelens-mcp-server/internal/facts"
)

// QueryFactsTool runs a Datalog query against recorded protocol facts, or
// lists the raw facts for one predicate.
type QueryFactsTool struct {
	engine *facts.Engine
}

func (t *QueryFactsTool) Name() string { return "query-facts" }

func (t *QueryFactsTool) Description() string {
	return "Query recorded protocol facts. Provide a Datalog query like snapshot_taken(Tab, Snap, Refs), or a bare predicate name to list its raw facts."
}

func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"query":     stringProp("Datalog query with variables to bind"),
		"predicate": stringProp("Predicate name to list raw timestamped facts for"),
	})
}

func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if t.engine == nil || !t.engine.Enabled() {
		return nil, errors.New("fact engine disabled")
	}

	if query := getStringArg(args, "query"); query != "" {
		results, err := t.engine.Query(query)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": results, "count": len(results)}, nil
	}

	if predicate := getStringArg(args, "predicate"); predicate != "" {
		matched := t.engine.FactsByPredicate(predicate)
		return map[string]interface{}{"facts": matched, "count": len(matched)}, nil
	}

	return nil, errors.New("either query or predicate is required")
}

// SubmitRuleTool loads a Datalog rule for continuous derivation.
type SubmitRuleTool struct {
	engine *facts.Engine
}

func (t *SubmitRuleTool) Name() string { return "submit-rule" }

func (t *SubmitRuleTool) Description() string {
	return "Load a Datalog rule that derives new facts from recorded protocol events, e.g. flaky_tab(T) :- action_failed(T, _, _), action_ok(T, _, _)."
}

func (t *SubmitRuleTool) InputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"rule": stringProp("Datalog rule source"),
	}, "rule")
}

func (t *SubmitRuleTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if t.engine == nil || !t.engine.Enabled() {
		return nil, errors.New("fact engine disabled")
	}
	rule := getStringArg(args, "rule")
	if rule == "" {
		return nil, errors.New("rule is required")
	}
	if err := t.engine.AddRule(rule); err != nil {
		return nil, err
	}
	return map[string]interface{}{"loaded": true}, nil
}
