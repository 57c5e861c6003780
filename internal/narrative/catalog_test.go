package narrative

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/payload"
)

func contains(steps []string, fragment string) bool {
	for _, s := range steps {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func TestCatalog_DatabaseSequence(t *testing.T) {
	cat := NewCatalog()
	ctx := NewContext("capi_datab", agents.ActionDatabaseQuery, map[string]any{
		"rowcount":    float64(5),
		"export_file": "/tmp/out.json",
	}, nil)

	steps := cat.Steps(ctx)
	want := []string{
		"Designing custom SQL script",
		"Executing transactional query against the core banking database",
		"Retrieved 5 results",
		"Exporting results to out.json",
	}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("unexpected steps:\n got %q\nwant %q", steps, want)
	}
}

func TestCatalog_ContextsRankedByScore(t *testing.T) {
	cat := NewCatalog()
	ctx := NewContext("capi_datab", agents.ActionDatabaseQuery, map[string]any{
		"operation": map[string]any{
			"type": "select",
			"sql":  "SELECT SUM(amount) FROM movimientos WHERE fecha BETWEEN :a AND :b",
		},
	}, nil)

	steps := cat.Steps(ctx)
	if steps[1] != "Executing transactional query against movimientos" {
		t.Errorf("expected table parsed from SQL, got %q", steps[1])
	}
	// explicit_operation (90) before generated_sql (80) before aggregation (40+).
	idxOp := indexOf(steps, "Validating select operation parameters")
	idxSQL := indexOf(steps, "Optimizing query plan for movimientos")
	idxAgg := indexOf(steps, "Aggregating totals for the requested metrics")
	idxDate := indexOf(steps, "Applying the requested date range")
	if idxOp < 0 || idxSQL < 0 || idxAgg < 0 || idxDate < 0 {
		t.Fatalf("missing context steps: %q", steps)
	}
	if !(idxOp < idxSQL && idxSQL < idxAgg && idxAgg < idxDate) {
		t.Errorf("contexts out of score order: %q", steps)
	}
	if len(steps) > MaxSteps {
		t.Errorf("expected at most %d steps, got %d", MaxSteps, len(steps))
	}
}

func indexOf(items []string, s string) int {
	for i, it := range items {
		if it == s {
			return i
		}
	}
	return -1
}

func TestCatalog_EmptyResult(t *testing.T) {
	cat := NewCatalog()
	ctx := NewContext("capi_datab", agents.ActionDatabaseQuery, map[string]any{"rows": []any{}}, nil)
	steps := cat.Steps(ctx)
	if !contains(steps, "Retrieved 0 results") {
		t.Errorf("expected zero-row step, got %q", steps)
	}
	if !contains(steps, "No records matched") {
		t.Errorf("expected empty result context, got %q", steps)
	}
}

func TestCatalog_AnomalyAlerts(t *testing.T) {
	cat := NewCatalog()
	ctx := NewContext("capi_anomaly", agents.ActionAnomalyDetection, map[string]any{
		"alerts":          []any{map[string]any{"message": "Transacción sospechosa"}, "limit breach"},
		"recommendations": []any{"Block card"},
	}, nil)

	steps := cat.Steps(ctx)
	for _, want := range []string{
		"Flagged 2 alerts for review",
		"Preparing 1 mitigation recommendation",
		"Escalating suspicious patterns",
		"Checking limit thresholds",
	} {
		if !contains(steps, want) {
			t.Errorf("expected %q in %q", want, steps)
		}
	}
	if contains(steps, "No anomalies detected") {
		t.Error("clean context must not fire when alerts exist")
	}
}

func TestCatalog_PlanFeedsCorpus(t *testing.T) {
	cat := NewCatalog()
	plan := &payload.PlanStep{Title: "Revisar ventas por región", Agent: "capi_branch_analysis"}
	ctx := NewContext("capi_branch_analysis", agents.ActionBranchAnalysis, nil, plan)

	steps := cat.Steps(ctx)
	if !contains(steps, "Breaking down sales by branch") {
		t.Errorf("expected sales context from plan title, got %q", steps)
	}
	if !contains(steps, "Grouping results by region") {
		t.Errorf("expected region context from accented plan title, got %q", steps)
	}
}

func TestCatalog_Fallback(t *testing.T) {
	cat := NewCatalog()

	if got := cat.Steps(NewContext("x", "unknown_action", nil, nil)); !reflect.DeepEqual(got, FallbackSteps) {
		t.Errorf("expected fallback for unknown action, got %q", got)
	}
	if got := cat.Steps(nil); !reflect.DeepEqual(got, FallbackSteps) {
		t.Errorf("expected fallback for nil context, got %q", got)
	}

	got := cat.Steps(nil)
	got[0] = "mutated"
	if FallbackSteps[0] == "mutated" {
		t.Error("fallback must be copied")
	}
}

func TestCatalog_Deterministic(t *testing.T) {
	cat := NewCatalog()
	artifact := map[string]any{
		"summary_message": "Ventas del mes por sucursal",
		"analysis":        []any{"a", "b", "c"},
		"metadata":        map[string]any{"zona": "norte", "estado": "NL", "crecimiento": "5%"},
		"rows":            []any{map[string]any{"x": 1.0}, map[string]any{"x": 2.0}},
	}
	first := cat.Steps(NewContext("capi_branch_analysis", agents.ActionBranchAnalysis, artifact, nil))
	for i := 0; i < 20; i++ {
		again := cat.Steps(NewContext("capi_branch_analysis", agents.ActionBranchAnalysis, artifact, nil))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("iteration %d differs:\n%q\n%q", i, first, again)
		}
	}
}

func TestCatalog_AddRule(t *testing.T) {
	cat := NewCatalog(RuleSpec{
		ActionType: agents.ActionDatabaseQuery,
		Name:       "credit",
		Keywords:   []string{"crédito"},
		Priority:   99,
		Steps:      []string{"Checking {rows} credit lines in {table}", "Never shown for {file}"},
	})
	ctx := NewContext("capi_datab", agents.ActionDatabaseQuery, map[string]any{
		"summary_message": "Líneas de credito activas",
		"table":           "creditos",
		"rowcount":        3.0,
	}, nil)

	steps := cat.Steps(ctx)
	if !contains(steps, "Checking 3 credit lines in creditos") {
		t.Errorf("expected templated rule step, got %q", steps)
	}
	if contains(steps, "Never shown") {
		t.Error("step with unresolved placeholder must be skipped")
	}
}

func TestCatalog_AddRuleAnyActionAndNewType(t *testing.T) {
	cat := NewCatalog(
		RuleSpec{ActionType: AnyAction, Keywords: []string{"urgente"}, Steps: []string{"Prioritizing urgent request"}},
		RuleSpec{ActionType: "loan_origination", Keywords: []string{"loan"}, Steps: []string{"Scoring loan application"}},
	)

	news := cat.Steps(NewContext("n", agents.ActionNewsAnalysis, map[string]any{"summary": "Noticia URGENTE"}, nil))
	if !contains(news, "Prioritizing urgent request") {
		t.Errorf("expected wildcard rule on news, got %q", news)
	}
	if !cat.Has("loan_origination") {
		t.Fatal("expected new action type to be registered")
	}
	loan := cat.Steps(NewContext("l", "loan_origination", map[string]any{"summary": "loan request"}, nil))
	if !reflect.DeepEqual(loan, []string{"Scoring loan application"}) {
		t.Errorf("unexpected loan steps %q", loan)
	}
}

func TestCatalog_StepCapAndDedup(t *testing.T) {
	cat := NewCatalog()
	for i := 0; i < 12; i++ {
		cat.AddRule(RuleSpec{
			ActionType: agents.ActionConversation,
			Keywords:   []string{"hola"},
			Steps:      []string{fmt.Sprintf("Extra step %d", i), "Understanding the request"},
		})
	}
	steps := cat.Steps(NewContext("a", agents.ActionConversation, map[string]any{"message": "hola"}, nil))
	if len(steps) != MaxSteps {
		t.Errorf("expected %d steps, got %d: %q", MaxSteps, len(steps), steps)
	}
	seen := map[string]bool{}
	for _, s := range steps {
		if seen[s] {
			t.Errorf("duplicate step %q", s)
		}
		seen[s] = true
	}
}
