package boolexpr

import (
	"testing"
	"time"
)

func evalExpr(t *testing.T, expr string, table *SymbolTable) bool {
	t.Helper()
	c, err := Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	v, err := c.Eval(table)
	if err != nil {
		t.Fatalf("eval %q: %v", expr, err)
	}
	return v
}

func TestComparisonsAndLogic(t *testing.T) {
	table := NewSymbolTable()
	rmq := table.Sub("rmq")
	rmq.BindValue("latency", NumberValue(6))
	rmq.BindValue("waiting", NumberValue(0))

	if !evalExpr(t, "rmq:waiting == 0 or rmq:latency < 0.200", table) {
		t.Fatalf("expected true")
	}
	if evalExpr(t, "rmq:latency > 10", table) {
		t.Fatalf("expected false")
	}
}

func TestHysteresisPanicScenario(t *testing.T) {
	table := NewSymbolTable()
	rmq := table.Sub("rmq")
	rmq.BindValue("latency", NumberValue(6))

	rules := table.Sub("rules")
	rules.BindValue("latency_fail", BoolValue(true))
	rules.Sub("latency_fail").BindValue("since", DurationValue(27*time.Second))

	if !evalExpr(t, `rmq:latency > 10 or (rules:latency_fail and rules:latency_fail:since > "25s")`, table) {
		t.Fatalf("expected panic rule to be true")
	}
}

func TestDurationComparison(t *testing.T) {
	table := NewSymbolTable()
	table.BindValue("since", DurationValue(10*time.Second))
	if evalExpr(t, `since > "25s"`, table) {
		t.Fatalf("expected false, 10s is not > 25s")
	}
}

func TestNullComparisonIsFalseNotError(t *testing.T) {
	table := NewSymbolTable()
	table.BindValue("latency", Null())
	if evalExpr(t, "latency > 5", table) {
		t.Fatalf("expected comparison against null to be false")
	}
}

func TestInMembership(t *testing.T) {
	table := NewSymbolTable()
	args := ListValue([]Value{StringValue("name"), StringValue("world")})
	table.BindValue("args", args)
	if !evalExpr(t, `"world" in args`, table) {
		t.Fatalf("expected membership true")
	}
	if evalExpr(t, `"nope" in args`, table) {
		t.Fatalf("expected membership false")
	}
}

func TestBareNameTruthiness(t *testing.T) {
	table := NewSymbolTable()
	table.Sub("rmq").BindValue("latency", NumberValue(1))
	if !evalExpr(t, "rmq", table) {
		t.Fatalf("expected non-empty subtable to be truthy")
	}

	table2 := NewSymbolTable()
	table2.Sub("empty")
	if evalExpr(t, "empty", table2) {
		t.Fatalf("expected empty subtable to be falsy")
	}
}

func TestScopeErrorOnUnknownSymbol(t *testing.T) {
	table := NewSymbolTable()
	c, err := Compile("unknown:path == 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = c.Eval(table)
	if err == nil {
		t.Fatalf("expected ScopeError")
	}
	if _, ok := err.(*ScopeError); !ok {
		t.Fatalf("expected *ScopeError, got %T", err)
	}
}

func TestParseErrorOnBadGrammar(t *testing.T) {
	_, err := Compile("rmq:latency >")
	if err == nil {
		t.Fatalf("expected ParseError")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestGroupingAndNot(t *testing.T) {
	table := NewSymbolTable()
	table.BindValue("a", BoolValue(true))
	table.BindValue("b", BoolValue(false))
	if !evalExpr(t, "not (a and b)", table) {
		t.Fatalf("expected true")
	}
}
