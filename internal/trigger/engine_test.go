package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

func newTestEngine(t *testing.T, frozen time.Time) (*Engine, *MemStore, *events.Dispatcher) {
	t.Helper()
	store := NewMemStore()
	bus := events.NewDispatcher(events.Config{})
	e := New(store, bus, logger.NewDefault("trigger-test"))
	e.now = func() time.Time { return frozen }
	return e, store, bus
}

func latencyRuleset() Ruleset {
	return Ruleset{
		Owner: "team-a",
		Name:  "rmq-latency",
		Resources: []Resource{
			{Name: "rmq", Monitorer: "rabbitmq", Identifier: "orders-queue"},
		},
		Rules: []Rule{
			{Name: "latency_fail", Expression: `rmq:latency > 10`},
			{Name: "sustained", Expression: `rules:latency_fail and rules:latency_fail:since > "25s"`},
		},
	}
}

func TestComputeRejectsUnknownSymbol(t *testing.T) {
	e, _, _ := newTestEngine(t, time.Now())
	rs := Ruleset{Owner: "a", Name: "b", Rules: []Rule{{Name: "r1", Expression: "bogus:path == 1"}}}
	res := e.Compute(rs)
	if res.Status != "error" || res.Kind != "ScopeError" {
		t.Fatalf("expected ScopeError, got %+v", res)
	}
}

func TestComputeRejectsCycle(t *testing.T) {
	e, _, _ := newTestEngine(t, time.Now())
	rs := Ruleset{
		Owner: "a", Name: "b",
		Rules: []Rule{
			{Name: "r1", Expression: "rules:r2"},
			{Name: "r2", Expression: "rules:r1"},
		},
	}
	res := e.Compute(rs)
	if res.Status != "error" || res.Kind != "ScopeError" {
		t.Fatalf("expected cycle ScopeError, got %+v", res)
	}
}

func TestAddTracksEachResource(t *testing.T) {
	e, store, _ := newTestEngine(t, time.Now())
	tracked := make(map[string]bool)
	e.RegisterMonitorer("rabbitmq", trackerFunc(func(ctx context.Context, id string) error {
		tracked[id] = true
		return nil
	}))

	res, err := e.Add(context.Background(), latencyRuleset())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Status != "success" {
		t.Fatalf("expected success, got %+v", res)
	}
	if !tracked["orders-queue"] {
		t.Fatalf("expected orders-queue to be tracked")
	}
	if _, ok, _ := store.Get(context.Background(), "team-a", "rmq-latency"); !ok {
		t.Fatalf("expected ruleset to be persisted")
	}
}

// TestOnMetricIdempotence verifies §8's idempotence property: delivering
// the same sample twice produces no second ruleset_triggered event and no
// history churn beyond the first update.
func TestOnMetricIdempotence(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, store, bus := newTestEngine(t, start)

	if _, err := e.Add(context.Background(), latencyRuleset()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var fired int
	bus.Subscribe(TopicRulesetTriggered, func(ctx context.Context, evt events.Event) error {
		fired++
		return nil
	})

	sample := MetricSample{Monitorer: "rabbitmq", Identifier: "orders-queue", Metrics: map[string]any{"latency": 15}}
	if err := e.OnMetric(context.Background(), sample); err != nil {
		t.Fatalf("OnMetric: %v", err)
	}
	waitDrained(bus)
	if fired != 1 {
		t.Fatalf("expected 1 trigger after first sample, got %d", fired)
	}

	rs, _, _ := store.Get(context.Background(), "team-a", "rmq-latency")
	firstDate := rs.Rules[0].History.Date

	if err := e.OnMetric(context.Background(), sample); err != nil {
		t.Fatalf("OnMetric (repeat): %v", err)
	}
	waitDrained(bus)
	if fired != 1 {
		t.Fatalf("expected no additional trigger on repeated identical sample, got %d", fired)
	}
	rs2, _, _ := store.Get(context.Background(), "team-a", "rmq-latency")
	if !rs2.Rules[0].History.Date.Equal(firstDate) {
		t.Fatalf("expected rule history date to be unchanged by idempotent sample")
	}
}

// TestHysteresisMonotonicity verifies §8's monotonicity property: once
// latency_fail has been continuously true for longer than the since
// threshold, sustained becomes (and remains) true.
func TestHysteresisMonotonicity(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, store, _ := newTestEngine(t, start)
	if _, err := e.Add(context.Background(), latencyRuleset()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	e.now = func() time.Time { return start.Add(1 * time.Second) }
	if err := e.OnMetric(context.Background(), MetricSample{
		Monitorer: "rabbitmq", Identifier: "orders-queue", Metrics: map[string]any{"latency": 15},
	}); err != nil {
		t.Fatalf("OnMetric: %v", err)
	}
	rs, _, _ := store.Get(context.Background(), "team-a", "rmq-latency")
	if rs.Rules[1].History.LastResult {
		t.Fatalf("sustained should still be false before the since threshold elapses")
	}

	e.now = func() time.Time { return start.Add(30 * time.Second) }
	if err := e.OnMetric(context.Background(), MetricSample{
		Monitorer: "rabbitmq", Identifier: "orders-queue", Metrics: map[string]any{"latency": 16},
	}); err != nil {
		t.Fatalf("OnMetric: %v", err)
	}
	rs, _, _ = store.Get(context.Background(), "team-a", "rmq-latency")
	if !rs.Rules[1].History.LastResult {
		t.Fatalf("sustained should be true once latency_fail has held past the since threshold")
	}
}

type trackerFunc func(ctx context.Context, id string) error

func (f trackerFunc) Track(ctx context.Context, id string) error { return f(ctx, id) }

func waitDrained(bus *events.Dispatcher) {
	// The Dispatcher delivers asynchronously on worker goroutines; give
	// the bounded queue time to drain in tests.
	time.Sleep(20 * time.Millisecond)
}
