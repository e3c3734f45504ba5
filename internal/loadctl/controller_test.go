package loadctl

import (
	"context"
	"testing"
	"time"

	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

type fakeTrigger struct {
	addCalled    bool
	deleteCalled bool
	computeOK    bool
}

func (f *fakeTrigger) Compute(rs trigger.Ruleset) trigger.ComputeResult {
	if f.computeOK {
		return trigger.ComputeResult{Status: "success"}
	}
	return trigger.ComputeResult{Status: "error", Kind: "ValidationError"}
}

func (f *fakeTrigger) Add(ctx context.Context, rs trigger.Ruleset) (trigger.ComputeResult, error) {
	f.addCalled = true
	return trigger.ComputeResult{Status: "success"}, nil
}

func (f *fakeTrigger) Delete(ctx context.Context, owner, name string) error {
	f.deleteCalled = true
	return nil
}

type fakeOrchestrator struct {
	scaledTo map[string]int
}

func (f *fakeOrchestrator) Scale(ctx context.Context, serviceName string, replicas int) error {
	if f.scaledTo == nil {
		f.scaledTo = make(map[string]int)
	}
	f.scaledTo[serviceName] = replicas
	return nil
}

func TestBuildTriggerRulesetStripsReservedNames(t *testing.T) {
	cfg := ScaleConfig{
		Rules: []RuleSpec{
			{Name: "ok", Expression: "rmq:waiting == 0"},
			{Name: RuleScaleUp, Expression: "rmq:waiting > 100"},
		},
		ScaleUp:   "rules:panic",
		ScaleDown: "rules:stable",
	}
	rs, warnings := BuildTriggerRuleset("loadctl", "producer", cfg)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	names := map[string]bool{}
	for _, r := range rs.Rules {
		names[r.Name] = true
	}
	if !names[RuleScaleUp] || !names[RuleScaleDown] || !names["ok"] {
		t.Fatalf("expected ok, %s, %s rules, got %v", RuleScaleUp, RuleScaleDown, rs.Rules)
	}
	// the user's __scale_up__ rule must be dropped, not duplicated.
	count := 0
	for _, r := range rs.Rules {
		if r.Name == RuleScaleUp {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one %s rule, got %d", RuleScaleUp, count)
	}
}

func TestMonitorServicePersistsAndRegistersRuleset(t *testing.T) {
	store := NewMemStore()
	trig := &fakeTrigger{computeOK: true}
	orch := &fakeOrchestrator{}
	c := New("loadctl", store, trig, orch, logger.NewDefault("loadctl-test"))

	svc := Service{Name: "producer", Mode: Mode{Name: "replicated", Replicas: 2}}
	if _, err := c.MonitorService(context.Background(), svc); err != nil {
		t.Fatalf("MonitorService: %v", err)
	}
	if !trig.addCalled {
		t.Fatalf("expected trigger.Add to be called")
	}
	if _, ok, _ := store.Get(context.Background(), "producer"); !ok {
		t.Fatalf("expected service to be persisted even though trigger stage is decoupled")
	}
}

func TestExecuteRulesetScalesUpOnPanic(t *testing.T) {
	store := NewMemStore()
	trig := &fakeTrigger{computeOK: true}
	orch := &fakeOrchestrator{}
	c := New("loadctl", store, trig, orch, logger.NewDefault("loadctl-test"))
	c.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	svc := Service{
		Name:        "producer",
		Mode:        Mode{Name: "replicated", Replicas: 2},
		ScaleConfig: ScaleConfig{Min: 1, Max: 5},
	}
	if err := store.Upsert(context.Background(), svc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	err := c.executeRuleset(context.Background(), svc, map[string]bool{RuleScaleUp: true})
	if err != nil {
		t.Fatalf("executeRuleset: %v", err)
	}
	if orch.scaledTo["producer"] != 3 {
		t.Fatalf("expected scale to 3, got %v", orch.scaledTo)
	}
}

func TestExecuteRulesetRespectsMaxClamp(t *testing.T) {
	store := NewMemStore()
	trig := &fakeTrigger{computeOK: true}
	orch := &fakeOrchestrator{}
	c := New("loadctl", store, trig, orch, logger.NewDefault("loadctl-test"))

	svc := Service{
		Name:        "producer",
		Mode:        Mode{Name: "replicated", Replicas: 5},
		ScaleConfig: ScaleConfig{Min: 1, Max: 5},
	}
	if err := store.Upsert(context.Background(), svc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := c.executeRuleset(context.Background(), svc, map[string]bool{RuleScaleUp: true}); err != nil {
		t.Fatalf("executeRuleset: %v", err)
	}
	if _, scaled := orch.scaledTo["producer"]; scaled {
		t.Fatalf("expected no scale call once at max, got %v", orch.scaledTo)
	}
}

func TestPeriodicSweepReExecutesStaleScaleUp(t *testing.T) {
	store := NewMemStore()
	trig := &fakeTrigger{computeOK: true}
	orch := &fakeOrchestrator{}
	c := New("loadctl", store, trig, orch, logger.NewDefault("loadctl-test"))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := Service{
		Name:        "producer",
		Mode:        Mode{Name: "replicated", Replicas: 2},
		ScaleConfig: ScaleConfig{Min: 1, Max: 5},
		LatestRuleset: &LatestRuleset{
			Date: start,
			Rule: map[string]bool{RuleScaleUp: true},
		},
	}
	if err := store.Upsert(context.Background(), svc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c.now = func() time.Time { return start.Add(45 * time.Second) }

	if err := c.PeriodicSweep(context.Background()); err != nil {
		t.Fatalf("PeriodicSweep: %v", err)
	}
	if orch.scaledTo["producer"] != 3 {
		t.Fatalf("expected stale scale-up to be re-executed, got %v", orch.scaledTo)
	}
}
