package upgrade

import (
	"context"
	"testing"

	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

type fakeUpgradeOrchestrator struct {
	calls []string
}

func (f *fakeUpgradeOrchestrator) UpgradeService(ctx context.Context, serviceName string, imageInfo map[string]any) error {
	f.calls = append(f.calls, serviceName)
	return nil
}

type recordingPublisher struct {
	topics []string
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, payload any) error {
	r.topics = append(r.topics, topic)
	return nil
}

// threeServiceCatalog builds the a/b/c fixture for scenario 6 (§8):
// b requires nothing; c:2 requires b at level 2; a:2 requires both b and
// c at level 2. The only valid goal phase is {a:2,b:2,c:2}, reached only
// through the step order b, c, a.
func threeServiceCatalog(t *testing.T, store *MemStore) {
	t.Helper()
	entries := []CatalogEntry{
		{
			Name:    "a",
			Version: "1",
			Versions: map[string]VersionInfo{
				"1": {Version: "1", Available: true},
				"2": {Version: "2", Available: true, Require: []string{"b:level == 2", "c:level == 2"}},
			},
		},
		{
			Name:    "b",
			Version: "1",
			Versions: map[string]VersionInfo{
				"1": {Version: "1", Available: true, Provide: map[string]any{"b:level": 1}},
				"2": {Version: "2", Available: true, Provide: map[string]any{"b:level": 2}},
			},
		},
		{
			Name:    "c",
			Version: "1",
			Versions: map[string]VersionInfo{
				"1": {Version: "1", Available: true, Provide: map[string]any{"c:level": 1}},
				"2": {Version: "2", Available: true, Provide: map[string]any{"c:level": 2}, Require: []string{"b:level == 2"}},
			},
		},
	}
	for _, e := range entries {
		if err := store.UpsertCatalogEntry(context.Background(), e); err != nil {
			t.Fatalf("UpsertCatalogEntry: %v", err)
		}
	}
}

func TestResolveUpgradeAndStepsOrdersByCompatibility(t *testing.T) {
	store := NewMemStore()
	threeServiceCatalog(t, store)
	orch := &fakeUpgradeOrchestrator{}
	p := New(store, orch, nil, nil, logger.NewDefault("upgrade-test"))

	resolved, err := p.ResolveUpgradeAndSteps(context.Background())
	if err != nil {
		t.Fatalf("ResolveUpgradeAndSteps: %v", err)
	}
	goal := resolved.BestPhase.AsMap()
	if goal["a"] != "2" || goal["b"] != "2" || goal["c"] != "2" {
		t.Fatalf("expected goal phase a:2,b:2,c:2, got %v", goal)
	}
	want := []Step{{"b", "1", "2"}, {"c", "1", "2"}, {"a", "1", "2"}}
	if len(resolved.Steps) != len(want) {
		t.Fatalf("expected %d steps, got %v", len(want), resolved.Steps)
	}
	for i, s := range want {
		if resolved.Steps[i] != s {
			t.Fatalf("step %d: expected %v, got %v", i, s, resolved.Steps[i])
		}
	}
}

func TestRunAvailableUpgradeAndContinueScheduledPlan(t *testing.T) {
	store := NewMemStore()
	threeServiceCatalog(t, store)
	orch := &fakeUpgradeOrchestrator{}
	p := New(store, orch, nil, nil, logger.NewDefault("upgrade-test"))
	ctx := context.Background()

	sched, err := p.RunAvailableUpgrade(ctx)
	if err != nil {
		t.Fatalf("RunAvailableUpgrade: %v", err)
	}
	if sched == nil {
		t.Fatalf("expected a schedule to be created")
	}
	if sched.State != StateRunning {
		t.Fatalf("expected running schedule, got %s", sched.State)
	}
	if sched.Steps[0].Service != "b" || sched.Steps[0].State != StateRunning {
		t.Fatalf("expected first step b running, got %+v", sched.Steps[0])
	}
	if len(orch.calls) != 1 || orch.calls[0] != "b" {
		t.Fatalf("expected orchestrator.UpgradeService called once for b, got %v", orch.calls)
	}

	if err := p.ContinueScheduledPlan(ctx, "b"); err != nil {
		t.Fatalf("ContinueScheduledPlan(b): %v", err)
	}
	running, ok, err := store.GetRunningSchedule(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a running schedule after step b completes, ok=%v err=%v", ok, err)
	}
	if running.Steps[0].State != StateDone || running.Steps[1].Service != "c" || running.Steps[1].State != StateRunning {
		t.Fatalf("expected b done, c running, got %+v", running.Steps)
	}
	if len(orch.calls) != 2 || orch.calls[1] != "c" {
		t.Fatalf("expected orchestrator.UpgradeService called for c next, got %v", orch.calls)
	}

	if err := p.ContinueScheduledPlan(ctx, "c"); err != nil {
		t.Fatalf("ContinueScheduledPlan(c): %v", err)
	}
	if err := p.ContinueScheduledPlan(ctx, "a"); err != nil {
		t.Fatalf("ContinueScheduledPlan(a): %v", err)
	}
	final, ok, err := store.GetRunningSchedule(ctx)
	if err != nil {
		t.Fatalf("GetRunningSchedule: %v", err)
	}
	if ok {
		t.Fatalf("expected no running schedule once the last step is done, got %+v", final)
	}
}

func TestContinueScheduledPlanAbortsOnDivergence(t *testing.T) {
	store := NewMemStore()
	threeServiceCatalog(t, store)
	orch := &fakeUpgradeOrchestrator{}
	p := New(store, orch, nil, nil, logger.NewDefault("upgrade-test"))
	ctx := context.Background()

	if _, err := p.RunAvailableUpgrade(ctx); err != nil {
		t.Fatalf("RunAvailableUpgrade: %v", err)
	}
	// "d" is not part of any scheduled step: the fleet diverged.
	if err := p.ContinueScheduledPlan(ctx, "d"); err != nil {
		t.Fatalf("ContinueScheduledPlan(d): %v", err)
	}
	sched, ok, err := store.GetRunningSchedule(ctx)
	if err != nil || ok {
		t.Fatalf("expected no running schedule after divergence, ok=%v sched=%+v", ok, sched)
	}
}

func TestOnNewImageDedupesIdenticalDependencies(t *testing.T) {
	store := NewMemStore()
	pub := &recordingPublisher{}
	p := New(store, &fakeUpgradeOrchestrator{}, nil, pub, logger.NewDefault("upgrade-test"))
	ctx := context.Background()

	payload := NewImagePayload{
		ServiceName: "producer",
		Version:     "1.0.1",
		Provide:     map[string]any{"producer:rpc:hello": 1},
	}
	if err := p.OnNewImage(ctx, payload); err != nil {
		t.Fatalf("OnNewImage (first): %v", err)
	}
	if err := p.OnNewImage(ctx, payload); err != nil {
		t.Fatalf("OnNewImage (duplicate): %v", err)
	}
	if len(pub.topics) != 1 {
		t.Fatalf("expected exactly one new_version event for duplicate delivery, got %v", pub.topics)
	}

	payload.Provide = map[string]any{"producer:rpc:hello": 2}
	if err := p.OnNewImage(ctx, payload); err != nil {
		t.Fatalf("OnNewImage (changed deps): %v", err)
	}
	if len(pub.topics) != 2 {
		t.Fatalf("expected a second new_version event once dependencies change, got %v", pub.topics)
	}
}

func TestOnServiceUpdatedAppendsCatalogAndSnapshot(t *testing.T) {
	store := NewMemStore()
	p := New(store, &fakeUpgradeOrchestrator{}, nil, nil, logger.NewDefault("upgrade-test"))
	ctx := context.Background()

	err := p.OnServiceUpdated(ctx, ServiceUpdatedPayload{ServiceName: "producer", NewVersion: "1.0.1"})
	if err != nil {
		t.Fatalf("OnServiceUpdated: %v", err)
	}
	entry, ok, err := store.GetCatalogEntry(ctx, "producer")
	if err != nil || !ok {
		t.Fatalf("expected catalog entry for producer, ok=%v err=%v", ok, err)
	}
	if entry.Version != "1.0.1" {
		t.Fatalf("expected pinned version 1.0.1, got %s", entry.Version)
	}
	if _, ok := entry.Versions["1.0.1"]; !ok {
		t.Fatalf("expected versions map to include 1.0.1")
	}
	if len(store.snapshots) != 1 {
		t.Fatalf("expected one phase snapshot, got %d", len(store.snapshots))
	}
}
