package app

import (
	"context"
	"testing"
	"time"

	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

type fakeOrchPlatform struct {
	services map[string]orchestrator.ServiceData
}

func (f *fakeOrchPlatform) Get(ctx context.Context, serviceName string) (orchestrator.ServiceData, error) {
	return f.services[serviceName], nil
}
func (f *fakeOrchPlatform) ListServices(ctx context.Context) ([]orchestrator.ServiceData, error) {
	return nil, nil
}
func (f *fakeOrchPlatform) Update(ctx context.Context, serviceName string, image *orchestrator.ImageInfo, scale *int) error {
	return nil
}
func (f *fakeOrchPlatform) FetchImageConfig(ctx context.Context, fullImageID string) (map[string]any, bool, error) {
	return nil, false, nil
}
func (f *fakeOrchPlatform) ListTags(ctx context.Context, image string) ([]string, error) {
	return nil, nil
}

func eventOf(topic string, payload any) events.Event {
	return events.Event{Topic: topic, Payload: payload, Time: time.Now().UTC()}
}

func TestApplicationLifecycle(t *testing.T) {
	platform := &fakeOrchPlatform{services: map[string]orchestrator.ServiceData{}}
	application, err := New(Stores{}, PlatformClients{Orchestrator: platform}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	platform.services["web"] = orchestrator.ServiceData{Name: "web"}
	if _, err := application.Orchestrator.Monitor(ctx, "web"); err != nil {
		t.Fatalf("monitor: %v", err)
	}

	descriptors := application.Descriptors()
	names := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		names[d.Name] = true
	}
	for _, want := range []string{"trigger", "loadctl", "upgrade", "orchestrator"} {
		if !names[want] {
			t.Fatalf("expected descriptor %q among %v", want, descriptors)
		}
	}

	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

// TestLoadctlServiceUpdatedHandlerForwardsMode exercises the
// service_updated -> load controller bridge directly (bypassing the
// async bus) so the assertion is deterministic: the orchestrator's
// canonical mode is fetched and forwarded into the load controller's
// own record.
func TestLoadctlServiceUpdatedHandlerForwardsMode(t *testing.T) {
	platform := &fakeOrchPlatform{services: map[string]orchestrator.ServiceData{
		"web": {Name: "web", Mode: orchestrator.Mode{Name: "replicated", Replicas: 3}, ScaleConfig: map[string]any{"min": 1.0, "max": 5.0}},
	}}
	application, err := New(Stores{}, PlatformClients{Orchestrator: platform}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	ctx := context.Background()

	if _, err := application.Orchestrator.Monitor(ctx, "web"); err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if _, err := application.LoadCtl.MonitorService(ctx, loadctl.Service{
		Name:        "web",
		Mode:        loadctl.Mode{Name: "replicated", Replicas: 1},
		ScaleConfig: loadctl.ScaleConfig{Min: 1, Max: 5},
	}); err != nil {
		t.Fatalf("MonitorService: %v", err)
	}

	handler := loadctlServiceUpdatedHandler(application.LoadCtl, application.Orchestrator)
	payload := orchestrator.ServiceUpdatedPayload{
		ServiceName: "web",
		Diff:        orchestrator.Diff{Scale: &orchestrator.ScaleDiff{From: 1, To: 3}},
	}
	if err := handler(ctx, eventOf(orchestrator.TopicServiceUpdated, payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	current, _, err := application.LoadCtl.GetBestScale(ctx, "web")
	if err != nil {
		t.Fatalf("GetBestScale: %v", err)
	}
	if current != 3 {
		t.Fatalf("expected forwarded replicas 3, got %d", current)
	}
}

// TestUpgradeServiceUpdatedHandlerTranslatesImageDiff confirms the
// orchestrator's Diff shape is correctly flattened into the planner's
// flat ServiceUpdatedPayload, driving a catalog upsert we can observe
// directly through the explicit store passed into Stores.Upgrade.
func TestUpgradeServiceUpdatedHandlerTranslatesImageDiff(t *testing.T) {
	upgradeStore := upgrade.NewMemStore()
	application, err := New(Stores{Upgrade: upgradeStore}, PlatformClients{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	ctx := context.Background()
	if err := upgradeStore.UpsertCatalogEntry(ctx, upgrade.CatalogEntry{Name: "web", Version: "1.1.0", Versions: map[string]upgrade.VersionInfo{
		"1.1.0": {Version: "1.1.0", Available: true},
	}}); err != nil {
		t.Fatalf("seed catalog entry: %v", err)
	}

	handler := upgradeServiceUpdatedHandler(application.Upgrade)
	payload := orchestrator.ServiceUpdatedPayload{
		ServiceName: "web",
		Diff: orchestrator.Diff{
			Image: &orchestrator.ImageDiff{To: orchestrator.ImageInfo{Version: "1.2.0", Repository: "acme", Image: "web"}},
			State: &orchestrator.StateDiff{From: "pending", To: "completed"},
		},
	}
	if err := handler(ctx, eventOf(orchestrator.TopicServiceUpdated, payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	entry, ok, err := upgradeStore.GetCatalogEntry(ctx, "web")
	if err != nil {
		t.Fatalf("GetCatalogEntry: %v", err)
	}
	if !ok {
		t.Fatalf("expected catalog entry for web to exist")
	}
	if entry.Version != "1.2.0" {
		t.Fatalf("expected pinned version 1.2.0, got %q", entry.Version)
	}
	if _, ok := entry.Versions["1.2.0"]; !ok {
		t.Fatalf("expected 1.2.0 recorded among versions, got %v", entry.Versions)
	}
}

// TestUpgradeNewImageHandlerExtractsDependencies confirms the nested
// scale.dependencies.{provide,require} document is pulled out of the
// raw scale_config and forwarded into the planner's new-image handling
// (which records the version as available via the catalog entry).
func TestUpgradeNewImageHandlerExtractsDependencies(t *testing.T) {
	upgradeStore := upgrade.NewMemStore()
	application, err := New(Stores{Upgrade: upgradeStore}, PlatformClients{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	ctx := context.Background()
	if err := upgradeStore.UpsertCatalogEntry(ctx, upgrade.CatalogEntry{Name: "producer", Version: "1.0.0", Versions: map[string]upgrade.VersionInfo{
		"1.0.0": {Version: "1.0.0", Available: true},
	}}); err != nil {
		t.Fatalf("seed catalog entry: %v", err)
	}

	scaleConfig := map[string]any{
		"scale": map[string]any{
			"dependencies": map[string]any{
				"provide": map[string]any{"producer:rpc:hello": 1.0},
				"require": []any{"consumer:rpc:hello == 1"},
			},
		},
	}
	handler := upgradeNewImageHandler(application.Upgrade)
	payload := orchestrator.NewImagePayload{
		ServiceName: "producer",
		Image:       orchestrator.ImageInfo{Version: "1.0.1"},
		ScaleConfig: scaleConfig,
	}
	if err := handler(ctx, eventOf(orchestrator.TopicNewImage, payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	entry, ok, err := upgradeStore.GetCatalogEntry(ctx, "producer")
	if err != nil {
		t.Fatalf("GetCatalogEntry: %v", err)
	}
	if !ok {
		t.Fatalf("expected catalog entry for producer to exist")
	}
	version, ok := entry.Versions["1.0.1"]
	if !ok {
		t.Fatalf("expected 1.0.1 recorded among versions, got %v", entry.Versions)
	}
	if len(version.Provide) == 0 || len(version.Require) == 0 {
		t.Fatalf("expected provide/require extracted from scale_config, got %+v", version)
	}
}
