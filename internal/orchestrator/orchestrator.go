package orchestrator

import (
	"context"
	"reflect"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/internal/app/errkind"
	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

const (
	TopicServiceUpdated = "service_updated"
	TopicNewImage       = "new_image"
	TopicCleanedImage   = "cleaned_image"
)

// Orchestrator is the Service Orchestrator (C6). Registering the derived
// trigger ruleset on monitor is the Load Controller's responsibility
// (C4 subscribes to TopicServiceUpdated), not this component's — see
// DESIGN.md's note on the overseer.py._set_trigger_rules split.
type Orchestrator struct {
	store     Store
	platform  PlatformClient
	publisher events.Publisher
	log       *logger.Logger
}

func New(store Store, platform PlatformClient, publisher events.Publisher, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewDefault("orchestrator")
	}
	return &Orchestrator{store: store, platform: platform, publisher: publisher, log: log}
}

// Descriptor advertises this component's placement.
func (o *Orchestrator) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "orchestrator", Domain: "orchestrator", Layer: core.LayerEngine, Capabilities: []string{"monitor", "scale", "upgrade"}}
}

// Monitor fetches the service's current state and scale_config from the
// platform, inserts a record, and emits service_updated with an empty
// diff (§4.6).
func (o *Orchestrator) Monitor(ctx context.Context, serviceName string) (Service, error) {
	data, err := o.platform.Get(ctx, serviceName)
	if err != nil {
		return Service{}, errkind.Wrap(errkind.KindPlatformError, "fetch service from platform", err)
	}
	svc := Service{Name: serviceName, Image: data.Image, Mode: data.Mode, ScaleConfig: data.ScaleConfig}
	if err := o.store.Upsert(ctx, svc); err != nil {
		return Service{}, err
	}
	if err := o.emitServiceUpdated(ctx, serviceName, Diff{}); err != nil {
		return Service{}, err
	}
	return svc, nil
}

// Unmonitor deletes the orchestrator's record for a service.
func (o *Orchestrator) Unmonitor(ctx context.Context, serviceName string) error {
	return o.store.Delete(ctx, serviceName)
}

// Get returns the stored record, or NotMonitored if absent.
func (o *Orchestrator) Get(ctx context.Context, serviceName string) (Service, error) {
	svc, ok, err := o.store.Get(ctx, serviceName)
	if err != nil {
		return Service{}, err
	}
	if !ok {
		return Service{}, errkind.NotMonitored
	}
	return svc, nil
}

// ListServices returns every monitored service.
func (o *Orchestrator) ListServices(ctx context.Context) ([]Service, error) {
	return o.store.List(ctx)
}

// Scale asks the platform to resize a monitored service.
func (o *Orchestrator) Scale(ctx context.Context, serviceName string, replicas int) error {
	if _, ok, err := o.store.Get(ctx, serviceName); err != nil {
		return err
	} else if !ok {
		return errkind.NotMonitored
	}
	if err := o.platform.Update(ctx, serviceName, nil, &replicas); err != nil {
		return errkind.Wrap(errkind.KindPlatformError, "scale service", err)
	}
	return nil
}

// UpgradeService asks the platform to switch a monitored service to a
// new image.
func (o *Orchestrator) UpgradeService(ctx context.Context, serviceName string, image ImageInfo) error {
	if _, ok, err := o.store.Get(ctx, serviceName); err != nil {
		return err
	} else if !ok {
		return errkind.NotMonitored
	}
	if err := o.platform.Update(ctx, serviceName, &image, nil); err != nil {
		return errkind.Wrap(errkind.KindPlatformError, "upgrade service", err)
	}
	return nil
}

// OnPlatformServiceUpdated handles the platform's service_updated event:
// loads the stored record, builds the diff, persists the new image and
// mode, and emits its own service_updated if anything changed (§4.6
// "Diffing").
func (o *Orchestrator) OnPlatformServiceUpdated(ctx context.Context, data ServiceData) error {
	stored, ok, err := o.store.Get(ctx, data.Name)
	if err != nil {
		return err
	}
	if !ok {
		return nil // not monitored by us: ignore
	}

	diff := buildDiff(stored, data)

	stored.Image = data.Image
	stored.Mode = data.Mode
	if err := o.store.Upsert(ctx, stored); err != nil {
		return err
	}

	if diff.Empty() {
		return nil
	}
	return o.emitServiceUpdated(ctx, data.Name, diff)
}

func buildDiff(stored Service, data ServiceData) Diff {
	var diff Diff
	if stored.Mode.Name == "replicated" && data.Mode.Name == "replicated" && stored.Mode.Replicas != data.Mode.Replicas {
		diff.Scale = &ScaleDiff{From: stored.Mode.Replicas, To: data.Mode.Replicas}
	}
	if stored.Mode.Name != data.Mode.Name {
		diff.Mode = &ModeDiff{From: stored.Mode.Name, To: data.Mode.Name}
	}
	if !imageIdentical(stored.Image, data.Image) {
		diff.Image = &ImageDiff{From: stored.Image, To: data.Image}
	}
	if data.Attributes != nil {
		old, hasOld := data.Attributes["updatestate.old"].(string)
		new_, hasNew := data.Attributes["updatestate.new"].(string)
		if hasOld && hasNew {
			diff.State = &StateDiff{From: old, To: new_}
		}
	}
	return diff
}

func imageIdentical(a, b ImageInfo) bool {
	av, aerr := a.ToImageVersion()
	bv, berr := b.ToImageVersion()
	if aerr != nil || berr != nil {
		return a == b
	}
	if av.Identity() != bv.Identity() {
		return false
	}
	return av.Equal(bv)
}

// OnServiceUpdated is the scale-config refresh pipeline: subscribed to
// its own service_updated, it fetches the new image's scale_config when
// the image changed and emits a second service_updated carrying
// diff.scale_config if it differs from what's stored (§4.6).
func (o *Orchestrator) OnServiceUpdated(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(ServiceUpdatedPayload)
	if !ok || payload.Diff.Image == nil {
		return nil
	}
	svc, ok, err := o.store.Get(ctx, payload.ServiceName)
	if err != nil || !ok {
		return err
	}
	config, found, err := o.platform.FetchImageConfig(ctx, svc.Image.FullImageID)
	if err != nil {
		return errkind.Wrap(errkind.KindPlatformError, "fetch image config", err)
	}
	if !found || reflect.DeepEqual(config, svc.ScaleConfig) {
		return nil
	}
	before := svc.ScaleConfig
	svc.ScaleConfig = config
	if err := o.store.Upsert(ctx, svc); err != nil {
		return err
	}
	return o.emitServiceUpdated(ctx, payload.ServiceName, Diff{ScaleConfig: &ScaleConfigDiff{From: before, To: config}})
}

func (o *Orchestrator) emitServiceUpdated(ctx context.Context, serviceName string, diff Diff) error {
	if o.publisher == nil {
		return nil
	}
	return o.publisher.Publish(ctx, TopicServiceUpdated, ServiceUpdatedPayload{ServiceName: serviceName, Diff: diff})
}
