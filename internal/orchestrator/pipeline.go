package orchestrator

import (
	"context"
	"fmt"

	"github.com/maieve/fleet-orchestrator/internal/app/errkind"
	"github.com/maieve/fleet-orchestrator/internal/domain/imageversion"
)

// OnImageUpdated is the new-image pipeline (§4.6): derive the image's
// species/version from its tag, find every service sharing that image's
// identity, fetch the new digest's scale_config, and emit new_image per
// match while recording the version in history.
func (o *Orchestrator) OnImageUpdated(ctx context.Context, evt ImageUpdatedPayload) error {
	species, version, err := imageversion.Parse(evt.Tag)
	if err != nil {
		return errkind.New(errkind.KindValidationError, "unparseable image tag: "+err.Error())
	}

	services, err := o.store.List(ctx)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if svc.Image.Repository != evt.Repository || svc.Image.Image != evt.Image || svc.Image.Species != species {
			continue
		}
		if svc.Image.FullImageID == evt.FullImageID {
			continue // already on this image
		}
		config, found, err := o.platform.FetchImageConfig(ctx, evt.FullImageID)
		if err != nil {
			return errkind.Wrap(errkind.KindPlatformError, "fetch image config", err)
		}
		if !found {
			config = nil
		}
		imageInfo := ImageInfo{
			Repository:  evt.Repository,
			Image:       evt.Image,
			Tag:         evt.Tag,
			Species:     species,
			Version:     version.Raw,
			Digest:      evt.Digest,
			FullImageID: evt.FullImageID,
		}
		if err := o.store.AppendVersion(ctx, VersionRecord{ServiceName: svc.Name, Image: imageInfo}); err != nil {
			return err
		}
		if o.publisher == nil {
			continue
		}
		if err := o.publisher.Publish(ctx, TopicNewImage, NewImagePayload{ServiceName: svc.Name, Image: imageInfo, ScaleConfig: config}); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileRegistries is the periodic registry reconciliation (§4.6,
// every ~30 min): for each monitored image, list the registry's tags and
// diff against the stored version history, emitting cleaned_image for
// vanished tags and new_image for newly observed ones.
func (o *Orchestrator) ReconcileRegistries(ctx context.Context) error {
	services, err := o.store.List(ctx)
	if err != nil {
		return err
	}
	seenImage := make(map[string]bool, len(services))
	for _, svc := range services {
		imageKey := svc.Image.Repository + "/" + svc.Image.Image
		if seenImage[imageKey] {
			continue
		}
		seenImage[imageKey] = true

		tags, err := o.platform.ListTags(ctx, svc.Image.Image)
		if err != nil {
			o.log.WithField("image", imageKey).WithField("error", err).Warn("registry tag listing failed; skipping reconciliation this cycle")
			continue
		}
		knownTags, err := o.knownTagsFor(ctx, svc.Name)
		if err != nil {
			return err
		}

		liveTags := make(map[string]bool, len(tags))
		for _, t := range tags {
			liveTags[t] = true
		}
		for tag := range knownTags {
			if liveTags[tag] {
				continue
			}
			if err := o.emitCleanedImage(ctx, svc, tag); err != nil {
				return err
			}
		}
		for _, tag := range tags {
			if knownTags[tag] {
				continue
			}
			if err := o.OnImageUpdated(ctx, ImageUpdatedPayload{
				Repository:  svc.Image.Repository,
				Image:       svc.Image.Image,
				Tag:         tag,
				FullImageID: fmt.Sprintf("%s/%s:%s", svc.Image.Repository, svc.Image.Image, tag),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) knownTagsFor(ctx context.Context, serviceName string) (map[string]bool, error) {
	records, err := o.store.ListVersions(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.Image.Tag] = true
	}
	return known, nil
}

func (o *Orchestrator) emitCleanedImage(ctx context.Context, svc Service, tag string) error {
	if o.publisher == nil {
		return nil
	}
	return o.publisher.Publish(ctx, TopicCleanedImage, CleanedImagePayload{
		ServiceName: svc.Name,
		Image:       ImageInfo{Repository: svc.Image.Repository, Image: svc.Image.Image, Tag: tag},
	})
}

// FetchServices bootstraps the registry on first run, if nothing is
// monitored yet: list every service the platform knows about and
// monitor each (excluding rabbitmq, mirroring overseer.py's
// fetch_services once-handler).
func (o *Orchestrator) FetchServices(ctx context.Context) error {
	existing, err := o.store.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	services, err := o.platform.ListServices(ctx)
	if err != nil {
		return errkind.Wrap(errkind.KindPlatformError, "list services", err)
	}
	for _, data := range services {
		if containsRabbitMQ(data.Name) {
			continue
		}
		if _, err := o.Monitor(ctx, data.Name); err != nil {
			o.log.WithField("service", data.Name).WithField("error", err).Warn("bootstrap monitor failed")
		}
	}
	return nil
}

func containsRabbitMQ(name string) bool {
	for i := 0; i+8 <= len(name); i++ {
		if eqFold(name[i:i+8], "rabbitmq") {
			return true
		}
	}
	return false
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ReloadFromScaler refreshes both scale_config and live service data
// from the platform for one service, mirroring overseer.py's
// reload_from_scaler. The two platform calls run one after the other.
func (o *Orchestrator) ReloadFromScaler(ctx context.Context, serviceName string) (Service, error) {
	svc, ok, err := o.store.Get(ctx, serviceName)
	if err != nil {
		return Service{}, err
	}
	if !ok {
		return Service{}, errkind.NotMonitored
	}

	config, found, err := o.platform.FetchImageConfig(ctx, svc.Image.FullImageID)
	if err != nil {
		return Service{}, errkind.Wrap(errkind.KindPlatformError, "fetch image config", err)
	}
	data, err := o.platform.Get(ctx, serviceName)
	if err != nil {
		return Service{}, errkind.Wrap(errkind.KindPlatformError, "fetch service", err)
	}

	if found {
		svc.ScaleConfig = config
	}
	svc.Image = data.Image
	svc.Mode = data.Mode
	if err := o.store.Upsert(ctx, svc); err != nil {
		return Service{}, err
	}
	return svc, nil
}
