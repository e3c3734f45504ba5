package app

import (
	"context"

	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// upgradeOrchestratorAdapter satisfies upgrade.OrchestratorClient by
// translating its raw imageInfo map into orchestrator.ImageInfo, so the
// planner's upgrade_service calls drive the same platform path as the
// command-surface UpgradeService RPC.
type upgradeOrchestratorAdapter struct {
	orch *orchestrator.Orchestrator
}

func (a upgradeOrchestratorAdapter) UpgradeService(ctx context.Context, serviceName string, imageInfo map[string]any) error {
	str := func(k string) string { s, _ := imageInfo[k].(string); return s }
	return a.orch.UpgradeService(ctx, serviceName, orchestrator.ImageInfo{
		Repository:  str("repository"),
		Image:       str("image"),
		Tag:         str("tag"),
		Species:     str("species"),
		Version:     str("version"),
		Digest:      str("digest"),
		FullImageID: str("full_image_id"),
	})
}

func imageInfoToMap(ii orchestrator.ImageInfo) map[string]any {
	return map[string]any{
		"repository":    ii.Repository,
		"image":         ii.Image,
		"tag":           ii.Tag,
		"species":       ii.Species,
		"version":       ii.Version,
		"digest":        ii.Digest,
		"full_image_id": ii.FullImageID,
	}
}

// loadctlServiceUpdatedHandler subscribes loadctl to the orchestrator's
// service_updated topic (§4.4's on_service_updated): it re-reads the
// canonical mode/scale_config from the orchestrator's own store and
// forwards only what changed, since the orchestrator's diff doesn't
// carry the loadctl-shaped types directly.
func loadctlServiceUpdatedHandler(loadCtl *loadctl.Controller, orch *orchestrator.Orchestrator) events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(orchestrator.ServiceUpdatedPayload)
		if !ok {
			return nil
		}
		modeChanged := payload.Diff.Mode != nil || payload.Diff.Scale != nil
		scaleConfigChanged := payload.Diff.ScaleConfig != nil
		if !modeChanged && !scaleConfigChanged {
			return nil
		}
		svc, err := orch.Get(ctx, payload.ServiceName)
		if err != nil {
			return nil // not monitored here; nothing to forward
		}
		mode := loadctl.Mode{Name: svc.Mode.Name, Replicas: svc.Mode.Replicas}
		scaleConfig := ParseScaleConfig(svc.ScaleConfig)
		return loadCtl.OnServiceUpdated(ctx, payload.ServiceName, mode, &scaleConfig, modeChanged, scaleConfigChanged)
	}
}

// upgradeServiceUpdatedHandler translates the orchestrator's
// service_updated diff into the planner's own payload shape (§4.5
// catalog maintenance / schedule continuation).
func upgradeServiceUpdatedHandler(planner *upgrade.Planner) events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(orchestrator.ServiceUpdatedPayload)
		if !ok {
			return nil
		}
		up := upgrade.ServiceUpdatedPayload{ServiceName: payload.ServiceName}
		if payload.Diff.Image != nil {
			up.NewVersion = payload.Diff.Image.To.Version
			up.ImageInfo = imageInfoToMap(payload.Diff.Image.To)
		}
		if payload.Diff.State != nil {
			up.DiffStateTo = payload.Diff.State.To
		}
		if payload.Diff.Scale != nil {
			up.ModeName = "replicated"
			up.ModeReplicas = payload.Diff.Scale.To
		}
		return planner.OnServiceUpdated(ctx, up)
	}
}

// upgradeNewImageHandler translates the orchestrator's new_image event,
// extracting the dependency-solver provide/require declaration embedded
// in scale_config.dependencies (§4.5/§4.6 handoff).
func upgradeNewImageHandler(planner *upgrade.Planner) events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(orchestrator.NewImagePayload)
		if !ok {
			return nil
		}
		provide, require := ExtractDependencies(payload.ScaleConfig)
		return planner.OnNewImage(ctx, upgrade.NewImagePayload{
			ServiceName: payload.ServiceName,
			Version:     payload.Image.Version,
			ImageInfo:   imageInfoToMap(payload.Image),
			Provide:     provide,
			Require:     require,
		})
	}
}

// upgradeCleanedImageHandler translates the orchestrator's cleaned_image
// event for the planner's availability bookkeeping (§4.5).
func upgradeCleanedImageHandler(planner *upgrade.Planner) events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(orchestrator.CleanedImagePayload)
		if !ok {
			return nil
		}
		return planner.OnCleanedImage(ctx, upgrade.CleanedImagePayload{ServiceName: payload.ServiceName, Version: payload.Image.Version})
	}
}

// upgradeNewVersionHandler drives on_new_version_check_upgrade (§4.5):
// a genuinely new, available version always re-evaluates whether a
// fleet-wide upgrade should run.
func upgradeNewVersionHandler(planner *upgrade.Planner) events.Handler {
	return func(ctx context.Context, evt events.Event) error {
		if _, ok := evt.Payload.(upgrade.NewVersionPayload); !ok {
			return nil
		}
		_, err := planner.RunAvailableUpgrade(ctx)
		return err
	}
}
