// Package orchestrator implements the Service Orchestrator (C6): owns
// Service records, diffs platform-reported state against what is stored,
// and drives the scale-config-refresh and new-image pipelines, grounded
// on original_source's overseer.py.
package orchestrator

import "github.com/maieve/fleet-orchestrator/internal/domain/imageversion"

// Mode mirrors the platform's service execution mode.
type Mode struct {
	Name     string
	Replicas int
}

// ImageInfo is the identity+version of one service's running image.
type ImageInfo struct {
	Repository  string
	Image       string
	Tag         string
	Species     string
	Version     string
	Digest      string
	FullImageID string
}

// ToImageVersion converts to the comparable domain value (§3).
func (ii ImageInfo) ToImageVersion() (imageversion.ImageVersion, error) {
	v, err := imageversion.ParseVersion(ii.Version)
	if err != nil {
		return imageversion.ImageVersion{}, err
	}
	return imageversion.ImageVersion{
		Repository: ii.Repository,
		Image:      ii.Image,
		Tag:        ii.Tag,
		Species:    ii.Species,
		Version:    v,
		Digest:     ii.Digest,
	}, nil
}

// Service is the orchestrator's own record for one monitored service.
type Service struct {
	Name        string
	Image       ImageInfo
	Mode        Mode
	ScaleConfig map[string]any
}

// ServiceData is what the platform adapter reports about a service,
// either from get/list_services or from a service_updated event.
type ServiceData struct {
	Name        string
	Image       ImageInfo
	Mode        Mode
	ScaleConfig map[string]any
	Attributes  map[string]any // e.g. updatestate.old/updatestate.new
}

// ScaleDiff records a replica-count change between replicated modes.
type ScaleDiff struct{ From, To int }

// ModeDiff records a change in mode kind (e.g. replicated -> global).
type ModeDiff struct{ From, To string }

// ImageDiff records an image identity/version change.
type ImageDiff struct{ From, To ImageInfo }

// StateDiff records a platform-reported update-state transition.
type StateDiff struct{ From, To string }

// ScaleConfigDiff records a scale_config content change.
type ScaleConfigDiff struct{ From, To map[string]any }

// Diff is the set of changes detected between a service's stored record
// and freshly reported platform data (§4.6 "Diffing").
type Diff struct {
	Scale       *ScaleDiff
	Mode        *ModeDiff
	Image       *ImageDiff
	State       *StateDiff
	ScaleConfig *ScaleConfigDiff
}

// Empty reports whether no field changed.
func (d Diff) Empty() bool {
	return d.Scale == nil && d.Mode == nil && d.Image == nil && d.State == nil && d.ScaleConfig == nil
}

// ServiceUpdatedPayload is what this orchestrator emits on service_updated.
type ServiceUpdatedPayload struct {
	ServiceName string
	Diff        Diff
}

// ImageUpdatedPayload is the registry webhook's translated event (§6).
type ImageUpdatedPayload struct {
	Repository  string
	Image       string
	Tag         string
	Digest      string
	FullImageID string
}

// NewImagePayload is emitted per matched service in the new-image
// pipeline (§4.6), consumed by the Upgrade Planner (C5).
type NewImagePayload struct {
	ServiceName string
	Image       ImageInfo
	ScaleConfig map[string]any
}

// CleanedImagePayload is emitted when periodic reconciliation finds a
// tag no longer present in the registry (§4.6).
type CleanedImagePayload struct {
	ServiceName string
	Image       ImageInfo
}
