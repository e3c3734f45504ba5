// Package upgrade implements the Upgrade Planner (C5): catalog
// maintenance, equivalence-class reduction, dependency-solver-backed goal
// selection, step construction, and scheduled execution of a fleet-wide
// upgrade, grounded on original_source's upgrade_planer.py.
package upgrade

import (
	"context"
	"time"
)

// Scheduling states (§4.5), mirroring upgrade_planer.py's RUNNING/
// ABORDED/WAITING/DONE constants.
const (
	StateRunning = "running"
	StateAborted = "aborted"
	StateWaiting = "waiting"
	StateDone    = "done"
)

// VersionInfo is one available version of a catalog entry: its
// dependency-solver provide/require declaration and availability.
type VersionInfo struct {
	Version   string
	Provide   map[string]any
	Require   []string
	Available bool
	ImageInfo map[string]any
}

// CatalogEntry is the planner's own record for one monitored service: its
// pinned current version and every version ever observed.
type CatalogEntry struct {
	Name     string
	Version  string
	Versions map[string]VersionInfo
}

// PhasePin is one (service, version) binding within a Phase, the result
// of a solved dependency assignment.
type PhasePin struct {
	Service string
	Version string
}

// Phase is a full candidate assignment across every service in the
// catalog, as returned by the dependency solver.
type Phase []PhasePin

// AsMap converts a Phase to a service-name -> version lookup.
func (p Phase) AsMap() map[string]string {
	out := make(map[string]string, len(p))
	for _, pin := range p {
		out[pin.Service] = pin.Version
	}
	return out
}

// Step is one single-service version change within a plan.
type Step struct {
	Service string
	From    string
	To      string
}

// ScheduleStep is one step embedded in a running/aborted/done Schedule.
type ScheduleStep struct {
	Service string
	From    string
	To      string
	State   string
}

// Schedule is a fleet-wide upgrade in progress or finished, §4.5
// "Execution". At most one schedule may be StateRunning at any time
// (§5's "Schedule uniqueness" invariant).
type Schedule struct {
	ID        string
	State     string
	Steps     []ScheduleStep
	CreatedAt time.Time
}

// PhaseSnapshot is one append-only row in the version history: the full
// name->version state of the catalog at the moment one service changed.
type PhaseSnapshot struct {
	Updated  string
	From     string
	To       string
	Services map[string]string
	Date     time.Time
}

// ResolveResult is resolve_upgrade_and_steps's return shape (§4.5).
type ResolveResult struct {
	BestPhase Phase
	Steps     []Step
	ErrStep   string
	ErrDetail string
}

// ServiceUpdatedPayload is the orchestrator's service_updated event
// (§4.5 catalog maintenance and §4.5 "On service_updated with
// diff.state.to==completed"), trimmed to the fields this planner reacts
// to.
type ServiceUpdatedPayload struct {
	ServiceName  string
	NewVersion   string // image_info.version, set only when the image changed
	ImageInfo    map[string]any
	DiffStateTo  string // diff.state.to, empty when absent
	ModeName     string
	ModeReplicas int
}

// NewImagePayload is the orchestrator's new_image event (§4.5).
type NewImagePayload struct {
	ServiceName string
	Version     string
	ImageInfo   map[string]any
	Provide     map[string]any
	Require     []string
}

// CleanedImagePayload is the orchestrator's cleaned_image event (§4.5).
type CleanedImagePayload struct {
	ServiceName string
	Version     string
}

// NewVersionPayload is what this planner emits after on_new_image, and
// what drives run_available_upgrade via on_new_version_check_upgrade.
type NewVersionPayload struct {
	ServiceName string
	NewVersion  string
}

// PlatformClient is the narrow orchestrator surface the sanity check
// uses to recover a live version when the catalog's pinned version
// fell out of its versions map (§4.5 "Sanity check").
type PlatformClient interface {
	GetServiceVersion(ctx context.Context, serviceName string) (version string, imageInfo map[string]any, ok bool, err error)
}
