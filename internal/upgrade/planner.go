package upgrade

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/depsolver"
	"github.com/maieve/fleet-orchestrator/internal/domain/imageversion"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

const (
	// TopicNewVersion is emitted after on_new_image upserts a genuinely
	// new version, driving run_available_upgrade (§4.5).
	TopicNewVersion = "new_version"
)

// OrchestratorClient is the subset of the platform adapter the planner
// issues upgrade commands through (§4.6 upgrade_service).
type OrchestratorClient interface {
	UpgradeService(ctx context.Context, serviceName string, imageInfo map[string]any) error
}

// Planner is the Upgrade Planner (C5).
type Planner struct {
	store        Store
	orchestrator OrchestratorClient
	platform     PlatformClient
	publisher    events.Publisher
	log          *logger.Logger
	idSeq        func() string
	hooks        core.ObservationHooks
}

// New constructs a Planner. idSeq generates schedule IDs; pass nil to use
// a random UUID (tests inject a deterministic generator). hooks observes
// each scheduled step's execution (§4.5); omit it to use
// core.NoopObservationHooks.
func New(store Store, orch OrchestratorClient, platform PlatformClient, publisher events.Publisher, log *logger.Logger, hooks ...core.ObservationHooks) *Planner {
	if log == nil {
		log = logger.NewDefault("upgrade")
	}
	stepHooks := core.NoopObservationHooks
	if len(hooks) > 0 {
		stepHooks = hooks[0]
	}
	return &Planner{
		store:        store,
		orchestrator: orch,
		platform:     platform,
		publisher:    publisher,
		log:          log,
		hooks:        stepHooks,
		idSeq: func() string {
			return fmt.Sprintf("sched-%s", uuid.NewString())
		},
	}
}

// Descriptor advertises this component's placement.
func (p *Planner) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "upgrade", Domain: "upgrade", Layer: core.LayerEngine, Capabilities: []string{"plan", "schedule"}}
}

// SanityCheck runs at startup: any entry whose pinned version isn't in
// its own versions map is repaired from the live platform state (§4.5).
func (p *Planner) SanityCheck(ctx context.Context) error {
	entries, err := p.store.ListCatalogEntries(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, ok := entry.Versions[entry.Version]; ok {
			continue
		}
		p.log.WithField("service", entry.Name).WithField("version", entry.Version).
			Error("catalog entry pinned to a version not listed in available versions")
		if p.platform == nil {
			continue
		}
		version, imageInfo, ok, err := p.platform.GetServiceVersion(ctx, entry.Name)
		if err != nil || !ok {
			continue
		}
		entry.Version = version
		if _, exists := entry.Versions[version]; !exists {
			if entry.Versions == nil {
				entry.Versions = map[string]VersionInfo{}
			}
			entry.Versions[version] = VersionInfo{Version: version, Available: true, ImageInfo: imageInfo}
		}
		if err := p.store.UpsertCatalogEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// OnServiceUpdated handles the orchestrator's service_updated event:
// catalog upsert, history append, and continuation of any running
// schedule (§4.5).
func (p *Planner) OnServiceUpdated(ctx context.Context, payload ServiceUpdatedPayload) error {
	entry, existed, err := p.store.GetCatalogEntry(ctx, payload.ServiceName)
	if err != nil {
		return err
	}
	fromVersion := ""
	if existed {
		fromVersion = entry.Version
	} else {
		entry = CatalogEntry{Name: payload.ServiceName, Versions: map[string]VersionInfo{}}
	}

	if payload.NewVersion != "" {
		if existed && fromVersion == payload.NewVersion {
			// false positive: the current version is already the reported one.
			return p.maybeContinueScheduledPlan(ctx, payload)
		}
		entry.Version = payload.NewVersion
		if _, ok := entry.Versions[payload.NewVersion]; !ok {
			entry.Versions[payload.NewVersion] = VersionInfo{
				Version:   payload.NewVersion,
				Available: true,
				ImageInfo: payload.ImageInfo,
			}
		}
		if err := p.store.UpsertCatalogEntry(ctx, entry); err != nil {
			return err
		}

		snapshot := PhaseSnapshot{Updated: payload.ServiceName, From: fromVersion, To: payload.NewVersion}
		all, err := p.store.ListCatalogEntries(ctx)
		if err != nil {
			return err
		}
		services := make(map[string]string, len(all))
		for _, e := range all {
			services[e.Name] = e.Version
		}
		snapshot.Services = services
		if err := p.store.AppendPhaseSnapshot(ctx, snapshot); err != nil {
			return err
		}
	}

	return p.maybeContinueScheduledPlan(ctx, payload)
}

// maybeContinueScheduledPlan gates schedule continuation on the
// "completed" transition or a deliberate drain-to-zero, per §4.5's "On
// service_updated with diff.state.to == completed ... or mode ==
// replicated(0)".
func (p *Planner) maybeContinueScheduledPlan(ctx context.Context, payload ServiceUpdatedPayload) error {
	drained := payload.ModeName == "replicated" && payload.ModeReplicas == 0
	if payload.DiffStateTo != "completed" && !drained {
		return nil
	}
	return p.ContinueScheduledPlan(ctx, payload.ServiceName)
}

// OnNewImage handles the orchestrator's new_image event: upsert the
// version entry, no-op on an unchanged dependency set, else emit
// new_version (§4.5).
func (p *Planner) OnNewImage(ctx context.Context, payload NewImagePayload) error {
	entry, existed, err := p.store.GetCatalogEntry(ctx, payload.ServiceName)
	if err != nil {
		return err
	}
	if !existed {
		entry = CatalogEntry{Name: payload.ServiceName, Version: payload.Version, Versions: map[string]VersionInfo{}}
	}

	if existing, ok := entry.Versions[payload.Version]; ok && reflect.DeepEqual(existing.Require, payload.Require) && reflect.DeepEqual(existing.Provide, payload.Provide) {
		return nil // same image for same dependencies: duplicate delivery
	}

	entry.Versions[payload.Version] = VersionInfo{
		Version:   payload.Version,
		Provide:   payload.Provide,
		Require:   payload.Require,
		Available: true,
		ImageInfo: payload.ImageInfo,
	}
	if err := p.store.UpsertCatalogEntry(ctx, entry); err != nil {
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, TopicNewVersion, NewVersionPayload{ServiceName: payload.ServiceName, NewVersion: payload.Version}); err != nil {
			return err
		}
	}
	return nil
}

// OnCleanedImage marks a version unavailable without deleting it, since
// a running instance may still reference it (§4.5).
func (p *Planner) OnCleanedImage(ctx context.Context, payload CleanedImagePayload) error {
	entry, ok, err := p.store.GetCatalogEntry(ctx, payload.ServiceName)
	if err != nil || !ok {
		return err
	}
	v, ok := entry.Versions[payload.Version]
	if !ok {
		return nil
	}
	v.Available = false
	entry.Versions[payload.Version] = v
	return p.store.UpsertCatalogEntry(ctx, entry)
}

// BuildCatalog reads the full catalog and reduces it with the given
// filter (§4.5 step 1-2). filter may be any Filter; nil means
// NoDowngradeFilter.
func (p *Planner) BuildCatalog(ctx context.Context, filter Filter) (depsolver.Catalog, []CatalogEntry, error) {
	entries, err := p.store.ListCatalogEntries(ctx)
	if err != nil {
		return nil, nil, err
	}
	if filter == nil {
		filter = NoDowngradeFilter
	}
	return ReduceCatalog(entries, filter), entries, nil
}

// ExplainPhase builds the hypothetical catalog pinned to phase and asks
// the solver to count violated checks (§4.5's explain_phase RPC).
func (p *Planner) ExplainPhase(ctx context.Context, phase map[string]string) (failedCount int, failed []depsolver.FailedClause, err error) {
	catalog, _, err := p.BuildCatalog(ctx, StaticFilter(phase))
	if err != nil {
		return 0, nil, err
	}
	solver, err := depsolver.New(catalog, nil, true)
	if err != nil {
		return 0, nil, err
	}
	return solver.Explain()
}

// ResolveUpgradeAndSteps builds the reduced catalog, solves it, picks
// the best-ranked compatible phase, and builds the ordered steps to
// reach it (§4.5).
func (p *Planner) ResolveUpgradeAndSteps(ctx context.Context) (ResolveResult, error) {
	catalog, entries, err := p.BuildCatalog(ctx, nil)
	if err != nil {
		return ResolveResult{}, err
	}
	solver, err := depsolver.New(catalog, nil, false)
	if err != nil {
		return ResolveResult{ErrStep: "dependency_solve", ErrDetail: err.Error()}, nil
	}

	var phases []Phase
	solver.Solve(func(a depsolver.Assignment) bool {
		phase := make(Phase, 0, len(a))
		for name, ver := range a {
			phase = append(phase, PhasePin{Service: name, Version: ver})
		}
		phases = append(phases, phase)
		return true
	})

	goal := p.solveBestPhase(entries, phases)
	if goal == nil {
		return ResolveResult{}, nil
	}

	steps, err := p.buildSteps(ctx, entries, *goal)
	if err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{BestPhase: *goal, Steps: steps}, nil
}

// solveBestPhase ranks each phase by summing, per (service,version), the
// zero-based index of version in that service's newest-first version
// list, and returns the minimum-score phase, ties broken by first-seen
// (§4.5 step 4).
func (p *Planner) solveBestPhase(entries []CatalogEntry, phases []Phase) *Phase {
	rankings := make(map[string][]string, len(entries))
	for _, e := range entries {
		ids := make([]string, 0, len(e.Versions))
		for id := range e.Versions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			vi, erri := imageversion.ParseVersion(ids[i])
			vj, errj := imageversion.ParseVersion(ids[j])
			if erri != nil || errj != nil {
				return ids[i] > ids[j]
			}
			return vi.Compare(vj) > 0
		})
		rankings[e.Name] = ids
	}

	var best *Phase
	bestScore := -1
	for i := range phases {
		phase := phases[i]
		score := 0
		for _, pin := range phase {
			idx := indexOf(rankings[pin.Service], pin.Version)
			if idx < 0 {
				p.log.WithField("service", pin.Service).WithField("version", pin.Version).Warn("phase version not found in ranking list")
				continue
			}
			score += idx
		}
		if bestScore == -1 || score < bestScore {
			bestScore, best = score, &phase
		}
	}
	return best
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

// buildSteps finds a permutation of the changed services such that each
// prefix, applied to the current phase, is a compatible (explain_phase
// zero-failure) intermediate, via backtracking (§4.5 "Step
// construction").
func (p *Planner) buildSteps(ctx context.Context, entries []CatalogEntry, goal Phase) ([]Step, error) {
	current := make(map[string]string, len(entries))
	for _, e := range entries {
		current[e.Name] = e.Version
	}
	goalMap := goal.AsMap()
	if reflect.DeepEqual(current, goalMap) {
		return nil, nil
	}

	type change struct{ service, from, to string }
	var changed []change
	for service, to := range goalMap {
		if current[service] != to {
			changed = append(changed, change{service, current[service], to})
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].service < changed[j].service })

	var backtrack func(steps []Step, fixed map[string]string, rest []change) ([]Step, error)
	backtrack = func(steps []Step, fixed map[string]string, rest []change) ([]Step, error) {
		if len(rest) == 0 {
			return steps, nil
		}
		for i, c := range rest {
			tested := cloneVersionMap(fixed)
			tested[c.service] = c.to
			failedCount, _, err := p.ExplainPhase(ctx, tested)
			if err != nil {
				return nil, err
			}
			if failedCount != 0 {
				continue
			}
			remaining := make([]change, 0, len(rest)-1)
			remaining = append(remaining, rest[:i]...)
			remaining = append(remaining, rest[i+1:]...)
			if sol, err := backtrack(append(append([]Step{}, steps...), Step{c.service, c.from, c.to}), tested, remaining); err != nil {
				return nil, err
			} else if sol != nil {
				return sol, nil
			}
		}
		return nil, nil
	}

	return backtrack(nil, current, changed)
}

func cloneVersionMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
