package upgrade

import (
	"context"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
)

// RunAvailableUpgrade resolves the current best phase and, if it
// requires any steps, aborts any running schedule, inserts a new one
// with every step waiting, and issues the first step (§4.5 "Execution").
func (p *Planner) RunAvailableUpgrade(ctx context.Context) (*Schedule, error) {
	resolved, err := p.ResolveUpgradeAndSteps(ctx)
	if err != nil {
		return nil, err
	}
	if len(resolved.Steps) == 0 {
		return nil, nil
	}

	if err := p.abortRunningSchedule(ctx); err != nil {
		return nil, err
	}

	steps := make([]ScheduleStep, len(resolved.Steps))
	for i, s := range resolved.Steps {
		steps[i] = ScheduleStep{Service: s.Service, From: s.From, To: s.To, State: StateWaiting}
	}
	sched := Schedule{ID: p.idSeq(), State: StateRunning, Steps: steps}

	if err := p.runStep(ctx, &sched, 0); err != nil {
		return nil, err
	}
	if err := p.store.InsertSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

// abortRunningSchedule transitions any currently-running schedule to
// aborted along with its still-waiting steps (§4.5: "When a new schedule
// is started, the old one transitions to aborted").
func (p *Planner) abortRunningSchedule(ctx context.Context) error {
	sched, ok, err := p.store.GetRunningSchedule(ctx)
	if err != nil || !ok {
		return err
	}
	abortSchedule(&sched)
	return p.store.ReplaceSchedule(ctx, sched)
}

func abortSchedule(sched *Schedule) {
	sched.State = StateAborted
	for i := range sched.Steps {
		if sched.Steps[i].State == StateWaiting {
			sched.Steps[i].State = StateAborted
		}
	}
}

// ContinueScheduledPlan advances the running schedule when serviceName
// has finished its step: marks it done and issues the next waiting step,
// or marks the whole schedule done if it was the last one. A service
// outside the running schedule's step list means the fleet diverged from
// the plan, which aborts it (§4.5, §7's Divergence kind).
func (p *Planner) ContinueScheduledPlan(ctx context.Context, serviceName string) error {
	sched, ok, err := p.store.GetRunningSchedule(ctx)
	if err != nil || !ok {
		p.log.WithField("service", serviceName).Info("service upgraded outside of a running upgrade plan")
		return err
	}

	updatedIdx := -1
	nextIdx := -1
	for i, step := range sched.Steps {
		switch {
		case step.Service == serviceName:
			updatedIdx = i
		case step.State == StateDone:
			continue
		case step.State == StateWaiting:
			nextIdx = i
		}
		if nextIdx != -1 {
			break
		}
	}

	switch {
	case updatedIdx == -1:
		abortSchedule(&sched)
	case nextIdx == -1:
		sched.Steps[updatedIdx].State = StateDone
		sched.State = StateDone
	default:
		sched.Steps[updatedIdx].State = StateDone
		if err := p.runStep(ctx, &sched, nextIdx); err != nil {
			return err
		}
	}
	return p.store.ReplaceSchedule(ctx, sched)
}

// runStep issues the upgrade_service RPC for sched.Steps[idx] and marks
// it running; an unresolvable service or version aborts the schedule
// instead (§4.5).
func (p *Planner) runStep(ctx context.Context, sched *Schedule, idx int) error {
	step := &sched.Steps[idx]
	entry, ok, err := p.store.GetCatalogEntry(ctx, step.Service)
	if err != nil {
		return err
	}
	if !ok {
		p.log.WithField("service", step.Service).WithField("to", step.To).Error("scheduled service not found in catalog")
		abortSchedule(sched)
		return nil
	}
	version, ok := entry.Versions[step.To]
	if !ok {
		p.log.WithField("service", step.Service).WithField("to", step.To).Error("scheduled version not found in catalog")
		abortSchedule(sched)
		return nil
	}
	step.State = StateRunning
	done := core.StartObservation(ctx, p.hooks, map[string]string{"service": step.Service})
	err = p.orchestrator.UpgradeService(ctx, step.Service, version.ImageInfo)
	done(err)
	return err
}
