package loadctl

import (
	"context"
	"time"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// sweepStaleAfter is the periodic-sweep staleness threshold from §4.4.
const sweepStaleAfter = 30 * time.Second

// TriggerClient is the subset of the Trigger Engine (C2) the Load
// Controller depends on.
type TriggerClient interface {
	Compute(rs trigger.Ruleset) trigger.ComputeResult
	Add(ctx context.Context, rs trigger.Ruleset) (trigger.ComputeResult, error)
	Delete(ctx context.Context, owner, name string) error
}

// OrchestratorClient is the platform rescale hook the Load Controller
// calls when a clamp computation changes the target replica count.
type OrchestratorClient interface {
	Scale(ctx context.Context, serviceName string, replicas int) error
}

// Controller is the Load Controller (C4), identified by owner (the name
// under which it registers trigger rulesets).
type Controller struct {
	owner        string
	store        Store
	trigger      TriggerClient
	orchestrator OrchestratorClient
	log          *logger.Logger
	now          func() time.Time
}

// New constructs a Load Controller.
func New(owner string, store Store, trig TriggerClient, orch OrchestratorClient, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefault("loadctl")
	}
	return &Controller{
		owner:        owner,
		store:        store,
		trigger:      trig,
		orchestrator: orch,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Descriptor advertises this component's placement.
func (c *Controller) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "loadctl", Domain: "loadctl", Layer: core.LayerEngine, Capabilities: []string{"scale", "clamp"}}
}

// MonitorService upserts the controller's record and registers the
// derived trigger ruleset (§4.4's monitor_service). If the Trigger
// Engine is unreachable, the service stays monitored and registration is
// retried on the next OnServiceUpdated call that carries a changed
// scale_config, matching the original's
// UnknownService degrade-not-fail behavior (SUPPLEMENTED FEATURES).
func (c *Controller) MonitorService(ctx context.Context, svc Service) ([]string, error) {
	if err := c.store.Upsert(ctx, svc); err != nil {
		return nil, err
	}
	return c.setTriggerRules(ctx, svc.Name, svc.ScaleConfig)
}

func (c *Controller) setTriggerRules(ctx context.Context, serviceName string, cfg ScaleConfig) ([]string, error) {
	ruleset, warnings := BuildTriggerRuleset(c.owner, serviceName, cfg)
	for _, w := range warnings {
		c.log.WithField("service", serviceName).WithField("warning", w).Warn("reserved rule name stripped")
	}
	test := c.trigger.Compute(ruleset)
	if test.Status != "success" {
		c.log.WithField("service", serviceName).WithField("kind", test.Kind).WithField("message", test.Message).Error("unable to add scale ruleset")
		return warnings, nil
	}
	if _, err := c.trigger.Add(ctx, ruleset); err != nil {
		c.log.WithField("service", serviceName).WithField("error", err).Warn("trigger engine unavailable; service stays monitored, retried on next update")
		return warnings, nil
	}
	return warnings, nil
}

// UnmonitorService removes the service record and its trigger ruleset.
func (c *Controller) UnmonitorService(ctx context.Context, serviceName string) error {
	if err := c.store.Delete(ctx, serviceName); err != nil {
		return err
	}
	return c.trigger.Delete(ctx, c.owner, serviceName)
}

// OnRulesetTriggered handles the trigger.RulesetTriggeredPayload event,
// filtering to rulesets this controller owns (§4.4).
func (c *Controller) OnRulesetTriggered(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(trigger.RulesetTriggeredPayload)
	if !ok {
		return nil
	}
	if payload.Ruleset.Owner != c.owner || payload.Ruleset.Name == "" {
		return nil
	}
	svc, ok, err := c.store.Get(ctx, payload.Ruleset.Name)
	if err != nil || !ok {
		return err
	}
	return c.executeRuleset(ctx, svc, payload.RulesStats)
}

// OnServiceUpdated reacts to the platform's service_updated event,
// refreshing mode/scale_config and re-registering trigger rules when
// scale_config changed.
func (c *Controller) OnServiceUpdated(ctx context.Context, serviceName string, mode Mode, scaleConfig *ScaleConfig, modeChanged, scaleConfigChanged bool) error {
	svc, ok, err := c.store.Get(ctx, serviceName)
	if err != nil {
		return err
	}
	if !ok {
		return nil // this service is not monitored by us
	}
	if modeChanged {
		svc.Mode = mode
	}
	if scaleConfigChanged && scaleConfig != nil {
		svc.ScaleConfig = *scaleConfig
	}
	if err := c.store.Upsert(ctx, svc); err != nil {
		return err
	}
	if scaleConfigChanged && scaleConfig != nil {
		_, err := c.setTriggerRules(ctx, serviceName, *scaleConfig)
		return err
	}
	return nil
}

// PeriodicSweep re-executes the last ruleset for every service whose
// scale rule is still asserting up/down and whose result is stale,
// a safety net against lost events (§4.4, every ~15s).
func (c *Controller) PeriodicSweep(ctx context.Context) error {
	services, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	for _, svc := range services {
		if svc.LatestRuleset == nil {
			continue
		}
		r := svc.LatestRuleset.Rule
		if !(r[RuleScaleUp] || r[RuleScaleDown]) {
			continue
		}
		if now.Sub(svc.LatestRuleset.Date) <= sweepStaleAfter {
			continue
		}
		if err := c.executeRuleset(ctx, svc, r); err != nil {
			c.log.WithField("service", svc.Name).WithField("error", err).Error("periodic sweep re-execution failed")
		}
	}
	return nil
}

func (c *Controller) executeRuleset(ctx context.Context, svc Service, ruleStats map[string]bool) error {
	svc.LatestRuleset = &LatestRuleset{Date: c.now(), Rule: ruleStats}
	if err := c.store.Upsert(ctx, svc); err != nil {
		return err
	}

	delta := 0
	switch {
	case ruleStats[RuleScaleUp]:
		delta = 1
	case ruleStats[RuleScaleDown]:
		delta = -1
	}

	current, best, ok := bestScale(svc, delta)
	if !ok || current == best {
		return nil
	}
	c.log.WithField("service", svc.Name).WithField("current", current).WithField("best", best).Info("rules triggered new scale")
	return c.orchestrator.Scale(ctx, svc.Name, best)
}

// GetBestScale is the diagnostic operation from SUPPLEMENTED FEATURES
// (overseer.py's get_best_scale/test): compute the clamp arithmetic
// without mutating state.
func (c *Controller) GetBestScale(ctx context.Context, serviceName string) (current, best int, err error) {
	svc, ok, err := c.store.Get(ctx, serviceName)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, nil
	}
	delta := 0
	if svc.LatestRuleset != nil {
		switch {
		case svc.LatestRuleset.Rule[RuleScaleUp]:
			delta = 1
		case svc.LatestRuleset.Rule[RuleScaleDown]:
			delta = -1
		}
	}
	current, best, _ = bestScale(svc, delta)
	return current, best, nil
}

// bestScale implements §4.4's clamp(mode.replicas + delta, [min, max])
// for replicated services; non-replicated services take no action.
func bestScale(svc Service, delta int) (current, best int, ok bool) {
	if svc.Mode.Name != "replicated" {
		return 0, 0, false
	}
	current = svc.Mode.Replicas
	best = core.ClampScale(current, delta, svc.ScaleConfig.Min, svc.ScaleConfig.Max)
	return current, best, true
}
