package trigger

import (
	"context"
	"reflect"
	"time"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/internal/app/errkind"
	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// TopicRulesetTriggered is the event emitted on rule state changes.
const TopicRulesetTriggered = "ruleset_triggered"

// RulesetTriggeredPayload is the ruleset_triggered event body.
type RulesetTriggeredPayload struct {
	Ruleset    RulesetRef      `json:"ruleset"`
	RulesStats map[string]bool `json:"rules_stats"`
}

// RulesetRef identifies a ruleset for event payloads.
type RulesetRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Engine is the Trigger Engine (C2).
type Engine struct {
	store      Store
	monitorers map[string]Monitorer
	publisher  events.Publisher
	log        *logger.Logger
	now        func() time.Time
}

// New constructs the Trigger Engine.
func New(store Store, publisher events.Publisher, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("trigger")
	}
	return &Engine{
		store:      store,
		monitorers: make(map[string]Monitorer),
		publisher:  publisher,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterMonitorer attaches the metric-collector adapter for a named
// monitorer, used to call track(identifier) when rulesets are added.
func (e *Engine) RegisterMonitorer(name string, m Monitorer) {
	e.monitorers[name] = m
}

// Descriptor advertises this component's placement.
func (e *Engine) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "trigger", Domain: "trigger", Layer: core.LayerEngine, Capabilities: []string{"rules", "hysteresis"}}
}

// Compute is the pure operation from §4.2: validates and evaluates the
// ruleset exactly as given, without touching the store.
func (e *Engine) Compute(rs Ruleset) ComputeResult {
	if err := validate(rs); err != nil {
		return faultResult(err)
	}
	result, err := evaluate(rs, e.now())
	if err != nil {
		return faultResult(err)
	}
	return successResult(result)
}

func faultResult(err error) ComputeResult {
	if f, ok := err.(*errkind.Fault); ok {
		return errorResult(string(f.Kind), f.Message, f.Extra)
	}
	return errorResult(string(errkind.KindValidationError), err.Error(), nil)
}

// Add validates, computes, upserts, and tracks each resource with its
// monitorer adapter (§4.2).
func (e *Engine) Add(ctx context.Context, rs Ruleset) (ComputeResult, error) {
	res := e.Compute(rs)
	if res.Status != "success" {
		return res, nil
	}
	now := e.now()
	for i := range rs.Rules {
		rs.Rules[i].History = RuleHistory{LastResult: res.Result[rs.Rules[i].Name], Date: now}
	}
	if err := e.store.Upsert(ctx, rs); err != nil {
		return ComputeResult{}, err
	}
	for _, r := range rs.Resources {
		mon, ok := e.monitorers[r.Monitorer]
		if !ok || mon == nil {
			continue
		}
		if err := mon.Track(ctx, r.Identifier); err != nil {
			e.log.WithField("ruleset", rs.Name).WithField("monitorer", r.Monitorer).WithField("error", err).Warn("failed to track resource")
		}
	}
	e.log.WithField("owner", rs.Owner).WithField("ruleset", rs.Name).Info("ruleset added")
	return res, nil
}

// Delete removes a single ruleset.
func (e *Engine) Delete(ctx context.Context, owner, name string) error {
	return e.store.Delete(ctx, owner, name)
}

// Purge removes every ruleset owned by owner.
func (e *Engine) Purge(ctx context.Context, owner string) error {
	return e.store.PurgeOwner(ctx, owner)
}

// List enumerates rulesets matching filter.
func (e *Engine) List(ctx context.Context, filter Filter) ([]Ruleset, error) {
	return e.store.List(ctx, filter)
}

// OnMetric implements the event-ingress algorithm from §4.2: route the
// sample to subscribed rulesets, update resource histories idempotently,
// recompute, persist rule-history deltas, and emit ruleset_triggered.
func (e *Engine) OnMetric(ctx context.Context, sample MetricSample) error {
	rulesets, err := e.store.FindByResource(ctx, sample.Monitorer, sample.Identifier)
	if err != nil {
		return err
	}
	now := e.now()
	for _, rs := range rulesets {
		updated := false
		for i := range rs.Resources {
			r := &rs.Resources[i]
			if r.Monitorer != sample.Monitorer || r.Identifier != sample.Identifier {
				continue
			}
			if reflect.DeepEqual(r.History.LastMetrics, sample.Metrics) {
				continue
			}
			r.History = ResourceHistory{LastMetrics: sample.Metrics, Date: now}
			updated = true
		}
		if !updated {
			continue
		}
		if err := e.recompute(ctx, rs, now); err != nil {
			e.log.WithField("owner", rs.Owner).WithField("ruleset", rs.Name).WithField("error", err).Error("ruleset computation failed")
		}
	}
	return nil
}

func (e *Engine) recompute(ctx context.Context, rs Ruleset, now time.Time) error {
	result, err := evaluate(rs, now)
	if err != nil {
		// Persist the updated resource histories even when evaluation
		// fails so the idempotence invariant over resource state holds;
		// rule histories are left untouched.
		return e.store.Upsert(ctx, rs)
	}

	changed := make(map[string]bool)
	for i := range rs.Rules {
		name := rs.Rules[i].Name
		newVal := result[name]
		if rs.Rules[i].History.LastResult != newVal {
			rs.Rules[i].History = RuleHistory{LastResult: newVal, Date: now}
			changed[name] = newVal
		}
	}
	if err := e.store.Upsert(ctx, rs); err != nil {
		return err
	}
	if len(changed) > 0 && e.publisher != nil {
		payload := RulesetTriggeredPayload{
			Ruleset:    RulesetRef{Owner: rs.Owner, Name: rs.Name},
			RulesStats: result,
		}
		if err := e.publisher.Publish(ctx, TopicRulesetTriggered, payload); err != nil {
			e.log.WithField("ruleset", rs.Name).WithField("error", err).Warn("failed to publish ruleset_triggered")
		}
	}
	return nil
}
