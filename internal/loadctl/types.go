// Package loadctl implements the Load Controller (C4): monitors
// services' scale-related rulesets, reacts to ruleset_triggered and
// service_updated events, and asks the platform orchestrator to rescale
// when a clamp computation changes the target replica count.
package loadctl

import (
	"time"

	"github.com/maieve/fleet-orchestrator/internal/trigger"
)

// Reserved rule names injected from scale_up/scale_down; any user rule
// using one of these is dropped with a warning (§4.4).
const (
	RuleScaleUp   = "__scale_up__"
	RuleScaleDown = "__scale_down__"
)

// Mode mirrors the platform's service execution mode.
type Mode struct {
	Name     string
	Replicas int
}

// RuleSpec is one user-authored scale rule.
type RuleSpec struct {
	Name       string
	Expression string
}

// ResourceSpec is one scale_config resource binding.
type ResourceSpec struct {
	Name       string
	Monitorer  string
	Identifier string
}

// ScaleConfig is the service's scale_config.scale block (§4.4).
type ScaleConfig struct {
	Resources []ResourceSpec
	Rules     []RuleSpec
	ScaleUp   string
	ScaleDown string
	Min       int
	Max       int
}

// LatestRuleset is the last ruleset_triggered result applied to a service.
type LatestRuleset struct {
	Date time.Time
	Rule map[string]bool
}

// Service is the Load Controller's own record for a monitored service.
type Service struct {
	Name          string
	Mode          Mode
	ScaleConfig   ScaleConfig
	LatestRuleset *LatestRuleset
}

// BuildTriggerRuleset constructs the trigger.Ruleset for a service's
// scale_config, injecting the reserved __scale_up__/__scale_down__ rules
// and stripping any user rule that collides with them. Shared by
// monitor_service and any future caller (SUPPLEMENTED FEATURES).
func BuildTriggerRuleset(owner, serviceName string, cfg ScaleConfig) (trigger.Ruleset, []string) {
	var warnings []string
	rules := make([]trigger.Rule, 0, len(cfg.Rules)+2)
	for _, r := range cfg.Rules {
		if r.Name == RuleScaleUp || r.Name == RuleScaleDown {
			warnings = append(warnings, "scale_config contains reserved rule name "+r.Name+"; ignored")
			continue
		}
		rules = append(rules, trigger.Rule{Name: r.Name, Expression: r.Expression})
	}
	if cfg.ScaleUp != "" {
		rules = append(rules, trigger.Rule{Name: RuleScaleUp, Expression: cfg.ScaleUp})
	}
	if cfg.ScaleDown != "" {
		rules = append(rules, trigger.Rule{Name: RuleScaleDown, Expression: cfg.ScaleDown})
	}

	resources := make([]trigger.Resource, 0, len(cfg.Resources))
	for _, r := range cfg.Resources {
		resources = append(resources, trigger.Resource{Name: r.Name, Monitorer: r.Monitorer, Identifier: r.Identifier})
	}

	return trigger.Ruleset{
		Owner:     owner,
		Name:      serviceName,
		Resources: resources,
		Rules:     rules,
	}, warnings
}
