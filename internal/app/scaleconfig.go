package app

import "github.com/maieve/fleet-orchestrator/internal/loadctl"

// ParseScaleConfig translates the platform's raw scale_config document
// (§3 data model: min/max at the top level, a nested "scale" block
// carrying resources/rules/scale_up/scale_down/dependencies) into the
// Load Controller's typed ScaleConfig.
func ParseScaleConfig(raw map[string]any) loadctl.ScaleConfig {
	cfg := loadctl.ScaleConfig{
		Min: toInt(raw["min"]),
		Max: toInt(raw["max"]),
	}
	scaleBlock, _ := raw["scale"].(map[string]any)
	if scaleBlock == nil {
		return cfg
	}
	cfg.ScaleUp, _ = scaleBlock["scale_up"].(string)
	cfg.ScaleDown, _ = scaleBlock["scale_down"].(string)

	for _, raw := range toSlice(scaleBlock["resources"]) {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		monitorer, _ := m["monitorer"].(string)
		identifier, _ := m["identifier"].(string)
		cfg.Resources = append(cfg.Resources, loadctl.ResourceSpec{Name: name, Monitorer: monitorer, Identifier: identifier})
	}
	for _, raw := range toSlice(scaleBlock["rules"]) {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		expression, _ := m["expression"].(string)
		cfg.Rules = append(cfg.Rules, loadctl.RuleSpec{Name: name, Expression: expression})
	}
	return cfg
}

// ExtractDependencies pulls the dependency-solver provide/require
// declaration out of a raw scale_config document (§4.6 new-image
// pipeline feeding §4.5's catalog maintenance).
func ExtractDependencies(raw map[string]any) (provide map[string]any, require []string) {
	scaleBlock, _ := raw["scale"].(map[string]any)
	if scaleBlock == nil {
		return nil, nil
	}
	deps, _ := scaleBlock["dependencies"].(map[string]any)
	if deps == nil {
		return nil, nil
	}
	provide, _ = deps["provide"].(map[string]any)
	for _, v := range toSlice(deps["require"]) {
		if s, ok := v.(string); ok {
			require = append(require, s)
		}
	}
	return provide, require
}

func toSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
