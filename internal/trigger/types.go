// Package trigger implements the Trigger Engine (C2): owns rulesets,
// ingests metric samples, evaluates rule expressions with since-based
// hysteresis, and emits ruleset_triggered events on state changes.
package trigger

import "time"

// ResourceHistory is a resource's last observed metrics.
type ResourceHistory struct {
	LastMetrics map[string]any
	Date        time.Time
}

// Resource is a handle to an external metric stream identified by
// (monitorer, identifier), bound in the ruleset's symbol table under Name.
type Resource struct {
	Name       string
	Monitorer  string
	Identifier string
	History    ResourceHistory
}

// RuleHistory is a rule's last computed boolean result.
type RuleHistory struct {
	LastResult bool
	Date       time.Time
}

// Rule is a named boolean expression evaluated within a ruleset.
type Rule struct {
	Name       string
	Expression string
	History    RuleHistory
}

// Ruleset is the data model's Ruleset record, uniquely keyed by (Owner, Name).
type Ruleset struct {
	Owner     string
	Name      string
	Resources []Resource
	Rules     []Rule
}

// Key identifies a ruleset by its unique (owner, name) pair.
type Key struct {
	Owner string
	Name  string
}

func (r Ruleset) Key() Key { return Key{Owner: r.Owner, Name: r.Name} }

func (r Ruleset) resourceByName(name string) Resource {
	for _, res := range r.Resources {
		if res.Name == name {
			return res
		}
	}
	return Resource{}
}

// MetricSample is one observation pushed by the metric collector.
type MetricSample struct {
	Monitorer  string
	Identifier string
	Metrics    map[string]any
}

// ComputeResult is the command-surface response shape from §6: either a
// successful rule_name->bool map, or a structured error.
type ComputeResult struct {
	Status  string
	Result  map[string]bool
	Kind    string
	Message string
	Extra   map[string]any
}

func successResult(result map[string]bool) ComputeResult {
	return ComputeResult{Status: "success", Result: result}
}

func errorResult(kind, message string, extra map[string]any) ComputeResult {
	return ComputeResult{Status: "error", Kind: kind, Message: message, Extra: extra}
}

// Filter narrows List results.
type Filter struct {
	Owner string
}
