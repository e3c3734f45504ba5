package trigger

import (
	"time"

	"github.com/maieve/fleet-orchestrator/internal/boolexpr"
)

// evaluate implements component design §4.2's evaluation algorithm: build
// a root symbol table from resource histories, expose rules:<name> and
// rules:<name>:since with history-backed hysteresis, and evaluate rules
// in declaration order, stopping at the first error.
func evaluate(rs Ruleset, now time.Time) (map[string]bool, error) {
	compiled := make([]*boolexpr.Compiled, len(rs.Rules))
	for i, r := range rs.Rules {
		c, err := boolexpr.Compile(r.Expression)
		if err != nil {
			return nil, err
		}
		compiled[i] = c
	}

	table := boolexpr.NewSymbolTable()
	resourceNames := make(map[string]bool, len(rs.Resources))

	for _, res := range rs.Resources {
		resourceNames[res.Name] = true
		metrics := res.History.LastMetrics
		present := len(metrics) > 0
		table.BindValue(res.Name, boolexpr.BoolValue(present))
		sub := table.Sub(res.Name)
		for k, v := range metrics {
			sub.BindValue(k, boolexpr.AnyValue(v))
		}
	}

	// A resource field a rule references but that has never been
	// observed resolves to Null rather than a ScopeError: the table
	// structure (resource, field name) is known even before the first
	// metric sample arrives.
	for _, c := range compiled {
		for _, path := range c.Paths() {
			if len(path) < 2 || !resourceNames[path[0]] {
				continue
			}
			sub := table.Sub(path[0])
			field := path[len(path)-1]
			if _, ok := rs.resourceByName(path[0]).History.LastMetrics[field]; !ok {
				sub.Bind(field, func() boolexpr.Value { return boolexpr.Null() })
			}
		}
	}

	rulesTable := table.Sub("rules")
	computed := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		name := r.Name
		hist := r.History
		rulesTable.Bind(name, func() boolexpr.Value {
			if v, ok := computed[name]; ok {
				return boolexpr.BoolValue(v)
			}
			return boolexpr.BoolValue(hist.LastResult)
		})
		sinceSub := rulesTable.Sub(name)
		sinceSub.Bind("since", func() boolexpr.Value {
			current, ok := computed[name]
			if !ok || current != hist.LastResult {
				return boolexpr.DurationValue(0)
			}
			return boolexpr.DurationValue(now.Sub(hist.Date))
		})
	}

	results := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		v, err := compiled[i].Eval(table)
		if err != nil {
			return nil, err
		}
		computed[r.Name] = v
		results[r.Name] = v
	}
	return results, nil
}
