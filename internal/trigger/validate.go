package trigger

import (
	"fmt"

	"github.com/maieve/fleet-orchestrator/internal/app/errkind"
	"github.com/maieve/fleet-orchestrator/internal/boolexpr"
)

// validate checks the Ruleset invariant from the data model §3: mandatory
// fields are present, every rule expression compiles, and no rule cycle
// exists. During a pass, rules:<name> yields the current-pass value of a
// rule evaluated earlier in declaration order and the stored history
// otherwise, while rules:<name>:since always measures from history; a
// cycle among rule references is rejected up front.
func validate(rs Ruleset) error {
	if rs.Owner == "" {
		return errkind.New(errkind.KindValidationError, "ruleset owner is required")
	}
	if rs.Name == "" {
		return errkind.New(errkind.KindValidationError, "ruleset name is required")
	}

	ruleNames := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Name == "" {
			return errkind.New(errkind.KindValidationError, "rule name is required")
		}
		if ruleNames[r.Name] {
			return errkind.New(errkind.KindValidationError, fmt.Sprintf("duplicate rule name %q", r.Name))
		}
		ruleNames[r.Name] = true
	}
	resourceNames := make(map[string]bool, len(rs.Resources))
	for _, res := range rs.Resources {
		if res.Name == "" {
			return errkind.New(errkind.KindValidationError, "resource name is required")
		}
		resourceNames[res.Name] = true
	}

	deps := make(map[string][]string, len(rs.Rules))
	for _, r := range rs.Rules {
		compiled, err := boolexpr.Compile(r.Expression)
		if err != nil {
			return errkind.Wrap(errkind.KindParseError, fmt.Sprintf("rule %q", r.Name), err)
		}
		for _, path := range compiled.Paths() {
			if len(path) == 0 {
				continue
			}
			head := path[0]
			switch {
			case head == "rules" && len(path) >= 2:
				ref := path[1]
				if !ruleNames[ref] {
					return errkind.New(errkind.KindScopeError, fmt.Sprintf("rule %q references unknown rule %q", r.Name, ref))
				}
				deps[r.Name] = append(deps[r.Name], ref)
			case head == "rules":
				return errkind.New(errkind.KindScopeError, fmt.Sprintf("rule %q: bare 'rules' reference is not allowed", r.Name))
			default:
				if !resourceNames[head] {
					return errkind.New(errkind.KindScopeError, fmt.Sprintf("rule %q references unknown resource %q", r.Name, head))
				}
			}
		}
	}

	if cycle := findCycle(deps); cycle != "" {
		return errkind.New(errkind.KindScopeError, fmt.Sprintf("cycle detected among rules: %s", cycle))
	}
	return nil
}

func findCycle(deps map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string
	var visit func(n string) string
	visit = func(n string) string {
		color[n] = gray
		path = append(path, n)
		for _, dep := range deps[n] {
			switch color[dep] {
			case gray:
				return fmt.Sprintf("%v -> %s", path, dep)
			case white:
				if cyc := visit(dep); cyc != "" {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return ""
	}
	for n := range deps {
		if color[n] == white {
			if cyc := visit(n); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}
