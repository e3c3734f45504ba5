package depsolver

import (
	"fmt"
	"sort"

	"github.com/maieve/fleet-orchestrator/internal/boolexpr"
	"github.com/maieve/fleet-orchestrator/internal/domain/imageversion"
)

type compiledReq struct {
	Expr string
	C    *boolexpr.Compiled
}

// Solver runs the CSP backtracking search from §4.3, grounded on
// original_source's dependency_solver.py Solver class.
type Solver struct {
	catalog Catalog
	extra   []string
	debug   bool

	anomalies []Anomaly
	failed    []FailedClause

	structural      *boolexpr.SymbolTable
	compiledRequire map[string]map[string][]compiledReq
	compiledExtra   []compiledReq
	sortedVersions  map[string][]string
	provideByVer    map[string]map[string]map[string]any
}

// New constructs a Solver and compiles every require expression against
// the structural symbol table, recording anomalies (not errors) for
// (service,version) pairs that fail to scope-check. A ScopeError or
// ParseError in an extra constraint is a hard error, matching the
// original's uncaught-at-that-point behavior.
func New(catalog Catalog, extra []string, debug bool) (*Solver, error) {
	s := &Solver{
		catalog:         catalog,
		extra:           extra,
		debug:           debug,
		compiledRequire: make(map[string]map[string][]compiledReq, len(catalog)),
		sortedVersions:  make(map[string][]string, len(catalog)),
		provideByVer:    make(map[string]map[string]map[string]any, len(catalog)),
	}
	s.structural = buildStructuralTable(catalog)

	for _, svc := range catalog {
		s.compiledRequire[svc.Name] = make(map[string][]compiledReq)
		s.provideByVer[svc.Name] = make(map[string]map[string]any, len(svc.Versions))
		for verID, ver := range svc.Versions {
			s.provideByVer[svc.Name][verID] = ver.Provide
			compiled, ok := s.compileRequires(svc.Name, verID, ver.Require)
			if ok {
				s.compiledRequire[svc.Name][verID] = compiled
			}
		}
		s.sortedVersions[svc.Name] = sortVersionIDsNewestFirst(s.compiledRequire[svc.Name])
	}

	for _, expr := range extra {
		c, err := boolexpr.Compile(expr)
		if err != nil {
			return nil, err
		}
		if _, err := c.Eval(s.structural); err != nil {
			return nil, err
		}
		s.compiledExtra = append(s.compiledExtra, compiledReq{Expr: expr, C: c})
	}
	return s, nil
}

func (s *Solver) compileRequires(service, version string, requires []string) ([]compiledReq, bool) {
	compiled := make([]compiledReq, 0, len(requires))
	for _, expr := range requires {
		c, err := boolexpr.Compile(expr)
		if err != nil {
			s.anomalies = append(s.anomalies, Anomaly{Service: service, Version: version, Expression: expr, Error: err.Error()})
			return nil, false
		}
		if _, err := c.Eval(s.structural); err != nil {
			s.anomalies = append(s.anomalies, Anomaly{Service: service, Version: version, Expression: expr, Error: err.Error()})
			return nil, false
		}
		compiled = append(compiled, compiledReq{Expr: expr, C: c})
	}
	return compiled, true
}

// sortVersionIDsNewestFirst orders a service's surviving (non-anomalous)
// versions from newest to oldest, "latest" ranked highest (§4.3).
func sortVersionIDsNewestFirst(versions map[string][]compiledReq) []string {
	ids := make([]string, 0, len(versions))
	for id := range versions {
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
	return ids
}

// Anomalies returns the (service,version) pairs excluded from the search.
func (s *Solver) Anomalies() []Anomaly { return s.anomalies }

// Solve streams every compatible assignment to yield, stopping early if
// yield returns false — the "lazy stream; the caller may take only the
// first N" behavior from §4.3, expressed as an iterator instead of a
// channel since the whole search is synchronous.
func (s *Solver) Solve(yield func(Assignment) bool) {
	remaining := make([]string, 0, len(s.catalog))
	for _, svc := range s.catalog {
		remaining = append(remaining, svc.Name)
	}
	seen := make(map[string]bool)
	s.backtrack(remaining, map[string]string{}, map[string]any{}, seen, yield)
}

// TakeN collects up to n assignments (n<=0 means unbounded).
func (s *Solver) TakeN(n int) []Assignment {
	var out []Assignment
	s.Solve(func(a Assignment) bool {
		out = append(out, a)
		return n <= 0 || len(out) < n
	})
	return out
}

func (s *Solver) backtrack(remaining []string, selected map[string]string, provided map[string]any, seen map[string]bool, yield func(Assignment) bool) bool {
	if len(remaining) == 0 {
		key := assignmentKey(selected)
		if seen[key] {
			return true
		}
		seen[key] = true
		return yield(cloneAssignment(selected))
	}
	for i, name := range remaining {
		for _, verID := range s.sortedVersions[name] {
			candidateSelected := cloneAssignment(selected)
			candidateSelected[name] = verID
			candidateProvided := cloneProvided(provided)
			for k, v := range s.provideByVer[name][verID] {
				candidateProvided[k] = v
			}
			if !s.checkConstraints(name, verID, candidateSelected, candidateProvided) {
				continue
			}
			rest := make([]string, 0, len(remaining)-1)
			rest = append(rest, remaining[:i]...)
			rest = append(rest, remaining[i+1:]...)
			if !s.backtrack(rest, candidateSelected, candidateProvided, seen, yield) {
				return false
			}
		}
	}
	return true
}

func (s *Solver) checkConstraints(name, verID string, selected map[string]string, provided map[string]any) bool {
	table := buildCandidateTable(s.catalog, provided, selected)
	for _, req := range s.compiledRequire[name][verID] {
		ok, err := req.C.Eval(table)
		if err != nil || !ok {
			if s.debug {
				s.failed = append(s.failed, FailedClause{Expression: req.Expr, Service: name, Provided: provided})
			}
			return false
		}
	}
	for _, req := range s.compiledExtra {
		ok, err := req.C.Eval(table)
		if err != nil || !ok {
			if s.debug {
				s.failed = append(s.failed, FailedClause{Expression: req.Expr, Service: name, Provided: provided})
			}
			return false
		}
	}
	return true
}

// Explain evaluates every service's requires and the extra constraints
// against the solver's catalog, which must carry exactly one version per
// service, returning the count of violated checks and which ones failed
// (§4.3's diagnostic operation).
func (s *Solver) Explain() (failedCount int, failed []FailedClause, err error) {
	selected := make(map[string]string, len(s.catalog))
	provided := make(map[string]any)
	for _, svc := range s.catalog {
		if len(svc.Versions) != 1 {
			return 0, nil, fmt.Errorf("explain requires exactly one version for service %q, got %d", svc.Name, len(svc.Versions))
		}
		for verID, ver := range svc.Versions {
			selected[svc.Name] = verID
			for k, v := range ver.Provide {
				provided[k] = v
			}
		}
	}

	s.debug = true
	s.failed = nil
	count := 0
	table := buildCandidateTable(s.catalog, provided, selected)
	for _, svc := range s.catalog {
		verID := selected[svc.Name]
		allOK := true
		for _, req := range s.compiledRequire[svc.Name][verID] {
			ok, evalErr := req.C.Eval(table)
			if evalErr != nil || !ok {
				allOK = false
			}
		}
		if !allOK {
			count++
			s.failed = append(s.failed, FailedClause{Service: svc.Name, Provided: provided})
		}

		extraOK := true
		for _, req := range s.compiledExtra {
			ok, evalErr := req.C.Eval(table)
			if evalErr != nil || !ok {
				extraOK = false
			}
		}
		if !extraOK {
			count++
			s.failed = append(s.failed, FailedClause{Service: svc.Name, Provided: provided})
		}
	}
	return count, s.failed, nil
}

func assignmentKey(a map[string]string) string {
	names := make([]string, 0, len(a))
	for n := range a {
		names = append(names, n)
	}
	sort.Strings(names)
	key := ""
	for _, n := range names {
		key += n + "=" + a[n] + ";"
	}
	return key
}

func cloneAssignment(a map[string]string) Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func cloneProvided(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
