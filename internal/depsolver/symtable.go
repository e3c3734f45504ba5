package depsolver

import "github.com/maieve/fleet-orchestrator/internal/boolexpr"

// bindPath walks a colon-path into root, creating subtables as needed,
// and binds v at the final segment. Because SymbolTable keeps objects
// and subtables in independent maps, a name can be both a typed leaf
// ("svc:rpc:hello" = 1) and a path prefix into deeper leaves
// ("svc:rpc:hello:args" = [...]) without conflict.
func bindPath(root *boolexpr.SymbolTable, path []string, v boolexpr.Value) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		root.BindValue(path[0], v)
		return
	}
	bindPath(root.Sub(path[0]), path[1:], v)
}

// buildStructuralTable is the "global symbol table" from §4.3: the union
// of every provide key over every version of every service, used once to
// scope-check require expressions at compile time. Every service name is
// also bound at the root (spec requirement, independent of whether the
// service happens to provide anything).
func buildStructuralTable(catalog Catalog) *boolexpr.SymbolTable {
	table := boolexpr.NewSymbolTable()
	for _, svc := range catalog {
		table.BindValue(svc.Name, boolexpr.BoolValue(true))
		for _, ver := range svc.Versions {
			for k, v := range ver.Provide {
				bindPath(table, boolexpr.SplitPath(k), boolexpr.AnyValue(v))
			}
		}
	}
	return table
}

// buildCandidateTable is the per-search-node evaluation table: service
// presence reflects the current partial assignment (`selected`), and
// provide leaves reflect only what has actually been accumulated so far
// in `provided` — a require referencing a producer not yet selected
// resolves to ScopeError here, exactly as it would structurally fail in
// the original backtracking (caught by the caller as "this extension
// doesn't satisfy its requirements").
func buildCandidateTable(catalog Catalog, provided map[string]any, selected map[string]string) *boolexpr.SymbolTable {
	table := boolexpr.NewSymbolTable()
	for _, svc := range catalog {
		_, present := selected[svc.Name]
		table.BindValue(svc.Name, boolexpr.BoolValue(present))
	}
	for k, v := range provided {
		bindPath(table, boolexpr.SplitPath(k), boolexpr.AnyValue(v))
	}
	return table
}
