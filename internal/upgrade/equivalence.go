package upgrade

import (
	"encoding/json"
	"sort"

	"github.com/maieve/fleet-orchestrator/internal/depsolver"
	"github.com/maieve/fleet-orchestrator/internal/domain/imageversion"
)

// ReduceCatalog applies filter and then groups each service's surviving
// versions by (provide,require) equivalence, keeping one representative
// per group (§4.5 step 1: "this can collapse thousands of patch-versions
// to dozens"). Two versions are equivalent here when their provide maps
// and require sets (order-independent) serialize identically; this is a
// supplemented step absent from upgrade_planer.py's build_catalog, which
// the original relied on MongoDB-scale catalogs never growing large
// enough to need (see DESIGN.md).
func ReduceCatalog(entries []CatalogEntry, filter Filter) depsolver.Catalog {
	catalog := make(depsolver.Catalog, 0, len(entries))
	for _, entry := range entries {
		groups := make(map[string]string) // equivalence key -> representative version id
		versions := make(map[string]depsolver.VersionEntry)
		for _, v := range entry.Versions {
			if !filter(entry, v) {
				continue
			}
			key := equivalenceKey(v.Provide, v.Require)
			rep, ok := groups[key]
			if !ok || newerVersionID(v.Version, rep) {
				groups[key] = v.Version
			}
			versions[v.Version] = depsolver.VersionEntry{Provide: v.Provide, Require: v.Require}
		}
		reduced := make(map[string]depsolver.VersionEntry, len(groups))
		for _, rep := range groups {
			reduced[rep] = versions[rep]
		}
		catalog = append(catalog, depsolver.Service{Name: entry.Name, Versions: reduced})
	}
	return catalog
}

func equivalenceKey(provide map[string]any, require []string) string {
	sortedRequire := append([]string(nil), require...)
	sort.Strings(sortedRequire)
	b, _ := json.Marshal(struct {
		Provide map[string]any
		Require []string
	}{provide, sortedRequire})
	return string(b)
}

func newerVersionID(a, b string) bool {
	if a == "latest" {
		return true
	}
	if b == "latest" {
		return false
	}
	va, erra := imageversion.ParseVersion(a)
	vb, errb := imageversion.ParseVersion(b)
	if erra != nil || errb != nil {
		return a > b
	}
	return va.Compare(vb) > 0
}
