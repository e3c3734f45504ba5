package upgrade

import "github.com/maieve/fleet-orchestrator/internal/domain/imageversion"

// Filter selects which of a catalog entry's versions are eligible
// candidates when building the reduced catalog handed to the solver
// (§4.5 "Goal selection" step 2), grounded on upgrade_planer.py's
// accept_all/no_downgrade/static_version.
type Filter func(entry CatalogEntry, version VersionInfo) bool

// Named filter identifiers, mirroring CATALOG_FILTERS.
const (
	NoDowngrade = "no_downgrade"
	AcceptAll   = "accept_all"
)

// AcceptAllFilter keeps every available version.
func AcceptAllFilter(entry CatalogEntry, version VersionInfo) bool {
	return version.Available
}

// NoDowngradeFilter keeps versions at or above the entry's current
// pinned version; "latest" always passes when available since it is
// never strictly ordered below any concrete version.
func NoDowngradeFilter(entry CatalogEntry, version VersionInfo) bool {
	if !version.Available {
		return false
	}
	if version.Version == "latest" {
		return true
	}
	cur, err := imageversion.ParseVersion(entry.Version)
	if err != nil {
		return true
	}
	v, err := imageversion.ParseVersion(version.Version)
	if err != nil {
		return false
	}
	return v.Compare(cur) >= 0
}

// StaticFilter builds a filter that only accepts the single version
// pinned for each service in phase, for explain_phase's hypothetical
// catalogs (upgrade_planer.py's static_version).
func StaticFilter(phase map[string]string) Filter {
	return func(entry CatalogEntry, version VersionInfo) bool {
		pinned, ok := phase[entry.Name]
		return ok && pinned == version.Version
	}
}

// namedFilters mirrors CATALOG_FILTERS for FilterByName.
var namedFilters = map[string]Filter{
	NoDowngrade: NoDowngradeFilter,
	AcceptAll:   AcceptAllFilter,
}

// FilterByName resolves one of the named filters exposed over the RPC
// surface (§4.5's build_catalog(filter_name)).
func FilterByName(name string) (Filter, bool) {
	f, ok := namedFilters[name]
	return f, ok
}
