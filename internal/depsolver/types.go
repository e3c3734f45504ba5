// Package depsolver implements the Dependency Solver (C3): given a
// catalog of services, their versions' provide/require declarations and
// a set of extra constraints, it enumerates compatible (service→version)
// assignments via depth-first backtracking, or explains why a single
// fixed assignment fails.
package depsolver

// VersionEntry is one version of one service: what it provides (a flat
// colon-path → typed value map, e.g. "rpc:hello"→1) and what it requires
// (boolean expressions evaluated against the candidate's accumulated
// provide set).
type VersionEntry struct {
	Provide map[string]any
	Require []string
}

// Service is one catalog entry, keyed by version id ("1.2.3", "latest").
type Service struct {
	Name     string
	Versions map[string]VersionEntry
}

// Catalog is the full input to a solve or explain call.
type Catalog []Service

// Assignment maps service name to the chosen version id.
type Assignment map[string]string

// Anomaly records a (service,version) pair excluded from the search
// because its require expressions didn't compile or scope-check (§7:
// "a (service,version) pair had a compile error; recorded, excluded
// from the search, not surfaced as a failure").
type Anomaly struct {
	Service    string
	Version    string
	Expression string
	Error      string
}

// FailedClause records one violated requirement, used by Explain.
type FailedClause struct {
	Expression string
	Service    string
	Provided   map[string]any
}
