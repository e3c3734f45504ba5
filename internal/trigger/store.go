package trigger

import "context"

// Store persists rulesets, keyed by (owner, name) with a secondary index
// on (resource.monitorer, resource.identifier) for O(subscribers) metric
// routing (component design §4.2).
type Store interface {
	Get(ctx context.Context, owner, name string) (Ruleset, bool, error)
	Upsert(ctx context.Context, rs Ruleset) error
	Delete(ctx context.Context, owner, name string) error
	PurgeOwner(ctx context.Context, owner string) error
	List(ctx context.Context, filter Filter) ([]Ruleset, error)
	// FindByResource returns every ruleset that subscribes to the given
	// (monitorer, identifier) resource.
	FindByResource(ctx context.Context, monitorer, identifier string) ([]Ruleset, error)
}

// Monitorer is the external metric-collector adapter's track operation
// (§6: "Metric collector (consumed): track(identifier)").
type Monitorer interface {
	Track(ctx context.Context, identifier string) error
}
