package core

const (
	// DefaultListLimit is the standard default page size used across components.
	DefaultListLimit = 25
	// MaxListLimit is the standard maximum page size used across components.
	MaxListLimit = 500
)

// ClampLimit returns a sane list limit using the provided default and maximum.
// Non-positive values yield the default; values above max clamp to max.
func ClampLimit(limit, defaultLimit, max int) int {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	if max <= 0 {
		max = defaultLimit
	}
	if limit <= 0 {
		return defaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampScale implements the load controller's "best scale" clamp from
// component design §4.4: clamp(current+delta, [min,max]).
func ClampScale(current, delta, min, max int) int {
	best := current + delta
	if best < min {
		best = min
	}
	if max > 0 && best > max {
		best = max
	}
	return best
}
