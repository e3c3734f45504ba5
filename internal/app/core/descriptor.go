// Package core provides small ambient helpers shared by every C1-C6
// component: self-description (Descriptor/Layer), retry policy, list
// limit clamping, and observation hooks. Adapted from the teacher's
// internal/app/core/service package, generalized from its
// Chainlink-style blueprint wording to this orchestrator's components.
package core

// Layer describes which architectural slice a component belongs to.
type Layer string

const (
	LayerIngress Layer = "ingress" // registry webhook, command-surface HTTP
	LayerEngine  Layer = "engine"  // C1-C5 decision-making components
	LayerData    Layer = "data"    // persisted-schema stores
)

// Descriptor advertises a component's placement and capabilities to the
// system.Manager registry; it never changes runtime behavior.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of the descriptor with capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
