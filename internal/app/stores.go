package app

import (
	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// Stores encapsulates persistence dependencies for every stateful
// component. Nil fields default to that component's own in-memory
// implementation (see DESIGN.md's note on the pack's missing storage
// layer).
type Stores struct {
	Trigger      trigger.Store
	LoadCtl      loadctl.Store
	Upgrade      upgrade.Store
	Orchestrator orchestrator.Store
}

func (s *Stores) applyDefaults() {
	if s.Trigger == nil {
		s.Trigger = trigger.NewMemStore()
	}
	if s.LoadCtl == nil {
		s.LoadCtl = loadctl.NewMemStore()
	}
	if s.Upgrade == nil {
		s.Upgrade = upgrade.NewMemStore()
	}
	if s.Orchestrator == nil {
		s.Orchestrator = orchestrator.NewMemStore()
	}
}
