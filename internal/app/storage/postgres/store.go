// Package postgres implements Postgres-backed persistence for the
// orchestrator's four stateful components (trigger, loadctl, upgrade,
// orchestrator), adapted from the teacher's internal/app/storage/postgres
// Store: sqlx.DB-backed structs, blobs marshalled to JSONB rather than
// normalized columns. Each domain gets its own struct (rather than one
// shared type implementing all four Store interfaces) because the
// interfaces share method names (Get/Upsert/Delete/List) with
// incompatible signatures.
package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// TriggerStore persists rulesets for the Trigger Engine (C2).
type TriggerStore struct{ db *sqlx.DB }

// LoadCtlStore persists monitored services for the Load Controller (C4).
type LoadCtlStore struct{ db *sqlx.DB }

// UpgradeStore persists the catalog, phase history, and schedules for the
// Upgrade Planner (C5).
type UpgradeStore struct{ db *sqlx.DB }

// OrchestratorStore persists monitored services and version history for
// the Service Orchestrator (C6).
type OrchestratorStore struct{ db *sqlx.DB }

var _ trigger.Store = (*TriggerStore)(nil)
var _ loadctl.Store = (*LoadCtlStore)(nil)
var _ upgrade.Store = (*UpgradeStore)(nil)
var _ orchestrator.Store = (*OrchestratorStore)(nil)

// NewTriggerStore creates a TriggerStore using the provided database handle.
func NewTriggerStore(db *sqlx.DB) *TriggerStore { return &TriggerStore{db: db} }

// NewLoadCtlStore creates a LoadCtlStore using the provided database handle.
func NewLoadCtlStore(db *sqlx.DB) *LoadCtlStore { return &LoadCtlStore{db: db} }

// NewUpgradeStore creates an UpgradeStore using the provided database handle.
func NewUpgradeStore(db *sqlx.DB) *UpgradeStore { return &UpgradeStore{db: db} }

// NewOrchestratorStore creates an OrchestratorStore using the provided
// database handle.
func NewOrchestratorStore(db *sqlx.DB) *OrchestratorStore { return &OrchestratorStore{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}
