package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/platform/migrations"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// TestStoreIntegration exercises all four Postgres-backed stores against a
// real database. It is skipped unless TEST_POSTGRES_DSN is set, mirroring
// the teacher's internal/app/storage/postgres.TestStoreIntegration.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Apply(context.Background(), db.DB), "apply migrations")
	resetTables(t, db)

	ctx := context.Background()

	t.Run("trigger", func(t *testing.T) {
		store := NewTriggerStore(db)
		rs := trigger.Ruleset{
			Owner: "acme",
			Name:  "alerts",
			Resources: []trigger.Resource{
				{Name: "cpu", Monitorer: "svc-a", Identifier: "host-1"},
			},
			Rules: []trigger.Rule{
				{Name: "hot", Expression: "cpu.usage > 0.9"},
			},
		}
		require.NoError(t, store.Upsert(ctx, rs), "upsert ruleset")

		got, ok, err := store.Get(ctx, "acme", "alerts")
		require.NoError(t, err, "get ruleset")
		require.True(t, ok, "expected ruleset to exist")
		require.Len(t, got.Resources, 1)
		require.Equal(t, "svc-a", got.Resources[0].Monitorer)

		found, err := store.FindByResource(ctx, "svc-a", "host-1")
		require.NoError(t, err, "find by resource")
		require.Len(t, found, 1, "expected one matching ruleset")
		require.Equal(t, "alerts", found[0].Name)

		listed, err := store.List(ctx, trigger.Filter{Owner: "acme"})
		require.NoError(t, err, "list rulesets")
		require.Len(t, listed, 1, "expected one ruleset for owner")

		require.NoError(t, store.Delete(ctx, "acme", "alerts"), "delete ruleset")
		_, ok, err = store.Get(ctx, "acme", "alerts")
		require.NoError(t, err, "get after delete")
		require.False(t, ok, "expected ruleset to be gone after delete")
	})

	t.Run("loadctl", func(t *testing.T) {
		store := NewLoadCtlStore(db)
		svc := loadctl.Service{
			Name: "checkout",
			ScaleConfig: loadctl.ScaleConfig{
				Min: 2,
				Max: 10,
			},
		}
		require.NoError(t, store.Upsert(ctx, svc), "upsert service")

		got, ok, err := store.Get(ctx, "checkout")
		require.NoError(t, err, "get service")
		require.True(t, ok)
		require.Equal(t, 10, got.ScaleConfig.Max)

		all, err := store.List(ctx)
		require.NoError(t, err, "list services")
		require.Len(t, all, 1, "expected one service")

		require.NoError(t, store.Delete(ctx, "checkout"), "delete service")
	})

	t.Run("upgrade", func(t *testing.T) {
		store := NewUpgradeStore(db)
		entry := upgrade.CatalogEntry{
			Name:     "checkout",
			Version:  "v1.2.0",
			Versions: map[string]upgrade.VersionInfo{"v1.2.0": {Version: "v1.2.0", Available: true}},
		}
		require.NoError(t, store.UpsertCatalogEntry(ctx, entry), "upsert catalog entry")

		got, ok, err := store.GetCatalogEntry(ctx, "checkout")
		require.NoError(t, err, "get catalog entry")
		require.True(t, ok)
		require.Equal(t, "v1.2.0", got.Version)

		entries, err := store.ListCatalogEntries(ctx)
		require.NoError(t, err, "list catalog entries")
		require.Len(t, entries, 1, "expected one catalog entry")

		sched := upgrade.Schedule{
			ID:        "sched-test-1",
			State:     upgrade.StateRunning,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.InsertSchedule(ctx, sched), "insert schedule")

		running, ok, err := store.GetRunningSchedule(ctx)
		require.NoError(t, err, "get running schedule")
		require.True(t, ok, "expected to find running schedule")
		require.Equal(t, sched.ID, running.ID)

		sched.State = upgrade.StateDone
		require.NoError(t, store.ReplaceSchedule(ctx, sched), "replace schedule")

		_, ok, err = store.GetRunningSchedule(ctx)
		require.NoError(t, err, "get running schedule after replace")
		require.False(t, ok, "expected no running schedule after completion")

		snap := upgrade.PhaseSnapshot{
			Updated: "checkout",
			From:    "v1.1.0",
			To:      "v1.2.0",
			Date:    time.Now().UTC(),
		}
		require.NoError(t, store.AppendPhaseSnapshot(ctx, snap), "append phase snapshot")
	})

	t.Run("orchestrator", func(t *testing.T) {
		store := NewOrchestratorStore(db)
		svc := orchestrator.Service{
			Name:  "checkout",
			Image: orchestrator.ImageInfo{Repository: "acme", Image: "checkout", Tag: "v1"},
			Mode:  orchestrator.Mode{Name: "replicated", Replicas: 3},
		}
		require.NoError(t, store.Upsert(ctx, svc), "upsert service")

		got, ok, err := store.Get(ctx, "checkout")
		require.NoError(t, err, "get service")
		require.True(t, ok)
		require.Equal(t, 3, got.Mode.Replicas)

		require.NoError(t, store.AppendVersion(ctx, orchestrator.VersionRecord{
			ServiceName: "checkout",
			Image:       svc.Image,
		}), "append version")

		versions, err := store.ListVersions(ctx, "checkout")
		require.NoError(t, err, "list versions")
		require.Len(t, versions, 1, "expected one version record")

		all, err := store.List(ctx)
		require.NoError(t, err, "list services")
		require.Len(t, all, 1, "expected one orchestrated service")

		require.NoError(t, store.Delete(ctx, "checkout"), "delete service")
	})
}

func resetTables(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec(`
		TRUNCATE
			orchestrator_versions,
			orchestrator_services,
			upgrade_schedules,
			upgrade_phase_snapshots,
			upgrade_catalog_entries,
			loadctl_services,
			trigger_rulesets
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err, "reset tables")
}
