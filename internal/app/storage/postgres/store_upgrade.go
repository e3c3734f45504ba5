package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// --- upgrade.Store ---------------------------------------------------------

func (s *UpgradeStore) GetCatalogEntry(ctx context.Context, name string) (upgrade.CatalogEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, version, versions
		FROM upgrade_catalog_entries
		WHERE name = $1
	`, name)

	entry, err := scanCatalogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return upgrade.CatalogEntry{}, false, nil
	}
	if err != nil {
		return upgrade.CatalogEntry{}, false, err
	}
	return entry, true, nil
}

func (s *UpgradeStore) UpsertCatalogEntry(ctx context.Context, entry upgrade.CatalogEntry) error {
	versionsJSON, err := json.Marshal(entry.Versions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upgrade_catalog_entries (name, version, versions, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name)
		DO UPDATE SET version = $2, versions = $3, updated_at = now()
	`, entry.Name, entry.Version, versionsJSON)
	return err
}

func (s *UpgradeStore) ListCatalogEntries(ctx context.Context) ([]upgrade.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, versions
		FROM upgrade_catalog_entries
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []upgrade.CatalogEntry
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *UpgradeStore) AppendPhaseSnapshot(ctx context.Context, snap upgrade.PhaseSnapshot) error {
	servicesJSON, err := json.Marshal(snap.Services)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upgrade_phase_snapshots (updated, from_ver, to_ver, services, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.Updated, snap.From, snap.To, servicesJSON, snap.Date)
	return err
}

func (s *UpgradeStore) GetRunningSchedule(ctx context.Context) (upgrade.Schedule, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, steps, created_at
		FROM upgrade_schedules
		WHERE state = $1
		LIMIT 1
	`, upgrade.StateRunning)

	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return upgrade.Schedule{}, false, nil
	}
	if err != nil {
		return upgrade.Schedule{}, false, err
	}
	return sched, true, nil
}

func (s *UpgradeStore) InsertSchedule(ctx context.Context, sched upgrade.Schedule) error {
	stepsJSON, err := json.Marshal(sched.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upgrade_schedules (id, state, steps, created_at)
		VALUES ($1, $2, $3, $4)
	`, sched.ID, sched.State, stepsJSON, sched.CreatedAt)
	return err
}

func (s *UpgradeStore) ReplaceSchedule(ctx context.Context, sched upgrade.Schedule) error {
	stepsJSON, err := json.Marshal(sched.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upgrade_schedules (id, state, steps, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET state = $2, steps = $3
	`, sched.ID, sched.State, stepsJSON, sched.CreatedAt)
	return err
}

func scanCatalogEntry(scanner rowScanner) (upgrade.CatalogEntry, error) {
	var (
		entry       upgrade.CatalogEntry
		versionsRaw []byte
	)
	if err := scanner.Scan(&entry.Name, &entry.Version, &versionsRaw); err != nil {
		return upgrade.CatalogEntry{}, err
	}
	if len(versionsRaw) > 0 {
		if err := json.Unmarshal(versionsRaw, &entry.Versions); err != nil {
			return upgrade.CatalogEntry{}, err
		}
	}
	return entry, nil
}

func scanSchedule(scanner rowScanner) (upgrade.Schedule, error) {
	var (
		sched    upgrade.Schedule
		stepsRaw []byte
	)
	if err := scanner.Scan(&sched.ID, &sched.State, &stepsRaw, &sched.CreatedAt); err != nil {
		return upgrade.Schedule{}, err
	}
	if len(stepsRaw) > 0 {
		if err := json.Unmarshal(stepsRaw, &sched.Steps); err != nil {
			return upgrade.Schedule{}, err
		}
	}
	return sched, nil
}
