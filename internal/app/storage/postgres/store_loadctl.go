package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/maieve/fleet-orchestrator/internal/loadctl"
)

// --- loadctl.Store -------------------------------------------------------

func (s *LoadCtlStore) Get(ctx context.Context, name string) (loadctl.Service, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, mode, scale_config, latest_ruleset
		FROM loadctl_services
		WHERE name = $1
	`, name)

	svc, err := scanLoadCtlService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return loadctl.Service{}, false, nil
	}
	if err != nil {
		return loadctl.Service{}, false, err
	}
	return svc, true, nil
}

func (s *LoadCtlStore) Upsert(ctx context.Context, svc loadctl.Service) error {
	modeJSON, err := json.Marshal(svc.Mode)
	if err != nil {
		return err
	}
	scaleJSON, err := json.Marshal(svc.ScaleConfig)
	if err != nil {
		return err
	}
	var latestJSON []byte
	if svc.LatestRuleset != nil {
		if latestJSON, err = json.Marshal(svc.LatestRuleset); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO loadctl_services (name, mode, scale_config, latest_ruleset, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name)
		DO UPDATE SET mode = $2, scale_config = $3, latest_ruleset = $4, updated_at = now()
	`, svc.Name, modeJSON, scaleJSON, nullableJSON(latestJSON))
	return err
}

func (s *LoadCtlStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM loadctl_services WHERE name = $1`, name)
	return err
}

func (s *LoadCtlStore) List(ctx context.Context) ([]loadctl.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, mode, scale_config, latest_ruleset
		FROM loadctl_services
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loadctl.Service
	for rows.Next() {
		svc, err := scanLoadCtlService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

func scanLoadCtlService(scanner rowScanner) (loadctl.Service, error) {
	var (
		svc       loadctl.Service
		modeRaw   []byte
		scaleRaw  []byte
		latestRaw []byte
	)
	if err := scanner.Scan(&svc.Name, &modeRaw, &scaleRaw, &latestRaw); err != nil {
		return loadctl.Service{}, err
	}
	if len(modeRaw) > 0 {
		if err := json.Unmarshal(modeRaw, &svc.Mode); err != nil {
			return loadctl.Service{}, err
		}
	}
	if len(scaleRaw) > 0 {
		if err := json.Unmarshal(scaleRaw, &svc.ScaleConfig); err != nil {
			return loadctl.Service{}, err
		}
	}
	if len(latestRaw) > 0 {
		var latest loadctl.LatestRuleset
		if err := json.Unmarshal(latestRaw, &latest); err != nil {
			return loadctl.Service{}, err
		}
		svc.LatestRuleset = &latest
	}
	return svc, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
