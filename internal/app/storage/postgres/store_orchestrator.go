package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
)

// --- orchestrator.Store ----------------------------------------------------

func (s *OrchestratorStore) Get(ctx context.Context, name string) (orchestrator.Service, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, image, mode, scale_config
		FROM orchestrator_services
		WHERE name = $1
	`, name)

	svc, err := scanOrchestratorService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.Service{}, false, nil
	}
	if err != nil {
		return orchestrator.Service{}, false, err
	}
	return svc, true, nil
}

func (s *OrchestratorStore) Upsert(ctx context.Context, svc orchestrator.Service) error {
	imageJSON, err := json.Marshal(svc.Image)
	if err != nil {
		return err
	}
	modeJSON, err := json.Marshal(svc.Mode)
	if err != nil {
		return err
	}
	scaleJSON, err := json.Marshal(svc.ScaleConfig)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orchestrator_services (name, image, mode, scale_config, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name)
		DO UPDATE SET image = $2, mode = $3, scale_config = $4, updated_at = now()
	`, svc.Name, imageJSON, modeJSON, scaleJSON)
	return err
}

func (s *OrchestratorStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM orchestrator_services WHERE name = $1`, name)
	return err
}

func (s *OrchestratorStore) List(ctx context.Context) ([]orchestrator.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, image, mode, scale_config
		FROM orchestrator_services
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orchestrator.Service
	for rows.Next() {
		svc, err := scanOrchestratorService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

func (s *OrchestratorStore) AppendVersion(ctx context.Context, rec orchestrator.VersionRecord) error {
	imageJSON, err := json.Marshal(rec.Image)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orchestrator_versions (service_name, image, recorded_at)
		VALUES ($1, $2, now())
	`, rec.ServiceName, imageJSON)
	return err
}

func (s *OrchestratorStore) ListVersions(ctx context.Context, serviceName string) ([]orchestrator.VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_name, image
		FROM orchestrator_versions
		WHERE service_name = $1
		ORDER BY recorded_at
	`, serviceName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orchestrator.VersionRecord
	for rows.Next() {
		var (
			rec      orchestrator.VersionRecord
			imageRaw []byte
		)
		if err := rows.Scan(&rec.ServiceName, &imageRaw); err != nil {
			return nil, err
		}
		if len(imageRaw) > 0 {
			if err := json.Unmarshal(imageRaw, &rec.Image); err != nil {
				return nil, err
			}
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanOrchestratorService(scanner rowScanner) (orchestrator.Service, error) {
	var (
		svc      orchestrator.Service
		imageRaw []byte
		modeRaw  []byte
		scaleRaw []byte
	)
	if err := scanner.Scan(&svc.Name, &imageRaw, &modeRaw, &scaleRaw); err != nil {
		return orchestrator.Service{}, err
	}
	if len(imageRaw) > 0 {
		if err := json.Unmarshal(imageRaw, &svc.Image); err != nil {
			return orchestrator.Service{}, err
		}
	}
	if len(modeRaw) > 0 {
		if err := json.Unmarshal(modeRaw, &svc.Mode); err != nil {
			return orchestrator.Service{}, err
		}
	}
	if len(scaleRaw) > 0 {
		if err := json.Unmarshal(scaleRaw, &svc.ScaleConfig); err != nil {
			return orchestrator.Service{}, err
		}
	}
	return svc, nil
}
