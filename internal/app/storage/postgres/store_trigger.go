package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/maieve/fleet-orchestrator/internal/trigger"
)

// --- trigger.Store -----------------------------------------------------

func (s *TriggerStore) Get(ctx context.Context, owner, name string) (trigger.Ruleset, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, name, resources, rules
		FROM trigger_rulesets
		WHERE owner = $1 AND name = $2
	`, owner, name)

	rs, err := scanRuleset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trigger.Ruleset{}, false, nil
	}
	if err != nil {
		return trigger.Ruleset{}, false, err
	}
	return rs, true, nil
}

func (s *TriggerStore) Upsert(ctx context.Context, rs trigger.Ruleset) error {
	resourcesJSON, err := json.Marshal(rs.Resources)
	if err != nil {
		return err
	}
	rulesJSON, err := json.Marshal(rs.Rules)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trigger_rulesets (owner, name, resources, rules, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (owner, name)
		DO UPDATE SET resources = $3, rules = $4, updated_at = now()
	`, rs.Owner, rs.Name, resourcesJSON, rulesJSON)
	return err
}

func (s *TriggerStore) Delete(ctx context.Context, owner, name string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM trigger_rulesets WHERE owner = $1 AND name = $2
	`, owner, name)
	return err
}

func (s *TriggerStore) PurgeOwner(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM trigger_rulesets WHERE owner = $1
	`, owner)
	return err
}

func (s *TriggerStore) List(ctx context.Context, filter trigger.Filter) ([]trigger.Ruleset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, name, resources, rules
		FROM trigger_rulesets
		WHERE $1 = '' OR owner = $1
		ORDER BY owner, name
	`, filter.Owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []trigger.Ruleset
	for rows.Next() {
		rs, err := scanRuleset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rs)
	}
	return result, rows.Err()
}

func (s *TriggerStore) FindByResource(ctx context.Context, monitorer, identifier string) ([]trigger.Ruleset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, name, resources, rules
		FROM trigger_rulesets
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(resources) elem
			WHERE elem->>'Monitorer' = $1 AND elem->>'Identifier' = $2
		)
		ORDER BY owner, name
	`, monitorer, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []trigger.Ruleset
	for rows.Next() {
		rs, err := scanRuleset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rs)
	}
	return result, rows.Err()
}

func scanRuleset(scanner rowScanner) (trigger.Ruleset, error) {
	var (
		rs            trigger.Ruleset
		resourcesRaw  []byte
		rulesRaw      []byte
	)
	if err := scanner.Scan(&rs.Owner, &rs.Name, &resourcesRaw, &rulesRaw); err != nil {
		return trigger.Ruleset{}, err
	}
	if len(resourcesRaw) > 0 {
		if err := json.Unmarshal(resourcesRaw, &rs.Resources); err != nil {
			return trigger.Ruleset{}, err
		}
	}
	if len(rulesRaw) > 0 {
		if err := json.Unmarshal(rulesRaw, &rs.Rules); err != nil {
			return trigger.Ruleset{}, err
		}
	}
	return rs, nil
}
